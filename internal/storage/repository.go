package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

const transactionColumns = "id, user_id, type, amount_cents, description, category, date, created_at, updated_at"

// SQLRepository implements Store on database/sql for sqlite and postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to dsn, verifies the connection and applies migrations.
// For sqlite the dsn is a file path; its directory is created when missing.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLRepository, error) {
	if err := dialect.Validate(); err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer at a time avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewSQLRepository(db, dialect), nil
}

// NewSQLRepository wraps an already migrated database handle.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) q(query string) string {
	return r.dialect.rebind(query)
}

// validID reports whether id can name a stored record. Malformed ids are
// answered with ErrNotFound without touching the database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                           core.Transaction
		typ                         string
		date, createdAt, updatedAt time.Time
	)
	err := row.Scan(&t.ID, &t.UserID, &typ, &t.Amount.Cents, &t.Description, &t.Category,
		dbTime{&date}, dbTime{&createdAt}, dbTime{&updatedAt})
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TxnType(typ)
	t.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt
	return t, nil
}

func (r *SQLRepository) ListTransactions(ctx context.Context, userID string, opts ListOptions) ([]core.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC"
	args := []any{userID}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

func (r *SQLRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := r.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, string(t.Type), t.Amount.Cents, t.Description, t.Category,
		t.Date.String(), r.dialect.timestamp(now), r.dialect.timestamp(now))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func (r *SQLRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	if !validID(id) {
		return core.Transaction{}, core.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, r.q("SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?"), id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLRepository) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if !validID(id) {
		return core.Transaction{}, core.ErrNotFound
	}

	var (
		typ, desc, category, date sql.NullString
		amount                    sql.NullInt64
	)
	if patch.Type != nil {
		typ = sql.NullString{String: string(*patch.Type), Valid: true}
	}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return core.Transaction{}, err
		}
		amount = sql.NullInt64{Int64: patch.Amount.Cents, Valid: true}
	}
	if patch.Description != nil {
		desc = sql.NullString{String: *patch.Description, Valid: true}
	}
	if patch.Category != nil {
		category = sql.NullString{String: *patch.Category, Valid: true}
	}
	if patch.Date != nil {
		date = sql.NullString{String: patch.Date.String(), Valid: true}
	}

	// Single statement: the owner filter and the write cannot be separated.
	query := `UPDATE transactions SET
		type = COALESCE(?, type),
		amount_cents = COALESCE(?, amount_cents),
		description = COALESCE(?, description),
		category = COALESCE(?, category),
		date = COALESCE(?, date),
		updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING ` + transactionColumns

	row := r.db.QueryRowContext(ctx, r.q(query),
		typ, amount, desc, category, date, r.dialect.timestamp(r.now()), id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

func (r *SQLRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return core.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, r.q("DELETE FROM transactions WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) DeleteUserTransactions(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q("DELETE FROM transactions WHERE user_id = ?"), userID)
	if err != nil {
		return 0, fmt.Errorf("delete user transactions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLRepository) CreateContactMessage(ctx context.Context, m core.ContactMessage) (core.ContactMessage, error) {
	now := r.now()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now

	var userID sql.NullString
	if m.UserID != "" {
		userID = sql.NullString{String: m.UserID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO contact_messages
		(id, user_id, name, email, subject, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, userID, m.Name, m.Email, m.Subject, m.Message, r.dialect.timestamp(now), r.dialect.timestamp(now))
	if err != nil {
		return core.ContactMessage{}, fmt.Errorf("insert contact message: %w", err)
	}
	return m, nil
}

func (r *SQLRepository) DeleteUserContactMessages(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q("DELETE FROM contact_messages WHERE user_id = ?"), userID)
	if err != nil {
		return 0, fmt.Errorf("delete user contact messages: %w", err)
	}
	return res.RowsAffected()
}

var _ Store = (*SQLRepository)(nil)
