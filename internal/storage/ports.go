package storage

import (
	"context"

	"fintrack/internal/core"
)

// ListOptions bounds a listing. Limit <= 0 means no limit.
type ListOptions struct {
	Limit int
}

// TransactionStore persists transactions. Every method that takes userID
// filters on it together with the record id; a record owned by someone else
// is reported as core.ErrNotFound, exactly like a missing one.
type TransactionStore interface {
	// ListTransactions returns userID's transactions, newest date first, ties
	// broken by newest creation time.
	ListTransactions(ctx context.Context, userID string, opts ListOptions) ([]core.Transaction, error)
	// CreateTransaction assigns id and timestamps and stores t.
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	// UpdateTransaction applies patch atomically and returns the updated record.
	UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	// DeleteUserTransactions removes every transaction of userID and returns the count.
	DeleteUserTransactions(ctx context.Context, userID string) (int64, error)
}

// ContactStore persists contact form submissions.
type ContactStore interface {
	CreateContactMessage(ctx context.Context, m core.ContactMessage) (core.ContactMessage, error)
	DeleteUserContactMessages(ctx context.Context, userID string) (int64, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	TransactionStore
	ContactStore
	Ping(ctx context.Context) error
	Close() error
}
