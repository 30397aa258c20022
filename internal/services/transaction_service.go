package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/report"
	"fintrack/internal/storage"
)

const (
	DefaultListLimit       = 100
	DefaultReportCacheSize = 500
	DefaultReportCacheTTL  = 5 * time.Minute

	reportLoadTimeout = 30 * time.Second
)

var ErrMissingID = errors.New("transaction id is required")

// EventPublisher delivers transaction events to the broker. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Options configures a TransactionService. Zero values select defaults; a nil
// Publisher disables events.
type Options struct {
	ListLimit       int
	ReportCacheSize int
	ReportCacheTTL  time.Duration
	Publisher       EventPublisher
	Metrics         *metrics.Metrics
	Logger          *log.Logger
}

// PurgeResult reports what an account purge removed.
type PurgeResult struct {
	DeletedTxnCount     int64 `json:"deletedTxnCount"`
	DeletedContactCount int64 `json:"deletedContactCount"`
}

// TransactionService applies owner-scoped operations on transactions. Every
// method takes the authenticated principal; its ID is the only owner key used.
type TransactionService struct {
	txns      storage.TransactionStore
	contacts  storage.ContactStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	slog      *log.StructuredLogger
	listLimit int
	now       func() time.Time

	reports     *cache.LRUCache[report.Report]
	flight      singleflight.Group
	generations sync.Map // userID -> *atomic.Uint64, bumped on every mutation
}

func NewTransactionService(txns storage.TransactionStore, contacts storage.ContactStore, opts Options) *TransactionService {
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultListLimit
	}
	if opts.ReportCacheSize <= 0 {
		opts.ReportCacheSize = DefaultReportCacheSize
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = DefaultReportCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.FromContext(context.Background())
	}
	logger := opts.Logger.WithComponent(log.ComponentTransaction)

	return &TransactionService{
		txns:      txns,
		contacts:  contacts,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger,
		slog:      log.NewStructuredLogger(logger),
		listLimit: opts.ListLimit,
		now:       time.Now,
		reports:   cache.NewLRUCache[report.Report](opts.ReportCacheSize, opts.ReportCacheTTL),
	}
}

// ReportCache exposes the report cache for registration with a cache.Manager.
func (s *TransactionService) ReportCache() cache.Cleaner {
	return s.reports
}

func owner(p auth.Principal) (string, error) {
	if p.IsZero() {
		return "", core.ErrUnauthenticated
	}
	return p.ID(), nil
}

// List returns the principal's most recent transactions, capped at the list limit.
func (s *TransactionService) List(ctx context.Context, p auth.Principal) ([]core.Transaction, error) {
	userID, err := owner(p)
	if err != nil {
		return nil, err
	}
	txns, err := s.txns.ListTransactions(ctx, userID, storage.ListOptions{Limit: s.listLimit})
	if err != nil {
		s.fail(ctx, log.OpList, userID, err)
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// Create validates in and stores a transaction owned by the principal.
func (s *TransactionService) Create(ctx context.Context, p auth.Principal, in core.TransactionInput) (core.Transaction, error) {
	userID, err := owner(p)
	if err != nil {
		return core.Transaction{}, err
	}
	t, err := in.ToTransaction(userID)
	if err != nil {
		s.fail(ctx, log.OpCreate, userID, err)
		return core.Transaction{}, err
	}

	created, err := s.txns.CreateTransaction(ctx, t)
	if err != nil {
		s.fail(ctx, log.OpCreate, userID, err)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.changed(ctx, log.OpCreate, amqp.EventCreated, created)
	return created, nil
}

// Update applies the present fields of in to the principal's transaction.
// A userId in the payload is never applied.
func (s *TransactionService) Update(ctx context.Context, p auth.Principal, in core.TransactionUpdateInput) (core.Transaction, error) {
	userID, err := owner(p)
	if err != nil {
		return core.Transaction{}, err
	}
	id := in.RecordID()
	if id == "" {
		return core.Transaction{}, ErrMissingID
	}
	patch, err := in.ToPatch()
	if err != nil {
		s.fail(ctx, log.OpUpdate, userID, err)
		return core.Transaction{}, err
	}

	if patch.IsEmpty() {
		t, err := s.txns.GetTransaction(ctx, userID, id)
		if err != nil {
			s.fail(ctx, log.OpUpdate, userID, err)
			return core.Transaction{}, wrapStore("get transaction", err)
		}
		return t, nil
	}

	updated, err := s.txns.UpdateTransaction(ctx, userID, id, patch)
	if err != nil {
		s.fail(ctx, log.OpUpdate, userID, err)
		return core.Transaction{}, wrapStore("update transaction", err)
	}

	s.changed(ctx, log.OpUpdate, amqp.EventUpdated, updated)
	return updated, nil
}

// Delete removes the principal's transaction id.
func (s *TransactionService) Delete(ctx context.Context, p auth.Principal, id string) error {
	userID, err := owner(p)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	if err := s.txns.DeleteTransaction(ctx, userID, id); err != nil {
		s.fail(ctx, log.OpDelete, userID, err)
		return wrapStore("delete transaction", err)
	}

	s.changed(ctx, log.OpDelete, amqp.EventDeleted, core.Transaction{ID: id, UserID: userID})
	return nil
}

// Purge deletes every transaction and contact message of the principal.
// The two deletions run concurrently; either failure fails the purge.
func (s *TransactionService) Purge(ctx context.Context, p auth.Principal) (PurgeResult, error) {
	userID, err := owner(p)
	if err != nil {
		return PurgeResult{}, err
	}

	var res PurgeResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.txns.DeleteUserTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		res.DeletedTxnCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.contacts.DeleteUserContactMessages(gctx, userID)
		if err != nil {
			return fmt.Errorf("delete contact messages: %w", err)
		}
		res.DeletedContactCount = n
		return nil
	})
	err = g.Wait()
	// Some rows may be gone even on failure.
	s.invalidate(userID)
	if err != nil {
		s.fail(ctx, log.OpPurge, userID, err)
		return PurgeResult{}, fmt.Errorf("purge account data: %w", err)
	}

	s.metrics.RecordPurge()
	s.logger.InfoContext(ctx, "Account data purged",
		log.FieldUserID, userID,
		"deleted_txn_count", res.DeletedTxnCount,
		"deleted_contact_count", res.DeletedContactCount)
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventPurged, userID, nil))
	return res, nil
}

// Report builds the principal's report for r from the full history. Results
// are cached per principal until the TTL passes or the principal mutates data.
func (s *TransactionService) Report(ctx context.Context, p auth.Principal, r report.Range, topN int) (report.Report, error) {
	userID, err := owner(p)
	if err != nil {
		return report.Report{}, err
	}
	if topN <= 0 {
		topN = report.DefaultTopN
	}
	now := s.now()
	key := userID + "|" + string(r) + "|" + r.Period(now) + "|" + strconv.Itoa(topN)

	if rep, ok := s.reports.Get(key); ok {
		s.metrics.RecordCacheLookup("report", true)
		return rep, nil
	}
	s.metrics.RecordCacheLookup("report", false)

	// The shared load outlives any single caller; each caller waits on its own ctx.
	ch := s.flight.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportLoadTimeout)
		defer cancel()
		gen := s.generation(userID).Load()
		txns, err := s.txns.ListTransactions(loadCtx, userID, storage.ListOptions{})
		if err != nil {
			return nil, err
		}
		rep := report.Build(txns, r, now, topN)
		// Skip caching when a mutation raced with the load.
		if s.generation(userID).Load() == gen {
			s.reports.Set(key, rep)
		}
		s.metrics.RecordReportBuilt(string(r))
		return rep, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return report.Report{}, ctx.Err()
	}
	if res.Err != nil {
		s.fail(ctx, log.OpReport, userID, res.Err)
		return report.Report{}, fmt.Errorf("build report: %w", res.Err)
	}
	return res.Val.(report.Report), nil
}

// Export returns the principal's full history restricted to r, newest first.
func (s *TransactionService) Export(ctx context.Context, p auth.Principal, r report.Range) ([]core.Transaction, error) {
	userID, err := owner(p)
	if err != nil {
		return nil, err
	}
	txns, err := s.txns.ListTransactions(ctx, userID, storage.ListOptions{})
	if err != nil {
		s.fail(ctx, log.OpExport, userID, err)
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	return report.Filter(txns, r, s.now()), nil
}

func (s *TransactionService) generation(userID string) *atomic.Uint64 {
	v, _ := s.generations.LoadOrStore(userID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (s *TransactionService) invalidate(userID string) {
	s.generation(userID).Add(1)
	s.reports.DeletePrefix(userID + "|")
}

// changed runs the bookkeeping shared by every successful mutation.
func (s *TransactionService) changed(ctx context.Context, op string, kind amqp.EventKind, t core.Transaction) {
	s.invalidate(t.UserID)
	s.metrics.RecordTransactionOp(op, string(t.Type))
	s.slog.LogTransactionChange(ctx, op, t.UserID, t.ID, string(t.Type), t.Amount.Cents, t.Category)
	s.publish(ctx, amqp.NewTransactionEvent(kind, t.UserID, &t))
}

// publish is best effort: the mutation is already committed.
func (s *TransactionService) publish(ctx context.Context, ev *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, ev)
	s.metrics.RecordEventPublished(string(ev.Kind), err)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldEventKind, ev.Kind,
			log.FieldTransactionID, ev.TransactionID,
			log.FieldError, err)
	}
}

func (s *TransactionService) fail(ctx context.Context, op, userID string, err error) {
	errType := ErrorType(err)
	s.metrics.RecordTransactionError(op, errType)
	if ve, ok := core.AsValidationError(err); ok {
		for _, f := range ve.Fields {
			s.metrics.RecordValidationError(f.Field, f.Tag)
		}
	}
	if errType != log.ErrorTypeDatabase && errType != log.ErrorTypeInternal {
		s.logger.DebugContext(ctx, "Transaction operation rejected",
			log.FieldOperation, op, log.FieldUserID, userID, log.FieldErrorType, errType, log.FieldError, err)
		return
	}
	s.slog.LogError(ctx, "Transaction operation failed", err, log.ComponentTransaction, op,
		log.NewFields().WithUser(userID).WithErrorType(errType))
}

// ErrorType classifies err for logs and metrics.
func ErrorType(err error) string {
	if _, ok := core.AsValidationError(err); ok {
		return log.ErrorTypeValidation
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrUnauthenticated):
		return log.ErrorTypeAuth
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidDate), errors.Is(err, ErrMissingID):
		return log.ErrorTypeValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeInternal
	}
	return log.ErrorTypeDatabase
}

// wrapStore adds context to store failures but keeps ErrNotFound unwrapped
// so every not-found outcome looks the same.
func wrapStore(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	if _, ok := core.AsValidationError(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
