package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

// countingStore counts full-history reads so cache hits can be observed.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	lists int
}

func (s *countingStore) ListTransactions(ctx context.Context, userID string, opts storage.ListOptions) ([]core.Transaction, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.Store.ListTransactions(ctx, userID, opts)
}

func (s *countingStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// slowStore holds each read until its context ends or the delay passes,
// like a database query honoring cancellation.
type slowStore struct {
	*memory.Store
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func (s *slowStore) ListTransactions(ctx context.Context, userID string, opts storage.ListOptions) ([]core.Transaction, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.Store.ListTransactions(ctx, userID, opts)
}

type failingContacts struct {
	*memory.Store
}

func (failingContacts) DeleteUserContactMessages(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}

func principal(t *testing.T, subject string) auth.Principal {
	t.Helper()
	p, err := auth.NewPrincipal(subject, auth.DefaultUserPrefix)
	require.NoError(t, err, "NewPrincipal(%q)", subject)
	return p
}

func newService(t *testing.T, pub EventPublisher) (*TransactionService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewTransactionService(store, store, Options{Publisher: pub, Logger: log.Discard()})
	return svc, store
}

func expense(amount, category, date string) core.TransactionInput {
	return core.TransactionInput{
		Type:        "expense",
		Amount:      json.Number(amount),
		Description: "test " + category,
		Category:    category,
		Date:        date,
	}
}

func strPtr(s string) *string { return &s }

func TestTransactionService_CreateAndList(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()
	alice := principal(t, "user_alice")

	created, err := svc.Create(ctx, alice, expense("1500", "Rent", "2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, "alice", created.UserID)
	assert.Equal(t, int64(150000), created.Amount.Cents)

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	assert.Equal(t, []amqp.EventKind{amqp.EventCreated}, pub.kinds())
}

func TestTransactionService_Unauthenticated(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	var anon auth.Principal

	_, err := svc.List(ctx, anon)
	assert.ErrorIs(t, err, core.ErrUnauthenticated, "List")
	_, err = svc.Create(ctx, anon, expense("1", "Food", "2024-01-01"))
	assert.ErrorIs(t, err, core.ErrUnauthenticated, "Create")
	_, err = svc.Purge(ctx, anon)
	assert.ErrorIs(t, err, core.ErrUnauthenticated, "Purge")
	_, err = svc.Report(ctx, anon, report.RangeAll, 0)
	assert.ErrorIs(t, err, core.ErrUnauthenticated, "Report")
}

func TestTransactionService_CreateInvalid(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newService(t, pub)
	ctx := context.Background()
	alice := principal(t, "user_alice")

	tests := []struct {
		name  string
		in    core.TransactionInput
		field string
	}{
		{"zero amount", expense("0", "Food", "2024-01-01"), "amount"},
		{"negative amount", expense("-5", "Food", "2024-01-01"), "amount"},
		{"blank category", expense("5", "   ", "2024-01-01"), "category"},
		{"bad date", expense("5", "Food", "01/02/2024"), "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, alice, tt.in)
			ve, ok := core.AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.True(t, ve.Has(tt.field), "expected error on %q, got %+v", tt.field, ve.Fields)
		})
	}

	list, _ := store.ListTransactions(ctx, "alice", storage.ListOptions{})
	assert.Empty(t, list, "nothing should be stored")
	assert.Empty(t, pub.kinds(), "no events should be published")
}

func TestTransactionService_UpdateAmount(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	alice := principal(t, "user_alice")

	created, err := svc.Create(ctx, alice, expense("1500", "Rent", "2024-03-01"))
	require.NoError(t, err)

	amount := json.Number("1600")
	updated, err := svc.Update(ctx, alice, core.TransactionUpdateInput{ID: created.ID, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(160000), updated.Amount.Cents)
	assert.Equal(t, "Rent", updated.Category)
	assert.Equal(t, created.Description, updated.Description)

	rep, err := svc.Report(ctx, alice, report.RangeAll, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(160000), rep.Totals.TotalExpense.Cents)
}

func TestTransactionService_UpdateOtherOwner(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	alice := principal(t, "user_alice")
	bob := principal(t, "user_bob")

	created, err := svc.Create(ctx, alice, expense("10", "Food", "2024-03-01"))
	require.NoError(t, err)

	amount := json.Number("99")
	_, err = svc.Update(ctx, bob, core.TransactionUpdateInput{ID: created.ID, Amount: &amount})
	require.ErrorIs(t, err, core.ErrNotFound)
	_, missingErr := svc.Update(ctx, bob, core.TransactionUpdateInput{ID: "does-not-exist", Amount: &amount})
	require.Error(t, missingErr)
	assert.Equal(t, missingErr.Error(), err.Error(), "foreign and missing ids should fail alike")

	assert.ErrorIs(t, svc.Delete(ctx, bob, created.ID), core.ErrNotFound)

	got, err := store.GetTransaction(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Amount.Cents, "record changed by other owner")
}

func TestTransactionService_UpdateEdgeCases(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	alice := principal(t, "user_alice")

	created, err := svc.Create(ctx, alice, expense("10", "Food", "2024-03-01"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice, core.TransactionUpdateInput{Category: strPtr("Other")})
	assert.ErrorIs(t, err, ErrMissingID)

	same, err := svc.Update(ctx, alice, core.TransactionUpdateInput{ID: created.ID})
	require.NoError(t, err, "empty patch")
	assert.Equal(t, created.ID, same.ID)
	assert.Equal(t, created.Amount, same.Amount)

	bad := json.Number("-1")
	_, err = svc.Update(ctx, alice, core.TransactionUpdateInput{ID: created.ID, Amount: &bad})
	ve, ok := core.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.True(t, ve.Has("amount"))
}

func TestTransactionService_Delete(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()
	alice := principal(t, "user_alice")

	created, err := svc.Create(ctx, alice, expense("10", "Food", "2024-03-01"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, alice, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, alice, created.ID), core.ErrNotFound, "second delete")
	assert.ErrorIs(t, svc.Delete(ctx, alice, ""), ErrMissingID)

	assert.Equal(t, []amqp.EventKind{amqp.EventCreated, amqp.EventDeleted}, pub.kinds())
}

func TestTransactionService_Purge(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newService(t, pub)
	ctx := context.Background()
	alice := principal(t, "user_alice")
	bob := principal(t, "user_bob")

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		_, err := svc.Create(ctx, alice, expense("5", "Food", d))
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, bob, expense("5", "Food", "2024-01-01"))
	require.NoError(t, err)
	_, err = store.CreateContactMessage(ctx, core.ContactMessage{UserID: "alice", Name: "A", Email: "a@example.com", Subject: "s", Message: "m"})
	require.NoError(t, err)

	res, err := svc.Purge(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.DeletedTxnCount)
	assert.Equal(t, int64(1), res.DeletedContactCount)

	again, err := svc.Purge(ctx, alice)
	require.NoError(t, err, "second purge")
	assert.Zero(t, again.DeletedTxnCount)
	assert.Zero(t, again.DeletedContactCount)

	left, _ := svc.List(ctx, bob)
	assert.Len(t, left, 1, "other owner's data must survive")

	kinds := pub.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, amqp.EventPurged, kinds[len(kinds)-1])
}

func TestTransactionService_PurgeFailure(t *testing.T) {
	store := memory.New()
	svc := NewTransactionService(store, failingContacts{store}, Options{Logger: log.Discard()})

	_, err := svc.Purge(context.Background(), principal(t, "user_alice"))
	assert.Error(t, err, "purge should fail when contact deletion fails")
}

func TestTransactionService_PublishFailureDoesNotFail(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc, _ := newService(t, pub)

	_, err := svc.Create(context.Background(), principal(t, "user_alice"), expense("5", "Food", "2024-01-01"))
	assert.NoError(t, err, "Create should succeed despite publish failure")
}

func TestTransactionService_ReportCache(t *testing.T) {
	counting := &countingStore{Store: memory.New()}
	svc := NewTransactionService(counting, counting, Options{Logger: log.Discard()})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	alice := principal(t, "user_alice")

	_, err := svc.Create(ctx, alice, expense("100", "Food", "2024-03-01"))
	require.NoError(t, err)

	first, err := svc.Report(ctx, alice, report.RangeMonth, 3)
	require.NoError(t, err)
	_, err = svc.Report(ctx, alice, report.RangeMonth, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.reads(), "two reports should share one store read")
	assert.Equal(t, int64(10000), first.Totals.TotalExpense.Cents)

	_, err = svc.Create(ctx, alice, expense("50", "Food", "2024-03-02"))
	require.NoError(t, err)
	second, err := svc.Report(ctx, alice, report.RangeMonth, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), second.Totals.TotalExpense.Cents, "report not refreshed after mutation")
}

func TestTransactionService_ReportCacheRollsOverPeriod(t *testing.T) {
	counting := &countingStore{Store: memory.New()}
	svc := NewTransactionService(counting, counting, Options{Logger: log.Discard()})
	now := time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	alice := principal(t, "user_alice")

	_, err := svc.Create(ctx, alice, expense("100", "Food", "2024-03-10"))
	require.NoError(t, err)

	march, err := svc.Report(ctx, alice, report.RangeMonth, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), march.Totals.TotalExpense.Cents)

	// No mutation in between: only the clock moves into April.
	now = time.Date(2024, 4, 1, 0, 1, 0, 0, time.UTC)
	april, err := svc.Report(ctx, alice, report.RangeMonth, 0)
	require.NoError(t, err)
	assert.Zero(t, april.Totals.TotalExpense.Cents, "March spending must not leak into April")
	assert.Equal(t, 2, counting.reads())

	year, err := svc.Report(ctx, alice, report.RangeYear, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), year.Totals.TotalExpense.Cents)
}

func TestTransactionService_ReportSurvivesCanceledPeer(t *testing.T) {
	slow := &slowStore{Store: memory.New(), delay: 200 * time.Millisecond, started: make(chan struct{})}
	svc := NewTransactionService(slow, slow, Options{Logger: log.Discard()})
	alice := principal(t, "user_alice")

	_, err := svc.Create(context.Background(), alice, expense("100", "Food", "2024-03-10"))
	require.NoError(t, err)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Report(ctxA, alice, report.RangeAll, 0)
		errA <- err
	}()

	<-slow.started
	type result struct {
		rep report.Report
		err error
	}
	resB := make(chan result, 1)
	go func() {
		rep, err := svc.Report(context.Background(), alice, report.RangeAll, 0)
		resB <- result{rep, err}
	}()

	// Let B join the in-flight build before A goes away.
	time.Sleep(20 * time.Millisecond)
	cancelA()

	assert.ErrorIs(t, <-errA, context.Canceled, "canceled caller should see its own cancellation")

	select {
	case b := <-resB:
		require.NoError(t, b.err, "a peer's cancellation must not fail this caller")
		assert.Equal(t, int64(10000), b.rep.Totals.TotalExpense.Cents)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
}

func TestTransactionService_ReportCallerCanceled(t *testing.T) {
	slow := &slowStore{Store: memory.New(), delay: time.Second, started: make(chan struct{})}
	svc := NewTransactionService(slow, slow, Options{Logger: log.Discard()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Report(ctx, principal(t, "user_alice"), report.RangeAll, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "caller should not wait for the shared build")
}

func TestTransactionService_ReportUsesFullHistory(t *testing.T) {
	store := memory.New()
	svc := NewTransactionService(store, store, Options{ListLimit: 2, Logger: log.Discard()})
	ctx := context.Background()
	alice := principal(t, "user_alice")

	for _, d := range []string{"2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04"} {
		_, err := svc.Create(ctx, alice, expense("1", "Food", d))
		require.NoError(t, err)
	}

	list, _ := svc.List(ctx, alice)
	assert.Len(t, list, 2, "list should be capped")

	rep, err := svc.Report(ctx, alice, report.RangeAll, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Insights.Count)

	exported, err := svc.Export(ctx, alice, report.RangeAll)
	require.NoError(t, err)
	assert.Len(t, exported, 4, "export should cover full history")
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.ErrNotFound, log.ErrorTypeNotFound},
		{core.ErrUnauthenticated, log.ErrorTypeAuth},
		{ErrMissingID, log.ErrorTypeValidation},
		{&core.ValidationError{}, log.ErrorTypeValidation},
		{errors.New("disk full"), log.ErrorTypeDatabase},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err), "ErrorType(%v)", tt.err)
	}
}
