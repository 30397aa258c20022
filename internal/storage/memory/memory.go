// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type record struct {
	txn core.Transaction
	seq uint64
}

type Store struct {
	mu       sync.Mutex
	seq      uint64
	txns     map[string]record
	contacts []core.ContactMessage
	now      func() time.Time
}

func New() *Store {
	return &Store{
		txns: make(map[string]record),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) ListTransactions(_ context.Context, userID string, opts storage.ListOptions) ([]core.Transaction, error) {
	s.mu.Lock()
	recs := make([]record, 0)
	for _, r := range s.txns {
		if r.txn.UserID == userID {
			recs = append(recs, r)
		}
	}
	s.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.txn.Date.Equal(b.txn.Date.Time) {
			return a.txn.Date.After(b.txn.Date.Time)
		}
		if !a.txn.CreatedAt.Equal(b.txn.CreatedAt) {
			return a.txn.CreatedAt.After(b.txn.CreatedAt)
		}
		return a.seq > b.seq
	})
	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}

	out := make([]core.Transaction, len(recs))
	for i, r := range recs {
		out[i] = r.txn
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.seq++
	s.txns[t.ID] = record{txn: t, seq: s.seq}
	return t, nil
}

// owned returns the record only when it belongs to userID.
func (s *Store) owned(userID, id string) (record, bool) {
	r, ok := s.txns[id]
	if !ok || r.txn.UserID != userID {
		return record{}, false
	}
	return r, true
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.owned(userID, id)
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return r.txn, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return core.Transaction{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.owned(userID, id)
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	patch.Apply(&r.txn)
	r.txn.UpdatedAt = s.now()
	s.txns[id] = r
	return r.txn, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned(userID, id); !ok {
		return core.ErrNotFound
	}
	delete(s.txns, id)
	return nil
}

func (s *Store) DeleteUserTransactions(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.txns {
		if r.txn.UserID == userID {
			delete(s.txns, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateContactMessage(_ context.Context, m core.ContactMessage) (core.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.contacts = append(s.contacts, m)
	return m, nil
}

func (s *Store) DeleteUserContactMessages(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.contacts[:0]
	var n int64
	for _, m := range s.contacts {
		if m.UserID != "" && m.UserID == userID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.contacts = kept
	return n, nil
}

// ContactCount returns the number of stored contact messages.
func (s *Store) ContactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
