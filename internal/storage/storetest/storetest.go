// Package storetest holds behaviour tests shared by every storage.Store implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) storage.Store

// NewTxn builds a valid transaction owned by userID.
func NewTxn(userID string, typ core.TxnType, cents int64, date string) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		UserID:      userID,
		Type:        typ,
		Amount:      core.Money{Cents: cents},
		Description: "desc " + date,
		Category:    "Misc",
		Date:        d,
	}
}

// Run exercises the Store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateThenList", func(t *testing.T) { testCreateThenList(t, newStore(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, newStore(t)) })
	t.Run("Limit", func(t *testing.T) { testLimit(t, newStore(t)) })
	t.Run("OwnerIsolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
	t.Run("MissingAndMalformedIDs", func(t *testing.T) { testMissingIDs(t, newStore(t)) })
	t.Run("PartialUpdate", func(t *testing.T) { testPartialUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("DeleteUserData", func(t *testing.T) { testDeleteUserData(t, newStore(t)) })
}

func testCreateThenList(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := NewTxn("alice", core.Income, 150000, "2024-01-15")
	in.Description = "Salary"
	in.Category = "Salary"

	created, err := s.CreateTransaction(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	list, err := s.ListTransactions(ctx, "alice", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, core.Income, got.Type)
	assert.Equal(t, int64(150000), got.Amount.Cents)
	assert.Equal(t, "Salary", got.Description)
	assert.Equal(t, "Salary", got.Category)
	assert.Equal(t, "2024-01-15", got.Date.String())
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "created %v listed %v", created.CreatedAt, got.CreatedAt)
}

func testOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, d := range []string{"2024-01-10", "2024-03-01", "2023-12-31"} {
		_, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, 100, d))
		require.NoError(t, err)
	}
	first, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, 200, "2024-02-01"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, 300, "2024-02-01"))
	require.NoError(t, err)

	list, err := s.ListTransactions(ctx, "alice", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 5)

	var dates []string
	for _, tx := range list {
		dates = append(dates, tx.Date.String())
	}
	assert.Equal(t, []string{"2024-03-01", "2024-02-01", "2024-02-01", "2024-01-10", "2023-12-31"}, dates)
	// Same date: newest creation first.
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)
}

func testLimit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, int64(i), fmt.Sprintf("2024-01-%02d", i)))
		require.NoError(t, err)
	}
	list, err := s.ListTransactions(ctx, "alice", storage.ListOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-01-05", list[0].Date.String())
}

func testOwnerIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, 4000, "2024-01-02"))
	require.NoError(t, err)

	list, err := s.ListTransactions(ctx, "bob", storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.GetTransaction(ctx, "bob", a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	amount := core.Money{Cents: 1}
	_, err = s.UpdateTransaction(ctx, "bob", a.ID, core.TransactionPatch{Amount: &amount})
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = s.DeleteTransaction(ctx, "bob", a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	n, err := s.DeleteUserTransactions(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	still, err := s.GetTransaction(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), still.Amount.Cents)
}

func testMissingIDs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	desc := "x"
	for _, id := range []string{uuid.NewString(), "not-a-uuid", ""} {
		_, err := s.GetTransaction(ctx, "alice", id)
		assert.ErrorIs(t, err, core.ErrNotFound, id)
		_, err = s.UpdateTransaction(ctx, "alice", id, core.TransactionPatch{Description: &desc})
		assert.ErrorIs(t, err, core.ErrNotFound, id)
		assert.ErrorIs(t, s.DeleteTransaction(ctx, "alice", id), core.ErrNotFound, id)
	}
}

func testPartialUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := NewTxn("alice", core.Income, 150000, "2024-01-15")
	created, err := s.CreateTransaction(ctx, in)
	require.NoError(t, err)

	amount := core.Money{Cents: 160000}
	updated, err := s.UpdateTransaction(ctx, "alice", created.ID, core.TransactionPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(160000), updated.Amount.Cents)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "alice", updated.UserID)
	assert.Equal(t, core.Income, updated.Type)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Category, updated.Category)
	assert.Equal(t, "2024-01-15", updated.Date.String())

	typ := core.Expense
	date := core.NewDate(2024, 2, 29)
	cat := "Travel"
	updated, err = s.UpdateTransaction(ctx, "alice", created.ID, core.TransactionPatch{Type: &typ, Date: &date, Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, core.Expense, updated.Type)
	assert.Equal(t, "2024-02-29", updated.Date.String())
	assert.Equal(t, "Travel", updated.Category)
	assert.Equal(t, int64(160000), updated.Amount.Cents)

	zero := core.Money{}
	_, err = s.UpdateTransaction(ctx, "alice", created.ID, core.TransactionPatch{Amount: &zero})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, 100, "2024-01-01"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteTransaction(ctx, "alice", created.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "alice", created.ID), core.ErrNotFound)

	list, err := s.ListTransactions(ctx, "alice", storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testDeleteUserData(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.CreateTransaction(ctx, NewTxn("alice", core.Expense, 100, "2024-01-01"))
		require.NoError(t, err)
	}
	_, err := s.CreateTransaction(ctx, NewTxn("bob", core.Expense, 100, "2024-01-01"))
	require.NoError(t, err)

	msg := core.ContactMessage{UserID: "alice", Name: "A", Email: "a@example.com", Subject: core.DefaultSubject, Message: "hi"}
	stored, err := s.CreateContactMessage(ctx, msg)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	msg.UserID = ""
	_, err = s.CreateContactMessage(ctx, msg)
	require.NoError(t, err)

	n, err := s.DeleteUserTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.DeleteUserContactMessages(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bobs, err := s.ListTransactions(ctx, "bob", storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, bobs, 1)

	require.NoError(t, s.Ping(ctx))
}
