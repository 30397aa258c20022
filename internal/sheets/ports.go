package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a spreadsheet copy of the transaction ledger. Rows are keyed
	// by transaction id; every method is idempotent so redelivered events are safe.
	Mirror interface {
		AppendTransaction(ctx context.Context, t core.Transaction) error
		// UpdateTransaction rewrites the row of t, appending it when missing.
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		// DeleteTransaction removes the row of id; a missing row is not an error.
		DeleteTransaction(ctx context.Context, id string) error
		// DeleteUser removes every row owned by userID and reports how many went.
		DeleteUser(ctx context.Context, userID string) (int, error)
	}
)

// Header is the first row of a mirror sheet.
var Header = []string{"ID", "User", "Date", "Type", "Amount", "Category", "Description", "Updated"}
