package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense TxnType = "Expense"
	Income  TxnType = "Income"
)

const (
	MaxDescriptionLength = 250
	MaxCategoryLength    = 100
	DefaultSubject       = "No Subject Provided"
)

type (
	// TxnType tags a transaction as money going out or coming in.
	TxnType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string    `json:"_id"`
		UserID      string    `json:"userId"`
		Type        TxnType   `json:"type"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Date        Date      `json:"date"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// TransactionPatch holds the fields of a partial update. Nil means unchanged.
	// There is deliberately no owner field: ownership never changes.
	TransactionPatch struct {
		Type        *TxnType
		Amount      *Money
		Description *string
		Category    *string
		Date        *Date
	}

	ContactMessage struct {
		ID        string    `json:"_id"`
		UserID    string    `json:"userId,omitempty"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Subject   string    `json:"subject"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("transaction not found or not authorized")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyUser       = errors.New("empty user id")
)

// ParseTxnType matches s case-insensitively and returns the canonical spelling.
func ParseTxnType(s string) (TxnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return Expense, nil
	case "income":
		return Income, nil
	}
	return "", ErrInvalidType
}

func (t TxnType) Valid() bool {
	return t == Expense || t == Income
}

func (t TxnType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, which is truncated to its UTC date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeCategory trims the label and collapses internal whitespace runs.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Description == "" || t.Category == "" {
		return errors.New("description and category are required")
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.Description == nil && p.Category == nil && p.Date == nil
}

// Apply copies the present fields onto t.
func (p TransactionPatch) Apply(t *Transaction) {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
}
