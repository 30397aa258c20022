package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTxnType(t *testing.T) {
	cases := []struct {
		in   string
		want TxnType
		ok   bool
	}{
		{"Expense", Expense, true},
		{"income", Income, true},
		{" INCOME ", Income, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTxnType(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidType, "%q", tc.in)
			continue
		}
		if assert.NoError(t, err, "%q", tc.in) {
			assert.Equal(t, tc.want, got, "%q", tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", d.String())

	d, err = ParseDate("2024-01-15T23:30:00-02:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16", d.String(), "timestamps are reduced to their UTC date")

	for _, bad := range []string{"", "15/01/2024", "2024-13-01", "yesterday"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, "%q", bad)
	}
	assert.Error(t, Date{Time: time.Time{}}.Validate(), "zero date should not validate")
}

func TestTransactionInputToTransaction(t *testing.T) {
	in := TransactionInput{
		Type:        "income",
		Amount:      json.Number("1500"),
		Description: "  Salary  ",
		Category:    " Salary ",
		Date:        "2024-01-15",
	}
	txn, err := in.ToTransaction("abc")
	require.NoError(t, err)
	assert.Equal(t, Income, txn.Type)
	assert.Equal(t, int64(150000), txn.Amount.Cents)
	assert.Equal(t, "Salary", txn.Description)
	assert.Equal(t, "Salary", txn.Category)
	assert.Equal(t, "2024-01-15", txn.Date.String())
	assert.Equal(t, "abc", txn.UserID)
	assert.NoError(t, txn.Validate(), "built transaction should validate")
}

func TestTransactionInputValidationErrors(t *testing.T) {
	good := TransactionInput{
		Type: "Expense", Amount: "12.50", Description: "Lunch", Category: "Food & Dining", Date: "2024-02-01",
	}
	cases := []struct {
		name  string
		mod   func(*TransactionInput)
		field string
	}{
		{"missing type", func(in *TransactionInput) { in.Type = "" }, "type"},
		{"bad type", func(in *TransactionInput) { in.Type = "Transfer" }, "type"},
		{"zero amount", func(in *TransactionInput) { in.Amount = "0" }, "amount"},
		{"negative amount", func(in *TransactionInput) { in.Amount = "-3" }, "amount"},
		{"missing amount", func(in *TransactionInput) { in.Amount = "" }, "amount"},
		{"blank description", func(in *TransactionInput) { in.Description = "   " }, "description"},
		{"long description", func(in *TransactionInput) { in.Description = strings.Repeat("x", 251) }, "description"},
		{"blank category", func(in *TransactionInput) { in.Category = "" }, "category"},
		{"bad date", func(in *TransactionInput) { in.Date = "not-a-date" }, "date"},
		{"missing date", func(in *TransactionInput) { in.Date = "" }, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mod(&in)
			_, err := in.ToTransaction("abc")
			ve, ok := AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.True(t, ve.Has(tc.field), "expected failure on %q, got %+v", tc.field, ve.Fields)
		})
	}
}

func TestDescriptionLimitCountsCharacters(t *testing.T) {
	in := TransactionInput{
		Type: "Expense", Amount: "1", Description: strings.Repeat("é", 250), Category: "Other", Date: "2024-02-01",
	}
	_, err := in.ToTransaction("abc")
	assert.NoError(t, err, "250 characters should be accepted")
}

func TestCategoryNormalized(t *testing.T) {
	assert.Equal(t, "Food & Dining", NormalizeCategory("  Food   &\tDining "))
}

func TestUpdateInputIgnoresUserID(t *testing.T) {
	var in TransactionUpdateInput
	body := `{"_id":"t1","userId":"someone-else","amount":1600}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	assert.Equal(t, "t1", in.RecordID())

	p, err := in.ToPatch()
	require.NoError(t, err)
	require.NotNil(t, p.Amount)
	assert.Equal(t, int64(160000), p.Amount.Cents)
	assert.Nil(t, p.Type)
	assert.Nil(t, p.Description)
	assert.Nil(t, p.Category)
	assert.Nil(t, p.Date)

	txn := Transaction{UserID: "owner", Amount: Money{Cents: 150000}, Description: "Salary"}
	p.Apply(&txn)
	assert.Equal(t, "owner", txn.UserID)
	assert.Equal(t, int64(160000), txn.Amount.Cents)
	assert.Equal(t, "Salary", txn.Description)
}

func TestUpdateInputAltIDAndErrors(t *testing.T) {
	var in TransactionUpdateInput
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t2","amount":0,"description":" "}`), &in))
	assert.Equal(t, "t2", in.RecordID())

	_, err := in.ToPatch()
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.True(t, ve.Has("amount"))
	assert.True(t, ve.Has("description"))
}

func TestContactInput(t *testing.T) {
	msg, err := ContactInput{Name: " Ann ", Email: " Ann@Example.COM ", Message: "hello"}.ToContactMessage("")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", msg.Email)
	assert.Equal(t, DefaultSubject, msg.Subject)
	assert.Equal(t, "Ann", msg.Name)

	_, err = ContactInput{Name: "Ann", Email: "nope", Message: "hi"}.ToContactMessage("")
	ve, ok := AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.True(t, ve.Has("email"))
}
