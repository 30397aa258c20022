package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestWriteCSV(t *testing.T) {
	txns := []core.Transaction{
		{
			ID:          "t1",
			Type:        core.Expense,
			Amount:      core.Money{Cents: 1250},
			Description: `a,b"c`,
			Category:    "Food & Dining",
			Date:        core.NewDate(2024, 1, 15),
		},
		{
			ID:          "t2",
			Type:        core.Income,
			Amount:      core.Money{Cents: 150000},
			Description: "line one\nline two",
			Category:    "Salary",
			Date:        core.NewDate(2024, 1, 1),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, txns))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ID,Date,Type,Amount,Category,Description\n"))
	assert.Contains(t, out, `t1,2024-01-15,Expense,12.50,Food & Dining,"a,b""c"`)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `a,b"c`, records[1][5])
	assert.Equal(t, "line one\nline two", records[2][5])
	assert.Equal(t, "1500.00", records[2][3])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "ID,Date,Type,Amount,Category,Description\n", buf.String())
}

func TestFilenames(t *testing.T) {
	now := time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "financial_insights_2024-03-09.csv", CSVFilename(now))
	assert.Equal(t, "statement_year_2024-03-09.pdf", PDFFilename(RangeYear, now))
}

func TestWritePDF(t *testing.T) {
	now := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	txns := []core.Transaction{
		txn(core.Income, 150000, "Salary", "2024-01-15"),
		txn(core.Expense, 4000, "Café", "2024-01-16"),
	}
	txns[1].Description = "Coffee with a very long description that will be trimmed in the table"

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, Build(txns, RangeAll, now, 0), txns))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
