package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"fintrack/internal/core"
)

var csvHeader = []string{"ID", "Date", "Type", "Amount", "Category", "Description"}

// CSVFilename is the attachment name for an export generated at now.
func CSVFilename(now time.Time) string {
	return "financial_insights_" + now.UTC().Format(time.DateOnly) + ".csv"
}

// WriteCSV writes one row per transaction after a header row. Fields containing
// commas, quotes or newlines are quoted and embedded quotes doubled.
func WriteCSV(w io.Writer, txns []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range txns {
		record := []string{
			t.ID,
			t.Date.String(),
			string(t.Type),
			t.Amount.String(),
			t.Category,
			t.Description,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
