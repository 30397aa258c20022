package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"fintrack/internal/core"
)

const (
	statementMaxRows = 500
	pageBreakY       = 270
)

var statementCols = []float64{26, 22, 48, 62, 28}

// PDFFilename is the attachment name for a statement generated at now.
func PDFFilename(r Range, now time.Time) string {
	return "statement_" + string(r) + "_" + now.UTC().Format(time.DateOnly) + ".pdf"
}

// WritePDF renders an A4 statement with the report totals and the transactions
// in the report range.
func WritePDF(w io.Writer, rep Report, txns []core.Transaction) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Financial Statement")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Range: "+string(rep.Range)+"   Generated: "+rep.GeneratedAt.Format(time.RFC3339))
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	sumW := []float64{46, 46, 46, 44}
	pdf.CellFormat(sumW[0], 10, "Income", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Expense", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Net balance", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[3], 10, "Savings rate", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, rep.Totals.TotalIncome.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, rep.Totals.TotalExpense.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, rep.Totals.NetBalance.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[3], 10, fmt.Sprintf("%.1f%%", rep.Insights.SavingsRate), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	tableHeader(pdf)
	scoped := Filter(txns, rep.Range, rep.GeneratedAt)
	for i, t := range scoped {
		if i >= statementMaxRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, fmt.Sprintf("truncated after %d rows", statementMaxRows), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			tableHeader(pdf)
		}
		amount := t.Amount.String()
		if t.Type == core.Expense {
			amount = "-" + amount
		}
		pdf.CellFormat(statementCols[0], 8, t.Date.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(statementCols[1], 8, string(t.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(statementCols[2], 8, tr(trimTo(t.Category, 28)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(statementCols[3], 8, tr(trimTo(t.Description, 36)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(statementCols[4], 8, amount, "1", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	return nil
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(statementCols[0], 8, "DATE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(statementCols[1], 8, "TYPE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(statementCols[2], 8, "CATEGORY", "1", 0, "L", true, 0, "")
	pdf.CellFormat(statementCols[3], 8, "DESCRIPTION", "1", 0, "L", true, 0, "")
	pdf.CellFormat(statementCols[4], 8, "AMOUNT", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
}

func trimTo(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-1]) + "..."
}
