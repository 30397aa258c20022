package report

import (
	"time"

	"fintrack/internal/core"
)

// Report is the server-side summary of one owner's transactions.
type Report struct {
	Range       Range            `json:"range"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Totals      Summary          `json:"totals"`
	Insights    Insights         `json:"insights"`
	Breakdown   []CategoryAmount `json:"breakdown"`
	TopIncome   []CategoryAmount `json:"topIncomeCategories"`
	TopExpense  []CategoryAmount `json:"topExpenseCategories"`
}

// Build filters txns to r and computes every aggregate. topN <= 0 uses DefaultTopN.
func Build(txns []core.Transaction, r Range, now time.Time, topN int) Report {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if r == "" {
		r = RangeAll
	}
	scoped := Filter(txns, r, now)
	totals := Totals(scoped)
	breakdown := CategoryBreakdown(scoped)

	return Report{
		Range:       r,
		GeneratedAt: now.UTC(),
		Totals:      totals,
		Insights:    DerivedInsights(scoped, totals),
		Breakdown:   breakdown,
		TopIncome:   TopCategories(breakdown, core.Income, topN),
		TopExpense:  TopCategories(breakdown, core.Expense, topN),
	}
}
