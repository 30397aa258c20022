// Package report folds transaction lists into totals, category breakdowns and
// derived insights, and renders them as CSV or PDF.
//
// Every function here is pure: the same input list always yields the same output.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DefaultTopN is the number of categories shown per type in a report.
const DefaultTopN = 6

// Summary holds the income/expense totals of a transaction list.
type Summary struct {
	TotalIncome  core.Money `json:"totalIncome"`
	TotalExpense core.Money `json:"totalExpense"`
	NetBalance   core.Money `json:"netBalance"`
}

// CategoryAmount is the summed amount of one (category, type) pair.
type CategoryAmount struct {
	Category string       `json:"category"`
	Type     core.TxnType `json:"type"`
	Amount   core.Money   `json:"amount"`
}

// Insights are metrics derived from a list and its totals.
type Insights struct {
	SavingsRate    float64    `json:"savingsRate"` // percent, one decimal
	AvgTransaction core.Money `json:"avgTransaction"`
	LargestIncome  core.Money `json:"largestIncome"`
	LargestExpense core.Money `json:"largestExpense"`
	Count          int        `json:"count"`
}

// contribution is the amount a transaction adds to sums. Non-positive amounts
// count as zero.
func contribution(t core.Transaction) int64 {
	if t.Amount.Cents <= 0 {
		return 0
	}
	return t.Amount.Cents
}

// Totals sums income and expense amounts. Unknown types are ignored.
func Totals(txns []core.Transaction) Summary {
	var income, expense int64
	for _, t := range txns {
		switch t.Type {
		case core.Income:
			income += contribution(t)
		case core.Expense:
			expense += contribution(t)
		}
	}
	return Summary{
		TotalIncome:  core.Money{Cents: income},
		TotalExpense: core.Money{Cents: expense},
		NetBalance:   core.Money{Cents: income - expense},
	}
}

// CategoryBreakdown sums amounts per (category, type). The result is sorted by
// amount descending, then category and type ascending.
func CategoryBreakdown(txns []core.Transaction) []CategoryAmount {
	type key struct {
		category string
		typ      core.TxnType
	}
	sums := make(map[key]int64)
	for _, t := range txns {
		if !t.Type.Valid() {
			continue
		}
		sums[key{t.Category, t.Type}] += contribution(t)
	}

	out := make([]CategoryAmount, 0, len(sums))
	for k, cents := range sums {
		out = append(out, CategoryAmount{Category: k.category, Type: k.typ, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// TopCategories returns at most n entries of typ from a sorted breakdown.
// Zero-amount entries are skipped.
func TopCategories(breakdown []CategoryAmount, typ core.TxnType, n int) []CategoryAmount {
	out := make([]CategoryAmount, 0, n)
	for _, c := range breakdown {
		if len(out) >= n {
			break
		}
		if c.Type == typ && c.Amount.Cents > 0 {
			out = append(out, c)
		}
	}
	return out
}

// DerivedInsights computes savings rate, average and extrema. Every metric is
// zero when its denominator or subset is empty.
func DerivedInsights(txns []core.Transaction, totals Summary) Insights {
	ins := Insights{Count: len(txns)}

	if totals.TotalIncome.Cents != 0 {
		rate := decimal.New(totals.NetBalance.Cents, 0).
			Div(decimal.New(totals.TotalIncome.Cents, 0)).
			Mul(decimal.NewFromInt(100)).
			Round(1)
		ins.SavingsRate = rate.InexactFloat64()
	}

	if len(txns) > 0 {
		sum := decimal.New(totals.TotalIncome.Cents+totals.TotalExpense.Cents, 0)
		avg := sum.Div(decimal.NewFromInt(int64(len(txns)))).Round(0)
		ins.AvgTransaction = core.Money{Cents: avg.IntPart()}
	}

	for _, t := range txns {
		c := contribution(t)
		switch t.Type {
		case core.Income:
			if c > ins.LargestIncome.Cents {
				ins.LargestIncome.Cents = c
			}
		case core.Expense:
			if c > ins.LargestExpense.Cents {
				ins.LargestExpense.Cents = c
			}
		}
	}
	return ins
}
