package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Range selects the transactions a report covers, relative to a reference time.
type Range string

const (
	RangeAll     Range = "all"
	RangeMonth   Range = "month"
	RangeQuarter Range = "quarter"
	RangeYear    Range = "year"
)

var ErrInvalidRange = errors.New("range must be one of all, month, quarter, year")

// ParseRange accepts the range names case-insensitively; empty means all.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeMonth, RangeQuarter, RangeYear:
		return r, nil
	}
	return "", ErrInvalidRange
}

// Contains reports whether d falls in the calendar month, quarter or year of now.
func (r Range) Contains(d core.Date, now time.Time) bool {
	now = now.UTC()
	switch r {
	case RangeMonth:
		return d.Year() == now.Year() && d.Month() == now.Month()
	case RangeQuarter:
		return d.Year() == now.Year() && quarter(d.Month()) == quarter(now.Month())
	case RangeYear:
		return d.Year() == now.Year()
	default:
		return true
	}
}

// Period names the calendar window r covers at now, e.g. "2024-03" for a month.
// RangeAll has no window and yields "".
func (r Range) Period(now time.Time) string {
	now = now.UTC()
	switch r {
	case RangeMonth:
		return now.Format("2006-01")
	case RangeQuarter:
		return fmt.Sprintf("%d-Q%d", now.Year(), quarter(now.Month())+1)
	case RangeYear:
		return strconv.Itoa(now.Year())
	default:
		return ""
	}
}

func quarter(m time.Month) int {
	return (int(m) - 1) / 3
}

// Filter returns the transactions inside r. The input slice is not modified.
func Filter(txns []core.Transaction, r Range, now time.Time) []core.Transaction {
	if r == RangeAll || r == "" {
		return txns
	}
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if r.Contains(t.Date, now) {
			out = append(out, t)
		}
	}
	return out
}
