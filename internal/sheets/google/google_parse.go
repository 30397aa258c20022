package google

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Column positions in the mirror sheet.
const (
	colID   = 0
	colUser = 1
)

// a1 builds an A1 range for sheet, quoting the sheet name.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}

// rowFor renders t in column order A..H.
func rowFor(t core.Transaction) []any {
	return []any{
		t.ID,
		t.UserID,
		t.Date.String(),
		string(t.Type),
		t.Amount.String(),
		t.Category,
		t.Description,
		t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// matchingRows returns the zero-based indexes of rows whose column col equals
// value, in descending order so they can be deleted one after another.
func matchingRows(values [][]any, col int, value string) []int64 {
	var out []int64
	for i, row := range values {
		cols := toStrings(row)
		if col >= len(cols) || cols[col] != value {
			continue
		}
		out = append(out, int64(i))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
