package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents keeps amounts well inside int64 after summing a large history.
const maxCents = int64(1_000_000_000_000_00)

type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money, rounding half away from zero
// to two fractional digits. The rounded amount must be strictly positive.
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("1.005")  -> 101
//	ParseAmount("0.004")  -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MoneyFromDecimal rounds d to cents. Sign is preserved; callers validate.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > maxCents {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the value as float64 for display and percentage math.
// Sums are always done in cents.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// MarshalJSON encodes the amount as a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	d, err := decimal.NewFromString(strings.Trim(string(b), `"`))
	if err != nil {
		return ErrInvalidAmount
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
