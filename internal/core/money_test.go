package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1500", 150000, true},
		{"0.004", 0, false}, // rounds to zero
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1,23", 0, false},
		{"", 0, false},
		{"1e20", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.Error(t, err, "%q", tc.in)
			continue
		}
		if assert.NoError(t, err, "%q", tc.in) {
			assert.Equal(t, tc.out, got.Cents, "%q", tc.in)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 160000}})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":1600.00}`, string(b))

	var decoded struct {
		Amount float64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 1600.0, decoded.Amount)

	var m Money
	require.NoError(t, json.Unmarshal([]byte("12.5"), &m))
	assert.Equal(t, int64(1250), m.Cents)
}

func TestMoneyValidate(t *testing.T) {
	assert.NoError(t, Money{Cents: 1}.Validate())
	assert.Error(t, Money{Cents: 0}.Validate(), "zero")
	assert.Error(t, Money{Cents: -5}.Validate(), "negative")
}
