package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"valid", `{"_id":"a","amount":12.5}`, nil},
		{"unknown keys ignored", `{"_id":"a","userId":"x"}`, nil},
		{"empty", ``, ErrEmptyBody},
		{"malformed", `{"_id":`, ErrInvalidJSON},
		{"trailing", `{"_id":"a"} {"_id":"b"}`, ErrInvalidJSON},
		{"too large", `{"description":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var in core.TransactionUpdateInput
			err := DecodeJSON(httptest.NewRecorder(), req, &in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", in.RecordID())
		})
	}
}

func TestParseReportParams(t *testing.T) {
	tests := []struct {
		query     string
		wantRange report.Range
		wantTop   int
		wantErr   bool
	}{
		{"", report.RangeAll, DefaultTopCategories, false},
		{"range=Month&top=3", report.RangeMonth, 3, false},
		{"range=quarter", report.RangeQuarter, DefaultTopCategories, false},
		{"range=week", "", 0, true},
		{"top=abc", "", 0, true},
		{"top=51", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := ParseReportParams(q)
			if tt.wantErr {
				assert.Error(t, err, "got %+v", got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRange, got.Range)
			assert.Equal(t, tt.wantTop, got.Top)
		})
	}
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "abc", sanitizeID(" ab\x00c\n "))
}
