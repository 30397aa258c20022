// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing request bodies and query
// parameters shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/report"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DefaultTopCategories is used when the top parameter is absent.
const DefaultTopCategories = 6

var (
	ErrEmptyBody   = errors.New("request body is empty")
	ErrInvalidJSON = errors.New("request body is not valid JSON")
	ErrInvalidTop  = errors.New("top must be an integer between 1 and 50")
)

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown keys are ignored, so a client-supplied userId never reaches dst
// unless dst declares it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidJSON, maxErr.Limit)
		}
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return nil
}

// ReportParams holds the parsed report query.
type ReportParams struct {
	Range report.Range
	Top   int
}

// ParseReportParams reads range and top from the query string.
func ParseReportParams(query url.Values) (ReportParams, error) {
	r, err := report.ParseRange(query.Get("range"))
	if err != nil {
		return ReportParams{}, err
	}
	params := ReportParams{Range: r, Top: DefaultTopCategories}
	if v := strings.TrimSpace(query.Get("top")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			return ReportParams{}, ErrInvalidTop
		}
		params.Top = n
	}
	return params, nil
}

// sanitizeID strips control characters and whitespace from an id taken from the URL.
func sanitizeID(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
