package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]int{"n": 1}).
		Write(rr)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Test"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "{\"n\":1}\n", rr.Body.String())
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		b    *JSONResponseBuilder
		code int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unauthorized", UnauthorizedError(), http.StatusUnauthorized},
		{"not found", NotFoundError("gone"), http.StatusNotFound},
		{"internal", InternalServerError("oops"), http.StatusInternalServerError},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests},
		{"client closed", ErrorResponse(statusClientClosedRequest, "Request canceled."), statusClientClosedRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.b.Write(rr)
			assert.Equal(t, tt.code, rr.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestValidationErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	ve := &core.ValidationError{Fields: []core.FieldError{{Field: "amount", Tag: "amount", Message: "must be a positive number"}}}
	ValidationErrorResponse(http.StatusUnprocessableEntity, ve).Write(rr)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "amount", body.Errors[0].Field)
}
