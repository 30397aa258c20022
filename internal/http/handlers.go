package http

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/services"
)

const msgNotFound = "Transaction not found or not authorized."

// statusClientClosedRequest marks requests abandoned by the client before a
// response was ready. It only reaches logs and metrics.
const statusClientClosedRequest = 499

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	txns, err := s.txns.List(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	NewJSONResponse().Body(map[string]any{
		"message":      "Transactions fetched successfully.",
		"transactions": txns,
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var in core.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.txns.Create(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"message":     "Transaction created successfully.",
		"transaction": t,
	}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var in core.TransactionUpdateInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.txns.Update(r.Context(), p, in)
	if err != nil {
		// A bad amount is a 400 like on create; other schema violations are 422.
		if ve, ok := core.AsValidationError(err); ok && !ve.Has("amount") {
			ValidationErrorResponse(http.StatusUnprocessableEntity, ve).Write(w)
			return
		}
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"message":     "Transaction updated successfully.",
		"transaction": t,
	}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id := sanitizeID(r.URL.Query().Get("id"))
	if id == "" {
		BadRequestError("Transaction ID is required.").Write(w)
		return
	}
	if err := s.txns.Delete(r.Context(), p, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"message":      "Transaction deleted successfully.",
		"deletedCount": 1,
	}).Write(w)
}

func (s *Server) handlePurgeAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	res, err := s.txns.Purge(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"message":             "Successfully deleted user data.",
		"success":             true,
		"deletedTxnCount":     res.DeletedTxnCount,
		"deletedContactCount": res.DeletedContactCount,
	}).Write(w)
}

// writeError maps domain errors to status codes. Unknown errors become a
// generic 500 and are logged with their cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := core.AsValidationError(err); ok {
		ValidationErrorResponse(http.StatusBadRequest, ve).Write(w)
		return
	}

	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		UnauthorizedError().Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(msgNotFound).Write(w)
	case errors.Is(err, services.ErrMissingID):
		BadRequestError("Transaction ID (_id) is required for update.").Write(w)
	case errors.Is(err, core.ErrInvalidAmount):
		BadRequestError("Amount must be a positive number.").Write(w)
	case errors.Is(err, core.ErrInvalidType):
		BadRequestError("Type must be Expense or Income.").Write(w)
	case errors.Is(err, core.ErrInvalidDate):
		BadRequestError("Date must be a valid YYYY-MM-DD date.").Write(w)
	case errors.Is(err, ErrEmptyBody):
		BadRequestError("Request body is required.").Write(w)
	case errors.Is(err, ErrInvalidJSON):
		BadRequestError("Request body is not valid JSON.").Write(w)
	case errors.Is(err, report.ErrInvalidRange), errors.Is(err, ErrInvalidTop):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).DebugContext(r.Context(), "Request canceled by client",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(statusClientClosedRequest, "Request canceled.").Write(w)
	default:
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, services.ErrorType(err),
			log.FieldError, err)
		InternalServerError("Internal server error.").Write(w)
	}
}
