package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

// handleContact accepts anonymous submissions; an authenticated sender is
// recorded so an account purge removes the message.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var in core.ContactInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.contacts.Submit(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"message": "Message sent successfully.",
		"contact": msg,
	}).Write(w)
}
