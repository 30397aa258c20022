package auth

import (
	"net/http"
	"strings"
)

// TokenVerifier is implemented by *Verifier.
type TokenVerifier interface {
	Verify(token string) (Principal, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware attaches the principal of a valid bearer token to the request
// context. Requests without a valid token pass through unauthenticated;
// handlers decide whether a principal is required.
func Middleware(v TokenVerifier, onInvalid func(r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				if onInvalid != nil {
					onInvalid(r, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
