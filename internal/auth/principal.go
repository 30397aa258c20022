// Package auth turns identity-provider session tokens into a canonical Principal.
//
// The provider id is normalized exactly once, here. Everything downstream
// receives a Principal and uses Principal.ID as the stored owner key.
package auth

import (
	"context"
	"errors"
	"strings"
)

// DefaultUserPrefix is the provider-specific prefix stripped from subject ids.
const DefaultUserPrefix = "user_"

var ErrNoPrincipal = errors.New("no authenticated principal")

// Principal is the authenticated identity making a request. The zero value is
// not a valid principal.
type Principal struct {
	id string
}

// NewPrincipal canonicalizes a provider subject id: surrounding whitespace is
// trimmed and prefix, when present, is removed. An id that is empty after
// canonicalization is rejected.
func NewPrincipal(subject, prefix string) (Principal, error) {
	id := strings.TrimSpace(subject)
	if prefix != "" {
		id = strings.TrimPrefix(id, prefix)
	}
	if id == "" {
		return Principal{}, ErrNoPrincipal
	}
	return Principal{id: id}, nil
}

// ID is the canonical owner key.
func (p Principal) ID() string {
	return p.id
}

func (p Principal) IsZero() bool {
	return p.id == ""
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored by the middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok || p.IsZero() {
		return Principal{}, false
	}
	return p, true
}
