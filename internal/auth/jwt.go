package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Verifier validates HS256 session tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	prefix   string
}

// VerifierConfig configures a Verifier. Issuer and Audience are checked only when set.
type VerifierConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	UserPrefix string
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		prefix:   cfg.UserPrefix,
	}
}

// Verify parses the token, checks signature and registered claims, and
// returns the canonical principal for its subject.
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	p, err := NewPrincipal(claims.Subject, v.prefix)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return p, nil
}

// GenerateToken signs a token for subject. Used by tests and local tooling;
// production tokens come from the identity provider.
func GenerateToken(subject string, secret []byte, validity time.Duration, issuer string, audience ...string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
	if len(audience) > 0 {
		claims.Audience = audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
