package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-at-least-32-bytes-long!!")

func TestNewPrincipal(t *testing.T) {
	tests := []struct {
		subject string
		prefix  string
		want    string
		wantErr bool
	}{
		{"user_2abc", DefaultUserPrefix, "2abc", false},
		{"2abc", DefaultUserPrefix, "2abc", false},
		{"  user_2abc ", DefaultUserPrefix, "2abc", false},
		{"user_2abc", "", "user_2abc", false},
		{"user_", DefaultUserPrefix, "", true},
		{"", DefaultUserPrefix, "", true},
	}
	for _, tt := range tests {
		p, err := NewPrincipal(tt.subject, tt.prefix)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrNoPrincipal, tt.subject)
			continue
		}
		require.NoError(t, err, tt.subject)
		assert.Equal(t, tt.want, p.ID())
	}
}

func TestPrefixedAndBareSubjectsShareIdentity(t *testing.T) {
	a, err := NewPrincipal("user_42", DefaultUserPrefix)
	require.NoError(t, err)
	b, err := NewPrincipal("42", DefaultUserPrefix)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	p, _ := NewPrincipal("abc", "")
	got, ok := FromContext(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, "abc", got.ID())
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: string(secret), Issuer: "idp", UserPrefix: DefaultUserPrefix})

	token, err := GenerateToken("user_xyz", secret, time.Hour, "idp")
	require.NoError(t, err)
	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "xyz", p.ID())

	t.Run("wrong secret", func(t *testing.T) {
		bad, err := GenerateToken("user_xyz", []byte("another-secret-another-secret!!!"), time.Hour, "idp")
		require.NoError(t, err)
		_, err = v.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := GenerateToken("user_xyz", secret, -time.Minute, "idp")
		require.NoError(t, err)
		_, err = v.Verify(old)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := GenerateToken("user_xyz", secret, time.Hour, "someone-else")
		require.NoError(t, err)
		_, err = v.Verify(other)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty subject", func(t *testing.T) {
		empty, err := GenerateToken("user_", secret, time.Hour, "idp")
		require.NoError(t, err)
		_, err = v.Verify(empty)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerifierAudience(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: string(secret), Audience: "fintrack"})

	ok, err := GenerateToken("abc", secret, time.Hour, "", "fintrack")
	require.NoError(t, err)
	_, err = v.Verify(ok)
	require.NoError(t, err)

	missing, err := GenerateToken("abc", secret, time.Hour, "")
	require.NoError(t, err)
	_, err = v.Verify(missing)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: string(secret), UserPrefix: DefaultUserPrefix})
	var seen string
	var invalid int
	h := Middleware(v, func(*http.Request, error) { invalid++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := FromContext(r.Context()); ok {
			seen = p.ID()
		} else {
			seen = ""
		}
	}))

	token, err := GenerateToken("user_me", secret, time.Hour, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "me", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "", seen)
	assert.Equal(t, 0, invalid)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "", seen)
	assert.Equal(t, 1, invalid)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", BearerToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
}
