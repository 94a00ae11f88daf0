package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"lendgate/internal/token"
)

type stubValidator struct {
	claims *token.Claims
	err    error
}

func (s stubValidator) Validate(string) (*token.Claims, error) {
	return s.claims, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRequireAuthMissingHeader(t *testing.T) {
	called := false
	h := RequireAuth(stubValidator{}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	h := RequireAuth(stubValidator{err: errors.New("bad signature")}, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be reached")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bad signature")
}

func TestRequireAuthStoresIdentity(t *testing.T) {
	claims := &token.Claims{UserID: "u1", Role: RoleAdmin}
	var got *Claims
	h := RequireAuth(stubValidator{claims: claims}, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = Identity(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, claims, got)
}

func TestOptionalAuthAnonymousAllowed(t *testing.T) {
	var got *Claims
	h := OptionalAuth(stubValidator{err: errors.New("no")}, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = Identity(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)
}
