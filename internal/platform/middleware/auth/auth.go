package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"lendgate/internal/platform/middleware"
	"lendgate/internal/token"
	"lendgate/pkg/httputil"

	dErrors "lendgate/pkg/domain-errors"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// Claims is the identity resolved from a bearer credential.
type Claims = token.Claims

// RoleAdmin is the role required for privileged user-management operations.
const RoleAdmin = "admin"

type identityKey struct{}

// Identity returns the authenticated caller from the context, or nil for
// unauthenticated requests.
func Identity(ctx context.Context) *Claims {
	if c, ok := ctx.Value(identityKey{}).(*Claims); ok {
		return c
	}
	return nil
}

// WithIdentity stores the caller identity on the context. Exported for tests.
func WithIdentity(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, identityKey{}, c)
}

// RequireAuth resolves the caller identity from the Authorization header.
// Authentication failure short-circuits with 401 and no audit write: nothing
// sensitive has happened yet.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenStr == "" {
				logger.WarnContext(ctx, "unauthorized access - missing bearer token",
					"request_id", middleware.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.Validate(tokenStr)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", middleware.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, claims)))
		})
	}
}

// OptionalAuth resolves the caller identity when a bearer token is present
// but lets anonymous requests through. Used by endpoints such as the ledger
// hash writer where authentication enriches the audit trail but is not a
// hard gate.
func OptionalAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tokenStr != "" {
				if claims, err := validator.Validate(tokenStr); err == nil {
					ctx = WithIdentity(ctx, claims)
				} else {
					logger.DebugContext(ctx, "optional auth token rejected", "error", err)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
