package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/snowballr/snowballr-api/internal/auth"
)

// AuthenticationHeader carries the session token.
const AuthenticationHeader = "authenticationToken"

// Identifier resolves a session token to a principal.
type Identifier interface {
	Identify(ctx context.Context, raw string) (auth.Principal, error)
}

// Identity resolves the authenticationToken header into a principal and
// attaches it to the request context. It never rejects a request: a missing
// or invalid token leaves the unauthenticated principal in place and the
// route's requirement decides.
func Identity(identifier Identifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(AuthenticationHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := identifier.Identify(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					slog.Warn("resolving session token failed", "error", err, "requestId", GetRequestID(r.Context()))
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
		})
	}
}
