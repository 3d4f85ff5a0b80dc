package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Middleware wires bearer-token authentication and role checks.
type Middleware struct {
	Verifier *Verifier
	Logger   *slog.Logger
}

// Authenticate rejects requests without a valid bearer token and stores the
// principal in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httpx.Fail(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}
		principal, err := m.Verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("auth: rejected token", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			httpx.Fail(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRole lets the request through only when the principal holds one of roles.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Not authorized to access this route")
				return
			}
			if !principal.HasRole(roles...) {
				httpx.Fail(w, http.StatusForbidden, "User role "+principal.Role+" is not authorized to access this route")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromRequest returns the request principal, answering 401 when absent.
func FromRequest(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Not authorized to access this route")
	}
	return principal, ok
}
