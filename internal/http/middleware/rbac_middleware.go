package middleware

import (
	"net/http"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/service"
)

// RequireRole gates a route behind a minimum role, resolved live against
// group memberships rather than the access token's snapshot so revoking a
// membership takes effect within one request, not one token lifetime.
func RequireRole(resolver service.RoleResolver, minimum domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
				return
			}
			role, has, err := resolver.HighestRole(claims.Subject)
			if err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "RBAC_UNAVAILABLE", "role resolution unavailable", nil)
				return
			}
			if !has || !role.AtLeast(minimum) {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role", map[string]string{"required": string(minimum)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
