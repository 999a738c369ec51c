package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/frahmantamala/datashare/internal/transport"
	"github.com/samber/lo"
)

// RequireGlobalRole rejects callers whose global role is not one of roles.
// It must run after the auth middleware has resolved the caller.
func RequireGlobalRole(logger *slog.Logger, roles ...identity.GlobalRole) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := internal.CallerFromContext(r.Context())
			if !caller.Authenticated() {
				base.WriteAppError(w, r, internal.ErrNotAuthenticated)
				return
			}

			if !lo.Contains(roles, caller.Role) {
				logger.Warn("access denied: caller lacks required role",
					"user_id", caller.ID,
					"required_roles", roles,
					"role", caller.Role)
				base.WriteAppError(w, r, internal.ErrNotAuthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireGlobalRole(logger, identity.RoleAdmin)
}
