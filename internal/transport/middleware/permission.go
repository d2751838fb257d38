package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/frahmantamala/payroll-ledger/internal/transport"
)

// RequireEmployer rejects requests whose authenticated user may not act on
// other employees' ledgers. It must run after the auth middleware.
func RequireEmployer(gate *ledger.Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	if gate == nil {
		gate = ledger.NewGate()
	}
	base := transport.NewBaseHandler(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := internal.UserFromContext(r.Context())
			if !ok {
				base.HandleError(w, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken))
				return
			}

			if err := gate.AuthorizeSettlement(user); err != nil {
				base.Logger.Warn("access denied: employer role required",
					"user_id", user.ID,
					"role", user.Role,
					"path", r.URL.Path)
				base.HandleServiceError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
