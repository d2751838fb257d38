package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payroll-ledger/api"
	"github.com/frahmantamala/payroll-ledger/internal/auth"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/frahmantamala/payroll-ledger/internal/salary"
	"github.com/frahmantamala/payroll-ledger/internal/transport/middleware"
	"github.com/frahmantamala/payroll-ledger/internal/transport/swagger"
	"github.com/frahmantamala/payroll-ledger/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups the domain handlers mounted by RegisterAllRoutes. A nil
// handler leaves its routes unmounted.
type Handlers struct {
	Auth   *auth.Handler
	User   *user.Handler
	Salary *salary.Handler
	Ledger *ledger.Handler
}

type RouterOptions struct {
	AllowedOrigins string
	Gate           *ledger.Gate
	// HealthChecks run after the postgres ping on /health.
	HealthChecks []Check
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, opts RouterOptions, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, opts.HealthChecks...)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec)
	})
	router.Handle("/swagger/*", swagger.Handler())

	requireEmployer := middleware.RequireEmployer(opts.Gate, logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}
			if h.Ledger != nil {
				pr.Get("/users/history", h.Ledger.GetHistory)
			}

			pr.Route("/salary", func(sr chi.Router) {
				if h.Salary != nil {
					sr.Post("/hours", h.Salary.AddHours)
					sr.Post("/permanent", h.Salary.AddPermanentSalary)
					sr.Post("/hourly", h.Salary.SetHourlyRate)
				}
				if h.Ledger != nil {
					sr.Get("/unpaid", h.Ledger.GetUnpaid)
					sr.Post("/payment/request", h.Ledger.RequestPayment)
				}

				// employer routes
				sr.Group(func(er chi.Router) {
					er.Use(requireEmployer)
					if h.Salary != nil {
						er.Put("/{employeeId}/hourly", h.Salary.UpdateHourlyRate)
					}
					if h.Ledger != nil {
						er.Post("/{employeeId}/payment", h.Ledger.Settle)
						er.Get("/unpaid/all", h.Ledger.GetOutstanding)
					}
				})
			})
		})
	})
}
