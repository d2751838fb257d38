package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal/notification"
)

const checkTimeout = 2 * time.Second

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// Check is one readiness component. A failing Critical check turns /health
// into a 503; any other failure only marks the service degraded.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) (map[string]any, error)
}

type HealthHandler struct {
	checks []Check
}

// NewHealthHandler always checks postgres first, then extra in order.
func NewHealthHandler(db *sql.DB, extra ...Check) *HealthHandler {
	checks := []Check{{
		Name:     "postgres",
		Critical: true,
		Run: func(ctx context.Context) (map[string]any, error) {
			return nil, db.PingContext(ctx)
		},
	}}
	return &HealthHandler{checks: append(checks, extra...)}
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     HealthHealthy,
		Components: make(map[string]CheckEntry, len(h.checks)),
	}

	for _, check := range h.checks {
		entry := run(r.Context(), check)
		resp.Components[check.Name] = entry
		switch {
		case entry.Status == HealthHealthy:
		case check.Critical:
			resp.Status = HealthUnhealthy
		case resp.Status == HealthHealthy:
			resp.Status = HealthDegraded
		}
	}
	resp.CheckedAt = time.Now()

	status := http.StatusOK
	if resp.Status == HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeHealthJSON(w, status, resp)
}

func run(ctx context.Context, check Check) CheckEntry {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	details, err := check.Run(ctx)
	entry := CheckEntry{
		Status:     HealthHealthy,
		Details:    details,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SchemaVersions is satisfied by *goose.Provider.
type SchemaVersions interface {
	GetVersions(ctx context.Context) (current, target int64, err error)
}

// MigrationCheck fails while the database is behind the embedded migrations.
func MigrationCheck(versions SchemaVersions) Check {
	return Check{
		Name:     "migrations",
		Critical: true,
		Run: func(ctx context.Context) (map[string]any, error) {
			current, target, err := versions.GetVersions(ctx)
			if err != nil {
				return nil, fmt.Errorf("read schema version: %w", err)
			}
			details := map[string]any{"current": current, "target": target}
			if current < target {
				return details, fmt.Errorf("schema at version %d, expected %d", current, target)
			}
			return details, nil
		},
	}
}

type DispatcherStats interface {
	Stats() notification.Stats
}

// NotificationCheck reports the webhook worker pool. Notifications are best
// effort, so the check never fails readiness.
func NotificationCheck(d DispatcherStats) Check {
	return Check{
		Name: "notifications",
		Run: func(ctx context.Context) (map[string]any, error) {
			stats := d.Stats()
			details := map[string]any{
				"workers":        stats.Workers,
				"queued":         stats.Queued,
				"queue_capacity": stats.QueueCapacity,
				"pending":        stats.Pending,
			}
			switch {
			case stats.Closed:
				return details, errors.New("dispatcher stopped")
			case stats.Queued >= stats.QueueCapacity:
				return details, errors.New("queue full")
			}
			return details, nil
		},
	}
}
