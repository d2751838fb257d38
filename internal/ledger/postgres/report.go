package postgres

import (
	"context"
	"fmt"

	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/jmoiron/sqlx"
)

// ReportRepository serves the read models (employer overview, history) with
// hand written SQL over sqlx.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const outstandingQuery = `
SELECT u.id AS userid,
       u.firstname,
       u.lastname,
       COALESCE((SELECT SUM(r.hours) FROM request r WHERE r.userid = u.id), 0) AS unpaid_hours,
       COALESCE(%s, 0) AS hourly_salary,
       COALESCE((SELECT SUM(p.salary) FROM permanent_salary p WHERE p.userid = u.id), 0) AS unpaid_permanent
FROM users u
WHERE EXISTS (SELECT 1 FROM request r WHERE r.userid = u.id)
   OR EXISTS (SELECT 1 FROM permanent_salary p WHERE p.userid = u.id)
ORDER BY u.id`

func rateExpression(policy ledger.RatePolicy) string {
	switch policy {
	case ledger.RatePolicyMax:
		return "(SELECT MAX(h.salary) FROM hour_salary h WHERE h.userid = u.id)"
	case ledger.RatePolicyLatest:
		return "(SELECT h.salary FROM hour_salary h WHERE h.userid = u.id ORDER BY h.id DESC LIMIT 1)"
	default:
		return "(SELECT SUM(h.salary) FROM hour_salary h WHERE h.userid = u.id)"
	}
}

func (r *ReportRepository) Outstanding(ctx context.Context, policy ledger.RatePolicy) ([]ledger.UnpaidRecord, error) {
	query := r.db.Rebind(fmt.Sprintf(outstandingQuery, rateExpression(policy)))

	records := []ledger.UnpaidRecord{}
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("select outstanding balances: %w", err)
	}
	return records, nil
}

const historyQuery = `
SELECT id, userid, hours, permanent, hourly_rate, total_paid, paid_at
FROM history
WHERE userid = ?
ORDER BY paid_at DESC, id DESC`

func (r *ReportRepository) History(ctx context.Context, userID int64) ([]payroll.HistoryEntry, error) {
	entries := []payroll.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(historyQuery), userID); err != nil {
		return nil, fmt.Errorf("select history for user %d: %w", userID, err)
	}
	return entries, nil
}
