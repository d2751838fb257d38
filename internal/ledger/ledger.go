package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/core/events"
	"github.com/shopspring/decimal"
)

type RatePolicy string

const (
	RatePolicySum    RatePolicy = internal.RatePolicySum
	RatePolicyMax    RatePolicy = internal.RatePolicyMax
	RatePolicyLatest RatePolicy = internal.RatePolicyLatest
)

func ParseRatePolicy(s string) (RatePolicy, error) {
	switch RatePolicy(s) {
	case "":
		return RatePolicySum, nil
	case RatePolicySum, RatePolicyMax, RatePolicyLatest:
		return RatePolicy(s), nil
	}
	return "", fmt.Errorf("unknown rate policy %q", s)
}

// UnpaidRecords holds every row of the three unpaid sources for one user.
type UnpaidRecords struct {
	Hours     []payroll.WorkedHours
	Rates     []payroll.HourlyRate
	Permanent []payroll.PermanentSalary
}

func (r *UnpaidRecords) Empty() bool {
	return r == nil || (len(r.Hours) == 0 && len(r.Rates) == 0 && len(r.Permanent) == 0)
}

func (r *UnpaidRecords) HourIDs() []int64 {
	ids := make([]int64, 0, len(r.Hours))
	for _, h := range r.Hours {
		ids = append(ids, h.ID)
	}
	return ids
}

func (r *UnpaidRecords) PermanentIDs() []int64 {
	ids := make([]int64, 0, len(r.Permanent))
	for _, p := range r.Permanent {
		ids = append(ids, p.ID)
	}
	return ids
}

type BalanceTotals struct {
	UserID          int64           `json:"userid"`
	UnpaidHours     decimal.Decimal `json:"unpaidHours"`
	HourlySalary    decimal.Decimal `json:"hourlySalary"`
	UnpaidPermanent decimal.Decimal `json:"unpaidPermanentSalaries"`
	TotalSalary     decimal.Decimal `json:"totalSalary"`

	HoursRecords     int `json:"-"`
	RateRecords      int `json:"-"`
	PermanentRecords int `json:"-"`
}

func (b *BalanceTotals) HasRecords() bool {
	return b.HoursRecords+b.RateRecords+b.PermanentRecords > 0
}

// NothingOwed reports a balance with no unpaid hours and no unpaid permanent
// salary. A configured rate alone owes nothing.
func (b *BalanceTotals) NothingOwed() bool {
	return b.UnpaidHours.IsZero() && b.UnpaidPermanent.IsZero()
}

type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeNothingOwed Outcome = "nothing_owed"
)

type SettlementResult struct {
	EmployeeID      int64           `json:"employeeId"`
	TotalHours      decimal.Decimal `json:"totalHours"`
	HourlySalary    decimal.Decimal `json:"hourlySalary"`
	PermanentSalary decimal.Decimal `json:"permanentSalary"`
	TotalSalary     decimal.Decimal `json:"totalSalary"`
	Outcome         Outcome         `json:"outcome"`
	HistoryID       int64           `json:"historyId,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
}

// UnpaidRecord is one line of the employer overview.
type UnpaidRecord struct {
	UserID          int64           `json:"userid" db:"userid"`
	Firstname       string          `json:"firstname" db:"firstname"`
	Lastname        string          `json:"lastname" db:"lastname"`
	UnpaidHours     decimal.Decimal `json:"unpaid_hours" db:"unpaid_hours"`
	HourlySalary    decimal.Decimal `json:"hourlySalary" db:"hourly_salary"`
	UnpaidPermanent decimal.Decimal `json:"unpaid_permanent_salaries" db:"unpaid_permanent"`
	TotalSalary     decimal.Decimal `json:"totalSalary" db:"-"`
}

type HistorySummary struct {
	UserID         int64                  `json:"userid"`
	TotalHours     decimal.Decimal        `json:"totalHours"`
	TotalPermanent decimal.Decimal        `json:"totalPermanentSalaries"`
	TotalPaid      decimal.Decimal        `json:"totalPaid"`
	Entries        []payroll.HistoryEntry `json:"entries"`
}

// Store is the storage collaborator of the engine.
type Store interface {
	// UnpaidRecords reads outside of any settlement; used for view flows.
	UnpaidRecords(ctx context.Context, userID int64) (*UnpaidRecords, error)
	// WithinSettlement runs fn inside one transaction. fn returning an error
	// rolls back everything done through tx.
	WithinSettlement(ctx context.Context, employeeID int64, fn func(ctx context.Context, tx SettlementTx) error) error
}

type SettlementTx interface {
	// LockEmployee locks the employee row; internal.ErrEmployeeNotFound when missing.
	LockEmployee(ctx context.Context, employeeID int64) error
	// UnpaidRecords reads the unpaid rows with row locks held until commit.
	UnpaidRecords(ctx context.Context, employeeID int64) (*UnpaidRecords, error)
	// DeleteUnpaid removes exactly the hours and permanent rows in records.
	// Rows added after they were read stay unpaid.
	DeleteUnpaid(ctx context.Context, records *UnpaidRecords) error
	AppendHistory(ctx context.Context, entry *payroll.HistoryEntry) error
}

type ReportRepository interface {
	Outstanding(ctx context.Context, policy RatePolicy) ([]UnpaidRecord, error)
	History(ctx context.Context, userID int64) ([]payroll.HistoryEntry, error)
}

// EventPublisher receives the post-commit notifications of the engine.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
