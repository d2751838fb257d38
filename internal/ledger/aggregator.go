package ledger

import (
	"context"
	"fmt"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/shopspring/decimal"
)

type Aggregator struct {
	store  Store
	policy RatePolicy
}

func NewAggregator(store Store, policy RatePolicy) *Aggregator {
	if policy == "" {
		policy = RatePolicySum
	}
	return &Aggregator{store: store, policy: policy}
}

func (a *Aggregator) Policy() RatePolicy {
	return a.policy
}

// ComputeBalance returns the unpaid totals of userID. A user with no rows at
// all gets a zero balance, not an error.
func (a *Aggregator) ComputeBalance(ctx context.Context, userID int64) (*BalanceTotals, error) {
	if userID <= 0 {
		return nil, internal.ErrInvalidUser
	}

	records, err := a.store.UnpaidRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read unpaid records for user %d: %w", userID, err)
	}

	return Aggregate(userID, records, a.policy), nil
}

// Aggregate folds the raw rows into totals. It is shared by the read path
// and the settlement transaction so both compute identical numbers.
func Aggregate(userID int64, records *UnpaidRecords, policy RatePolicy) *BalanceTotals {
	totals := &BalanceTotals{
		UserID:          userID,
		UnpaidHours:     decimal.Zero,
		HourlySalary:    decimal.Zero,
		UnpaidPermanent: decimal.Zero,
		TotalSalary:     decimal.Zero,
	}
	if records == nil {
		return totals
	}

	for _, h := range records.Hours {
		totals.UnpaidHours = totals.UnpaidHours.Add(h.Hours)
	}
	for _, p := range records.Permanent {
		totals.UnpaidPermanent = totals.UnpaidPermanent.Add(p.Salary)
	}
	totals.HourlySalary = EffectiveRate(records.Rates, policy)

	totals.HoursRecords = len(records.Hours)
	totals.RateRecords = len(records.Rates)
	totals.PermanentRecords = len(records.Permanent)

	totals.TotalSalary = totals.UnpaidHours.Mul(totals.HourlySalary).Add(totals.UnpaidPermanent)
	return totals
}

func EffectiveRate(rates []payroll.HourlyRate, policy RatePolicy) decimal.Decimal {
	if len(rates) == 0 {
		return decimal.Zero
	}

	switch policy {
	case RatePolicyMax:
		best := rates[0].Salary
		for _, r := range rates[1:] {
			if r.Salary.GreaterThan(best) {
				best = r.Salary
			}
		}
		return best
	case RatePolicyLatest:
		latest := rates[0]
		for _, r := range rates[1:] {
			if r.ID > latest.ID {
				latest = r
			}
		}
		return latest.Salary
	default:
		sum := decimal.Zero
		for _, r := range rates {
			sum = sum.Add(r.Salary)
		}
		return sum
	}
}
