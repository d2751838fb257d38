package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/core/events"
	"github.com/shopspring/decimal"
)

type ServiceAPI interface {
	ViewBalance(ctx context.Context, requester *internal.User, userID int64) (*BalanceTotals, error)
	RequestPayment(ctx context.Context, requester *internal.User) (*BalanceTotals, error)
	Settle(ctx context.Context, requester *internal.User, employeeID int64) (*SettlementResult, error)
	Outstanding(ctx context.Context, requester *internal.User) ([]UnpaidRecord, error)
	History(ctx context.Context, requester *internal.User, userID int64) (*HistorySummary, error)
}

type Service struct {
	store       Store
	reports     ReportRepository
	aggregator  *Aggregator
	gate        *Gate
	publisher   EventPublisher
	recordEmpty bool
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(store Store, reports ReportRepository, publisher EventPublisher, cfg internal.LedgerConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := ParseRatePolicy(cfg.RatePolicy)
	if err != nil {
		logger.Warn("falling back to sum rate policy", "configured", cfg.RatePolicy, "error", err)
		policy = RatePolicySum
	}

	return &Service{
		store:       store,
		reports:     reports,
		aggregator:  NewAggregator(store, policy),
		gate:        NewGate(),
		publisher:   publisher,
		recordEmpty: cfg.RecordEmptySettlements,
		timeout:     cfg.SettlementTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) Aggregator() *Aggregator {
	return s.aggregator
}

func (s *Service) Gate() *Gate {
	return s.gate
}

func (s *Service) ComputeBalance(ctx context.Context, userID int64) (*BalanceTotals, error) {
	return s.aggregator.ComputeBalance(ctx, userID)
}

// ViewBalance always succeeds for a zero balance; only RequestPayment treats
// it as an error.
func (s *Service) ViewBalance(ctx context.Context, requester *internal.User, userID int64) (*BalanceTotals, error) {
	if requester == nil || requester.ID <= 0 || userID <= 0 {
		return nil, internal.ErrInvalidUser
	}
	if !s.gate.CanView(requester, userID) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.aggregator.ComputeBalance(ctx, userID)
}

func (s *Service) RequestPayment(ctx context.Context, requester *internal.User) (*BalanceTotals, error) {
	if requester == nil || requester.ID <= 0 {
		return nil, internal.ErrInvalidUser
	}

	balance, err := s.aggregator.ComputeBalance(ctx, requester.ID)
	if err != nil {
		s.logger.Error("failed to compute balance for payment request", "error", err, "user_id", requester.ID)
		return nil, err
	}

	if balance.NothingOwed() {
		return nil, internal.ErrNothingToRequest
	}

	s.publish(ctx, events.NewPaymentRequestedEvent(requester.ID,
		balance.UnpaidHours, balance.HourlySalary, balance.UnpaidPermanent, balance.TotalSalary))

	s.logger.Info("payment requested",
		"user_id", requester.ID,
		"total_salary", balance.TotalSalary.String())

	return balance, nil
}

// Settle pays out the full unpaid balance of employeeID and archives it in
// history. Locking, aggregation, deletes and the history insert share one
// transaction.
func (s *Service) Settle(ctx context.Context, requester *internal.User, employeeID int64) (*SettlementResult, error) {
	if err := s.gate.AuthorizeSettlement(requester); err != nil {
		var requesterID int64
		if requester != nil {
			requesterID = requester.ID
		}
		s.logger.Warn("settlement rejected", "requester_id", requesterID, "employee_id", employeeID)
		return nil, err
	}

	if employeeID <= 0 {
		return nil, internal.ErrInvalidUser
	}

	ctx, cancel := internal.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		result *SettlementResult
		entry  *payroll.HistoryEntry
	)
	err := s.store.WithinSettlement(ctx, employeeID, func(ctx context.Context, tx SettlementTx) error {
		if err := tx.LockEmployee(ctx, employeeID); err != nil {
			return err
		}

		records, err := tx.UnpaidRecords(ctx, employeeID)
		if err != nil {
			return err
		}
		if records.Empty() {
			return internal.ErrNoUnpaidSalary
		}

		totals := Aggregate(employeeID, records, s.aggregator.Policy())
		result = &SettlementResult{
			EmployeeID:      employeeID,
			TotalHours:      totals.UnpaidHours,
			HourlySalary:    totals.HourlySalary,
			PermanentSalary: totals.UnpaidPermanent,
			TotalSalary:     totals.TotalSalary,
			Outcome:         OutcomeNothingOwed,
		}

		if totals.NothingOwed() && !s.recordEmpty {
			return nil
		}

		if err := tx.DeleteUnpaid(ctx, records); err != nil {
			return err
		}

		entry = &payroll.HistoryEntry{
			UserID:     employeeID,
			Hours:      totals.UnpaidHours,
			Permanent:  totals.UnpaidPermanent,
			HourlyRate: totals.HourlySalary,
			TotalPaid:  totals.TotalSalary,
			PaidAt:     s.now().UTC(),
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}

		result.Outcome = OutcomeCommitted
		return nil
	})
	if err != nil {
		if errors.Is(err, internal.ErrNoUnpaidSalary) || errors.Is(err, internal.ErrEmployeeNotFound) {
			s.logger.Info("nothing to settle", "employee_id", employeeID, "reason", err.Error())
			return nil, err
		}
		s.logger.Error("settlement aborted", "employee_id", employeeID, "error", err)
		return nil, internal.NewSettlementFailedError(err)
	}

	committed := result.Outcome == OutcomeCommitted
	if committed {
		result.HistoryID = entry.ID
		result.PaidAt = &entry.PaidAt
	}

	s.logger.Info("settlement finished",
		"employee_id", employeeID,
		"settled_by", requester.ID,
		"outcome", result.Outcome,
		"total_salary", result.TotalSalary.String())

	if committed {
		s.publish(ctx, events.NewSettlementCompletedEvent(employeeID, requester.ID, result.HistoryID,
			result.TotalHours, result.HourlySalary, result.PermanentSalary, result.TotalSalary))
	}

	return result, nil
}

func (s *Service) Outstanding(ctx context.Context, requester *internal.User) ([]UnpaidRecord, error) {
	if err := s.gate.AuthorizeSettlement(requester); err != nil {
		return nil, err
	}

	records, err := s.reports.Outstanding(ctx, s.aggregator.Policy())
	if err != nil {
		s.logger.Error("failed to load outstanding balances", "error", err)
		return nil, internal.NewInternalError("failed to load outstanding balances", err)
	}

	for i := range records {
		r := &records[i]
		r.TotalSalary = r.UnpaidHours.Mul(r.HourlySalary).Add(r.UnpaidPermanent)
	}
	return records, nil
}

func (s *Service) History(ctx context.Context, requester *internal.User, userID int64) (*HistorySummary, error) {
	if userID <= 0 {
		return nil, internal.ErrInvalidUser
	}
	if !s.gate.CanView(requester, userID) {
		return nil, internal.ErrUnauthorizedAccess
	}

	entries, err := s.reports.History(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load history", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to load history", err)
	}

	summary := &HistorySummary{
		UserID:         userID,
		TotalHours:     decimal.Zero,
		TotalPermanent: decimal.Zero,
		TotalPaid:      decimal.Zero,
		Entries:        entries,
	}
	if summary.Entries == nil {
		summary.Entries = []payroll.HistoryEntry{}
	}
	for _, e := range entries {
		summary.TotalHours = summary.TotalHours.Add(e.Hours)
		summary.TotalPermanent = summary.TotalPermanent.Add(e.Permanent)
		summary.TotalPaid = summary.TotalPaid.Add(e.TotalPaid)
	}
	return summary, nil
}

// publish never fails the caller: notification is best effort.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
	}
}
