package salary

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/common/validation"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

type RepositoryAPI interface {
	AddHours(ctx context.Context, entry *payroll.WorkedHours) error
	AddPermanentSalary(ctx context.Context, entry *payroll.PermanentSalary) error
	AddHourlyRate(ctx context.Context, rate *payroll.HourlyRate) error
	// ReplaceHourlyRate swaps every rate row of userID for a single one.
	// Returns internal.ErrEmployeeNotFound when the user does not exist.
	ReplaceHourlyRate(ctx context.Context, userID int64, rate decimal.Decimal) (*payroll.HourlyRate, error)
}

type ServiceAPI interface {
	AddHours(ctx context.Context, userID int64, hours decimal.Decimal) (*HoursEntry, error)
	AddPermanentSalary(ctx context.Context, userID int64, amount decimal.Decimal) (*SalaryEntry, error)
	SetHourlyRate(ctx context.Context, userID int64, rate decimal.Decimal) (*SalaryEntry, error)
	UpdateHourlyRate(ctx context.Context, requester *internal.User, employeeID int64, rate decimal.Decimal) (*SalaryEntry, error)
}

type Service struct {
	repo   RepositoryAPI
	gate   *ledger.Gate
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, gate *ledger.Gate, logger *slog.Logger) *Service {
	if gate == nil {
		gate = ledger.NewGate()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		gate:   gate,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) AddHours(ctx context.Context, userID int64, hours decimal.Decimal) (*HoursEntry, error) {
	if userID <= 0 {
		return nil, internal.ErrInvalidUser
	}
	if err := validation.ValidateHours(hours); err != nil {
		return nil, err
	}

	entry := &payroll.WorkedHours{
		UserID:      userID,
		Hours:       hours,
		RequestDate: s.now().UTC(),
	}
	if err := s.repo.AddHours(ctx, entry); err != nil {
		s.logger.Error("failed to add worked hours", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to add worked hours", err)
	}

	s.logger.Info("worked hours added", "user_id", userID, "hours", hours.String())
	return toHoursEntry(entry), nil
}

func (s *Service) AddPermanentSalary(ctx context.Context, userID int64, amount decimal.Decimal) (*SalaryEntry, error) {
	if userID <= 0 {
		return nil, internal.ErrInvalidUser
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, err
	}

	entry := &payroll.PermanentSalary{
		UserID:    userID,
		Salary:    amount,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AddPermanentSalary(ctx, entry); err != nil {
		s.logger.Error("failed to add permanent salary", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to add permanent salary", err)
	}

	s.logger.Info("permanent salary added", "user_id", userID, "salary", amount.String())
	return &SalaryEntry{ID: entry.ID, UserID: entry.UserID, Salary: entry.Salary, CreatedAt: entry.CreatedAt}, nil
}

func (s *Service) SetHourlyRate(ctx context.Context, userID int64, rate decimal.Decimal) (*SalaryEntry, error) {
	if userID <= 0 {
		return nil, internal.ErrInvalidUser
	}
	if err := validation.ValidateRate(rate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	row := &payroll.HourlyRate{
		UserID:    userID,
		Salary:    rate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.AddHourlyRate(ctx, row); err != nil {
		s.logger.Error("failed to set hourly rate", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to set hourly rate", err)
	}

	s.logger.Info("hourly rate set", "user_id", userID, "rate", rate.String())
	return toRateEntry(row), nil
}

// UpdateHourlyRate is the employer's edit of an employee rate.
func (s *Service) UpdateHourlyRate(ctx context.Context, requester *internal.User, employeeID int64, rate decimal.Decimal) (*SalaryEntry, error) {
	if err := s.gate.AuthorizeSettlement(requester); err != nil {
		return nil, err
	}
	if employeeID <= 0 {
		return nil, internal.ErrInvalidUser
	}
	if err := validation.ValidateRate(rate); err != nil {
		return nil, err
	}

	row, err := s.repo.ReplaceHourlyRate(ctx, employeeID, rate)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		s.logger.Error("failed to update hourly rate", "error", err, "employee_id", employeeID)
		return nil, internal.NewInternalError("failed to update hourly rate", err)
	}

	s.logger.Info("hourly rate updated",
		"employee_id", employeeID,
		"updated_by", requester.ID,
		"rate", rate.String())
	return toRateEntry(row), nil
}
