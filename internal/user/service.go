package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	HourlyRates(ctx context.Context, userID int64) ([]payroll.HourlyRate, error)
}

type Service struct {
	repo   Repository
	policy ledger.RatePolicy
}

func NewService(repo Repository, policy ledger.RatePolicy) *Service {
	if policy == "" {
		policy = ledger.RatePolicySum
	}
	return &Service{
		repo:   repo,
		policy: policy,
	}
}

// GetProfile returns the user with the hourly rate the ledger would apply.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	if userID <= 0 {
		return nil, internal.ErrInvalidUser
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.NewNotFoundError("User not found", internal.ErrCodeEmployeeNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	rates, err := s.repo.HourlyRates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hourly rates: %w", err)
	}

	profile := u.ToProfile(nil)
	if len(rates) > 0 {
		rate := ledger.EffectiveRate(rates, s.policy)
		profile.HourlyRate = &rate
	}
	return profile, nil
}
