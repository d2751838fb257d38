package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	userDatamodel "github.com/frahmantamala/payroll-ledger/internal/core/datamodel/user"
	"github.com/frahmantamala/payroll-ledger/internal/salary"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SalaryRepository struct {
	db *gorm.DB
}

func NewSalaryRepository(db *gorm.DB) salary.RepositoryAPI {
	return &SalaryRepository{db: db}
}

func (r *SalaryRepository) AddHours(ctx context.Context, entry *payroll.WorkedHours) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SalaryRepository) AddPermanentSalary(ctx context.Context, entry *payroll.PermanentSalary) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SalaryRepository) AddHourlyRate(ctx context.Context, rate *payroll.HourlyRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

func (r *SalaryRepository) ReplaceHourlyRate(ctx context.Context, userID int64, rate decimal.Decimal) (*payroll.HourlyRate, error) {
	var row *payroll.HourlyRate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u userDatamodel.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", userID).
			Take(&u).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrEmployeeNotFound
			}
			return fmt.Errorf("lock user %d: %w", userID, err)
		}

		if err := tx.Where("userid = ?", userID).Delete(&payroll.HourlyRate{}).Error; err != nil {
			return fmt.Errorf("delete hourly rates: %w", err)
		}

		now := time.Now().UTC()
		row = &payroll.HourlyRate{UserID: userID, Salary: rate, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert hourly rate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}
