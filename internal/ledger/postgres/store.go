package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	userDatamodel "github.com/frahmantamala/payroll-ledger/internal/core/datamodel/user"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UnpaidRecords(ctx context.Context, userID int64) (*ledger.UnpaidRecords, error) {
	return loadUnpaid(s.db.WithContext(ctx), userID, false)
}

func (s *Store) WithinSettlement(ctx context.Context, employeeID int64, fn func(ctx context.Context, tx ledger.SettlementTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &settlementTx{tx: tx})
	})
}

func loadUnpaid(db *gorm.DB, userID int64, lock bool) (*ledger.UnpaidRecords, error) {
	q := db
	if lock {
		// new session so the locking clause can be reused across queries
		q = db.Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})
	}

	records := &ledger.UnpaidRecords{}
	if err := q.Where("userid = ?", userID).Order("id").Find(&records.Hours).Error; err != nil {
		return nil, fmt.Errorf("load worked hours: %w", err)
	}
	if err := q.Where("userid = ?", userID).Order("id").Find(&records.Permanent).Error; err != nil {
		return nil, fmt.Errorf("load permanent salaries: %w", err)
	}
	// rates are not consumed by settlement; no lock needed
	if err := db.Where("userid = ?", userID).Order("id").Find(&records.Rates).Error; err != nil {
		return nil, fmt.Errorf("load hourly rates: %w", err)
	}
	return records, nil
}

type settlementTx struct {
	tx *gorm.DB
}

// LockEmployee takes the users row lock. Concurrent settlements of the same
// employee queue here until the first one commits.
func (t *settlementTx) LockEmployee(ctx context.Context, employeeID int64) error {
	var u userDatamodel.User
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", employeeID).
		Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return internal.ErrEmployeeNotFound
		}
		return fmt.Errorf("lock employee %d: %w", employeeID, err)
	}
	return nil
}

func (t *settlementTx) UnpaidRecords(ctx context.Context, employeeID int64) (*ledger.UnpaidRecords, error) {
	return loadUnpaid(t.tx.WithContext(ctx), employeeID, true)
}

// DeleteUnpaid deletes by id. Inserts into request and permanent_salary do
// not wait for the users row lock, so a delete by userid could remove rows
// committed after the locked read.
func (t *settlementTx) DeleteUnpaid(ctx context.Context, records *ledger.UnpaidRecords) error {
	db := t.tx.WithContext(ctx)
	if ids := records.HourIDs(); len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Delete(&payroll.WorkedHours{}).Error; err != nil {
			return fmt.Errorf("delete worked hours: %w", err)
		}
	}
	if ids := records.PermanentIDs(); len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Delete(&payroll.PermanentSalary{}).Error; err != nil {
			return fmt.Errorf("delete permanent salaries: %w", err)
		}
	}
	return nil
}

func (t *settlementTx) AppendHistory(ctx context.Context, entry *payroll.HistoryEntry) error {
	if err := t.tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}
