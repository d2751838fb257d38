package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// HourlyRate is one hour_salary row. Rates are never consumed by settlement.
type HourlyRate struct {
	ID        int64           `gorm:"primaryKey"`
	UserID    int64           `gorm:"column:userid;not null;index"`
	Salary    decimal.Decimal `gorm:"column:salary;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (HourlyRate) TableName() string {
	return "hour_salary"
}

// WorkedHours is an unpaid block of hours waiting for settlement.
type WorkedHours struct {
	ID          int64           `gorm:"primaryKey"`
	UserID      int64           `gorm:"column:userid;not null;index"`
	Hours       decimal.Decimal `gorm:"column:hours;type:numeric(12,2);not null"`
	RequestDate time.Time       `gorm:"column:request_date"`
}

func (WorkedHours) TableName() string {
	return "request"
}

type PermanentSalary struct {
	ID        int64           `gorm:"primaryKey"`
	UserID    int64           `gorm:"column:userid;not null;index"`
	Salary    decimal.Decimal `gorm:"column:salary;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

func (PermanentSalary) TableName() string {
	return "permanent_salary"
}

// HistoryEntry is append-only. Hours and Permanent hold the totals that
// were consumed by one settlement.
type HistoryEntry struct {
	ID         int64           `gorm:"primaryKey" db:"id" json:"id"`
	UserID     int64           `gorm:"column:userid;not null;index" db:"userid" json:"userid"`
	Hours      decimal.Decimal `gorm:"column:hours;type:numeric(12,2);not null" db:"hours" json:"hours"`
	Permanent  decimal.Decimal `gorm:"column:permanent;type:numeric(12,2);not null" db:"permanent" json:"permanent"`
	HourlyRate decimal.Decimal `gorm:"column:hourly_rate;type:numeric(12,2);not null" db:"hourly_rate" json:"hourlyRate"`
	TotalPaid  decimal.Decimal `gorm:"column:total_paid;type:numeric(14,2);not null" db:"total_paid" json:"totalPaid"`
	PaidAt     time.Time       `gorm:"column:paid_at;not null" db:"paid_at" json:"paidAt"`
}

func (HistoryEntry) TableName() string {
	return "history"
}
