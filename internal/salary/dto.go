package salary

import (
	"time"

	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/shopspring/decimal"
)

type AddHoursDTO struct {
	Hours decimal.Decimal `json:"hours"`
}

// SalaryDTO is shared by the permanent salary and hourly rate endpoints.
type SalaryDTO struct {
	Salary decimal.Decimal `json:"salary"`
}

type UpdateRateDTO struct {
	NewSalary decimal.Decimal `json:"newSalary"`
}

type HoursEntry struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userid"`
	Hours       decimal.Decimal `json:"hours"`
	RequestDate time.Time       `json:"requestDate"`
}

type SalaryEntry struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userid"`
	Salary    decimal.Decimal `json:"salary"`
	CreatedAt time.Time       `json:"createdAt"`
}

type EntryResponse struct {
	Message string      `json:"message"`
	Entry   interface{} `json:"entry"`
}

func toHoursEntry(m *payroll.WorkedHours) *HoursEntry {
	return &HoursEntry{
		ID:          m.ID,
		UserID:      m.UserID,
		Hours:       m.Hours,
		RequestDate: m.RequestDate,
	}
}

func toRateEntry(m *payroll.HourlyRate) *SalaryEntry {
	return &SalaryEntry{
		ID:        m.ID,
		UserID:    m.UserID,
		Salary:    m.Salary,
		CreatedAt: m.CreatedAt,
	}
}
