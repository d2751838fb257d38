package user

import (
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/shopspring/decimal"
)

// Profile is the /users/me response. HourlyRate is null until a rate is set.
type Profile struct {
	ID         int64            `json:"id"`
	Email      string           `json:"email"`
	Firstname  string           `json:"firstname"`
	Lastname   string           `json:"lastname"`
	Role       internal.Role    `json:"role"`
	IBAN       string           `json:"iban,omitempty"`
	HourlyRate *decimal.Decimal `json:"hourlySalary"`
	CreatedAt  time.Time        `json:"created_at"`
}
