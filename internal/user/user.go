package user

import (
	"errors"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("user not found")

// User is the profile row as stored; the password hash never leaves the
// repository.
type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Firstname string    `db:"firstname"`
	Lastname  string    `db:"lastname"`
	Role      string    `db:"role"`
	IBAN      string    `db:"iban"`
	CreatedAt time.Time `db:"created_at"`
}

func (u *User) IsEmployer() bool {
	return internal.Role(u.Role) == internal.RoleEmployer
}

func (u *User) ToProfile(rate *decimal.Decimal) *Profile {
	return &Profile{
		ID:         u.ID,
		Email:      u.Email,
		Firstname:  u.Firstname,
		Lastname:   u.Lastname,
		Role:       internal.Role(u.Role),
		IBAN:       u.IBAN,
		HourlyRate: rate,
		CreatedAt:  u.CreatedAt,
	}
}
