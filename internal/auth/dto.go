package auth

import (
	"strings"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d *LoginDTO) Validate() error {
	d.Email = strings.TrimSpace(strings.ToLower(d.Email))
	if err := validation.ValidateCredentials(d.Email, d.Password); err != nil {
		return err
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	if d.RefreshToken == "" {
		return internal.NewValidationFieldError("refresh_token", "refresh_token is required", internal.ErrCodeValidationFailed)
	}
	return nil
}
