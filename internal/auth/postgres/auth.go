package auth

import (
	"context"
	"errors"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/auth"
	userDatamodel "github.com/frahmantamala/payroll-ledger/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "role", "password_hash").
		Where("email = ?", email).
		Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	return &auth.Credentials{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         internal.Role(u.Role),
		PasswordHash: u.PasswordHash,
	}, nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*internal.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "role").
		Where("id = ?", userID).
		Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	return &internal.User{ID: u.ID, Email: u.Email, Role: internal.Role(u.Role)}, nil
}
