package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/user"
	"github.com/jmoiron/sqlx"
)

type pgRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) user.Repository {
	return &pgRepo{db: db}
}

func (p *pgRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	query := p.db.Rebind(`SELECT id, email, firstname, lastname, role, COALESCE(iban, '') AS iban, created_at FROM users WHERE id = ?`)
	if err := p.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// HourlyRates relies on sqlx's lower-case name mapping onto the gorm model.
func (p *pgRepo) HourlyRates(ctx context.Context, userID int64) ([]payroll.HourlyRate, error) {
	rates := []payroll.HourlyRate{}
	query := p.db.Rebind(`SELECT id, userid, salary FROM hour_salary WHERE userid = ? ORDER BY id`)
	if err := p.db.SelectContext(ctx, &rates, query, userID); err != nil {
		return nil, fmt.Errorf("select hourly rates for user %d: %w", userID, err)
	}
	return rates, nil
}
