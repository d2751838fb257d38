package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/auth"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	userModel "github.com/frahmantamala/payroll-ledger/internal/core/datamodel/user"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const seedPassword = "password"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with an employer, a few employees and some unpaid salary rows for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		setupLogger(cfg)

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db, cfg.Observability.Logging.Level)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if err := seedDatabase(cmd.Context(), gormDB, cfg.Security.BCryptCost, clearData); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
	},
}

type seedUser struct {
	Email     string
	Firstname string
	Lastname  string
	Role      internal.Role
	IBAN      string
	Rate      string
	Hours     []string
	Permanent []string
}

var seedUsers = []seedUser{
	{Email: "employer@payroll.local", Firstname: "Grace", Lastname: "Hopper", Role: internal.RoleEmployer},
	{Email: "ada@payroll.local", Firstname: "Ada", Lastname: "Lovelace", Role: internal.RoleEmployee,
		IBAN: "DE89370400440532013000", Rate: "15", Hours: []string{"8", "5"}, Permanent: []string{"100"}},
	{Email: "alan@payroll.local", Firstname: "Alan", Lastname: "Turing", Role: internal.RoleEmployee,
		IBAN: "GB29NWBK60161331926819", Rate: "22.50", Hours: []string{"7.5"}},
	{Email: "linus@payroll.local", Firstname: "Linus", Lastname: "Torvalds", Role: internal.RoleEmployee,
		Permanent: []string{"2500"}},
}

// seedDatabase inserts the sample users once. Salary rows are only added
// for users created by this run so reseeding does not pile up balances.
func seedDatabase(ctx context.Context, db *gorm.DB, bcryptCost int, clear bool) error {
	lg := logger.L()

	hash, err := auth.HashPassword(seedPassword, bcryptCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clear {
			for _, model := range []interface{}{
				&payroll.HistoryEntry{}, &payroll.WorkedHours{}, &payroll.PermanentSalary{}, &payroll.HourlyRate{}, &userModel.User{},
			} {
				if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
					return fmt.Errorf("clear %T: %w", model, err)
				}
			}
			lg.Info("cleared existing payroll data")
		}

		for _, su := range seedUsers {
			var existing userModel.User
			err := tx.Where("email = ?", su.Email).First(&existing).Error
			if err == nil {
				lg.Info("user already exists, skipping", "email", su.Email)
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lookup %s: %w", su.Email, err)
			}

			u := userModel.User{
				Email:        su.Email,
				Firstname:    su.Firstname,
				Lastname:     su.Lastname,
				Role:         string(su.Role),
				IBAN:         su.IBAN,
				PasswordHash: hash,
			}
			if err := tx.Create(&u).Error; err != nil {
				return fmt.Errorf("insert user %s: %w", su.Email, err)
			}

			if su.Rate != "" {
				if err := tx.Create(&payroll.HourlyRate{UserID: u.ID, Salary: decimal.RequireFromString(su.Rate)}).Error; err != nil {
					return fmt.Errorf("insert rate for %s: %w", su.Email, err)
				}
			}
			for _, h := range su.Hours {
				if err := tx.Create(&payroll.WorkedHours{UserID: u.ID, Hours: decimal.RequireFromString(h), RequestDate: time.Now()}).Error; err != nil {
					return fmt.Errorf("insert hours for %s: %w", su.Email, err)
				}
			}
			for _, p := range su.Permanent {
				if err := tx.Create(&payroll.PermanentSalary{UserID: u.ID, Salary: decimal.RequireFromString(p)}).Error; err != nil {
					return fmt.Errorf("insert permanent salary for %s: %w", su.Email, err)
				}
			}

			lg.Info("seeded user", "email", su.Email, "role", su.Role)
		}

		return nil
	})
}
