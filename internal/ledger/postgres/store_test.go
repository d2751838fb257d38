package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/frahmantamala/payroll-ledger/internal/ledger/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Store", func() {
	const (
		employerID = int64(1)
		employeeID = int64(2)
	)

	var (
		ctx      context.Context
		db       *gorm.DB
		store    *postgres.Store
		svc      *ledger.Service
		employer *internal.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = openTestDB()
		seedUser(db, employerID, "employer", "Grace")
		seedUser(db, employeeID, "employee", "Ada")

		store = postgres.NewStore(db)
		svc = ledger.NewService(store, postgres.NewReportRepository(nil), nil,
			internal.LedgerConfig{RatePolicy: "sum", SettlementTimeout: 5 * time.Second}, quietLogger())
		employer = &internal.User{ID: employerID, Role: internal.RoleEmployer}
	})

	Describe("UnpaidRecords", func() {
		It("returns only the rows of the requested user", func() {
			seedHours(db, employeeID, "8")
			seedHours(db, employerID, "3")
			seedRate(db, employeeID, "15")
			seedPermanent(db, employeeID, "100")

			records, err := store.UnpaidRecords(ctx, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(records.Hours).To(HaveLen(1))
			Expect(records.Hours[0].Hours.String()).To(Equal("8"))
			Expect(records.Rates).To(HaveLen(1))
			Expect(records.Permanent).To(HaveLen(1))
		})

		It("reads fractional values back exactly", func() {
			seedHours(db, employeeID, "2.25")

			totals, err := svc.ComputeBalance(ctx, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.UnpaidHours.String()).To(Equal("2.25"))
		})
	})

	Describe("Settle", func() {
		Context("with a full balance", func() {
			BeforeEach(func() {
				seedHours(db, employeeID, "8")
				seedHours(db, employeeID, "5")
				seedRate(db, employeeID, "15")
				seedPermanent(db, employeeID, "100")
			})

			It("deletes the unpaid rows and writes one history entry", func() {
				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Outcome).To(Equal(ledger.OutcomeCommitted))
				Expect(result.TotalSalary.String()).To(Equal("295"))
				Expect(result.HistoryID).To(BeNumerically(">", 0))

				Expect(count(db, &payroll.WorkedHours{}, employeeID)).To(BeZero())
				Expect(count(db, &payroll.PermanentSalary{}, employeeID)).To(BeZero())
				Expect(count(db, &payroll.HourlyRate{}, employeeID)).To(Equal(int64(1)))

				var history []payroll.HistoryEntry
				Expect(db.Where("userid = ?", employeeID).Find(&history).Error).To(Succeed())
				Expect(history).To(HaveLen(1))
				Expect(history[0].Hours.String()).To(Equal("13"))
				Expect(history[0].Permanent.String()).To(Equal("100"))
				Expect(history[0].HourlyRate.String()).To(Equal("15"))
				Expect(history[0].TotalPaid.String()).To(Equal("295"))
				Expect(history[0].PaidAt).NotTo(BeZero())
			})

			It("leaves a zero balance behind", func() {
				_, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())

				totals, err := svc.ComputeBalance(ctx, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(totals.UnpaidHours.IsZero()).To(BeTrue())
				Expect(totals.UnpaidPermanent.IsZero()).To(BeTrue())
			})

			It("reports nothing owed on the second settlement", func() {
				_, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())

				again, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(again.Outcome).To(Equal(ledger.OutcomeNothingOwed))
				Expect(count(db, &payroll.HistoryEntry{}, employeeID)).To(Equal(int64(1)))
			})

			It("rolls the deletes back when the history insert fails", func() {
				injected := errors.New("injected history failure")
				err := db.Callback().Create().Before("gorm:create").Register("test:fail_history", func(tx *gorm.DB) {
					if tx.Statement.Table == "history" {
						_ = tx.AddError(injected)
					}
				})
				Expect(err).NotTo(HaveOccurred())

				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(result).To(BeNil())
				Expect(errors.Is(err, internal.ErrSettlementFailed)).To(BeTrue())
				Expect(errors.Is(err, injected)).To(BeTrue())

				Expect(count(db, &payroll.WorkedHours{}, employeeID)).To(Equal(int64(2)))
				Expect(count(db, &payroll.PermanentSalary{}, employeeID)).To(Equal(int64(1)))
				Expect(count(db, &payroll.HistoryEntry{}, employeeID)).To(BeZero())
			})

			It("leaves rows inserted after the locked read unpaid", func() {
				inserted := false
				err := db.Callback().Delete().Before("gorm:delete").Register("test:late_hours", func(tx *gorm.DB) {
					if tx.Statement.Table != "request" || inserted {
						return
					}
					inserted = true
					late := &payroll.WorkedHours{UserID: employeeID, Hours: d("5"), RequestDate: time.Now()}
					_ = tx.AddError(tx.Session(&gorm.Session{NewDB: true}).Create(late).Error)
				})
				Expect(err).NotTo(HaveOccurred())

				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeTrue())
				Expect(result.TotalHours.String()).To(Equal("13"))

				var left []payroll.WorkedHours
				Expect(db.Where("userid = ?", employeeID).Find(&left).Error).To(Succeed())
				Expect(left).To(HaveLen(1))
				Expect(left[0].Hours.String()).To(Equal("5"))
				Expect(count(db, &payroll.PermanentSalary{}, employeeID)).To(BeZero())

				var entry payroll.HistoryEntry
				Expect(db.Where("userid = ?", employeeID).Take(&entry).Error).To(Succeed())
				Expect(entry.Hours.String()).To(Equal("13"))
			})

			It("settles exactly once under concurrent calls", func() {
				const callers = 5
				var (
					wg        sync.WaitGroup
					mu        sync.Mutex
					committed int
				)
				for i := 0; i < callers; i++ {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						result, err := svc.Settle(ctx, employer, employeeID)
						Expect(err).NotTo(HaveOccurred())
						if result.Outcome == ledger.OutcomeCommitted {
							mu.Lock()
							committed++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()

				Expect(committed).To(Equal(1))
				Expect(count(db, &payroll.HistoryEntry{}, employeeID)).To(Equal(int64(1)))
			})
		})

		It("returns NotFound when no unpaid rows exist", func() {
			_, err := svc.Settle(ctx, employer, employeeID)
			Expect(errors.Is(err, internal.ErrNoUnpaidSalary)).To(BeTrue())
		})

		It("returns EmployeeNotFound for a missing user row", func() {
			seedHours(db, 99, "4")

			_, err := svc.Settle(ctx, employer, 99)
			Expect(errors.Is(err, internal.ErrEmployeeNotFound)).To(BeTrue())
			Expect(count(db, &payroll.WorkedHours{}, 99)).To(Equal(int64(1)))
		})

		It("settles a permanent-only balance", func() {
			seedPermanent(db, employeeID, "250.50")

			result, err := svc.Settle(ctx, employer, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalSalary.String()).To(Equal("250.5"))
			Expect(result.HourlySalary.IsZero()).To(BeTrue())
		})

		It("refuses employees without touching the database", func() {
			seedHours(db, employeeID, "4")

			_, err := svc.Settle(ctx, &internal.User{ID: employeeID, Role: internal.RoleEmployee}, employeeID)
			Expect(errors.Is(err, internal.ErrUnauthorizedSettlement)).To(BeTrue())
			Expect(count(db, &payroll.WorkedHours{}, employeeID)).To(Equal(int64(1)))
		})
	})
})
