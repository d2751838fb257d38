package ledger_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/core/events"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/frahmantamala/payroll-ledger/internal/ledger/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubReports struct {
	outstanding []ledger.UnpaidRecord
	history     []payroll.HistoryEntry
	err         error
	policy      ledger.RatePolicy
}

func (r *stubReports) Outstanding(_ context.Context, policy ledger.RatePolicy) ([]ledger.UnpaidRecord, error) {
	r.policy = policy
	return r.outstanding, r.err
}

func (r *stubReports) History(_ context.Context, _ int64) ([]payroll.HistoryEntry, error) {
	return r.history, r.err
}

// lateWriteStore runs afterRead once the settlement has read the unpaid rows,
// like an employee submitting hours while the employer settles.
type lateWriteStore struct {
	*memory.Store
	afterRead func()
}

func (s *lateWriteStore) WithinSettlement(ctx context.Context, employeeID int64, fn func(ctx context.Context, tx ledger.SettlementTx) error) error {
	return s.Store.WithinSettlement(ctx, employeeID, func(ctx context.Context, tx ledger.SettlementTx) error {
		return fn(ctx, &lateWriteTx{SettlementTx: tx, afterRead: s.afterRead})
	})
}

type lateWriteTx struct {
	ledger.SettlementTx
	afterRead func()
}

func (t *lateWriteTx) UnpaidRecords(ctx context.Context, employeeID int64) (*ledger.UnpaidRecords, error) {
	records, err := t.SettlementTx.UnpaidRecords(ctx, employeeID)
	if err == nil {
		t.afterRead()
	}
	return records, err
}

var _ = Describe("Service", func() {
	const (
		employerID = int64(1)
		employeeID = int64(2)
	)

	var (
		ctx       context.Context
		store     *memory.Store
		reports   *stubReports
		publisher *recordingPublisher
		cfg       internal.LedgerConfig
		svc       *ledger.Service
		employer  *internal.User
		employee  *internal.User
	)

	newService := func() *ledger.Service {
		return ledger.NewService(store, reports, publisher, cfg, quietLogger())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore()
		store.AddUser(employerID, internal.RoleEmployer)
		store.AddUser(employeeID, internal.RoleEmployee)
		reports = &stubReports{}
		publisher = &recordingPublisher{}
		cfg = internal.LedgerConfig{RatePolicy: "sum", SettlementTimeout: time.Second}
		employer = &internal.User{ID: employerID, Email: "boss@example.com", Role: internal.RoleEmployer}
		employee = &internal.User{ID: employeeID, Email: "worker@example.com", Role: internal.RoleEmployee}
		svc = newService()
	})

	Describe("Settle", func() {
		Context("with hours, a rate and a permanent salary", func() {
			BeforeEach(func() {
				store.AddHours(employeeID, d("8"))
				store.AddHours(employeeID, d("5"))
				store.AddRate(employeeID, d("15"))
				store.AddPermanent(employeeID, d("100"))
			})

			It("pays the full balance and archives it", func() {
				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Outcome).To(Equal(ledger.OutcomeCommitted))
				Expect(result.EmployeeID).To(Equal(employeeID))
				Expect(result.TotalHours.String()).To(Equal("13"))
				Expect(result.HourlySalary.String()).To(Equal("15"))
				Expect(result.PermanentSalary.String()).To(Equal("100"))
				Expect(result.TotalSalary.String()).To(Equal("295"))
				Expect(result.PaidAt).NotTo(BeNil())

				history := store.History(employeeID)
				Expect(history).To(HaveLen(1))
				Expect(history[0].Hours.String()).To(Equal("13"))
				Expect(history[0].Permanent.String()).To(Equal("100"))
				Expect(history[0].TotalPaid.String()).To(Equal("295"))

				records, err := store.UnpaidRecords(ctx, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(records.Hours).To(BeEmpty())
				Expect(records.Permanent).To(BeEmpty())
				Expect(records.Rates).To(HaveLen(1))
			})

			It("publishes a settlement event after commit", func() {
				_, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(publisher.Types()).To(ConsistOf(events.EventTypeSettlementCompleted))

				event, ok := publisher.events[0].(*events.SettlementCompletedEvent)
				Expect(ok).To(BeTrue())
				Expect(event.EmployeeID).To(Equal(employeeID))
				Expect(event.SettledBy).To(Equal(employerID))
				Expect(event.TotalSalary.String()).To(Equal("295"))
			})

			It("still succeeds when the notification cannot be published", func() {
				publisher.err = errPublisherDown

				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Outcome).To(Equal(ledger.OutcomeCommitted))
				Expect(store.History(employeeID)).To(HaveLen(1))
			})

			It("does not settle twice", func() {
				_, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())

				again, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(again.Outcome).To(Equal(ledger.OutcomeNothingOwed))
				Expect(again.TotalSalary.IsZero()).To(BeTrue())

				Expect(store.History(employeeID)).To(HaveLen(1))
			})

			It("rolls back everything when the history insert fails", func() {
				store.FailHistoryWith(errors.New("disk full"))

				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(result).To(BeNil())
				Expect(errors.Is(err, internal.ErrSettlementFailed)).To(BeTrue())
				Expect(err).To(MatchError(ContainSubstring("disk full")))

				records, _ := store.UnpaidRecords(ctx, employeeID)
				Expect(records.Hours).To(HaveLen(2))
				Expect(records.Permanent).To(HaveLen(1))
				Expect(store.History(employeeID)).To(BeEmpty())
				Expect(publisher.Types()).To(BeEmpty())
			})

			It("does not assign a history id to a rolled back settlement", func() {
				store.FailHistoryWith(errors.New("disk full"))
				_, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).To(HaveOccurred())

				store.FailHistoryWith(nil)
				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				// ids 1 to 4 went to the seeded rows
				Expect(result.HistoryID).To(Equal(int64(5)))
				Expect(store.History(employeeID)).To(ConsistOf(
					HaveField("ID", result.HistoryID),
				))
			})

			It("keeps rows added after the balance was read", func() {
				late := &lateWriteStore{Store: store}
				late.afterRead = func() {
					store.AddHours(employeeID, d("5"))
					store.AddPermanent(employeeID, d("40"))
				}
				svc = ledger.NewService(late, reports, publisher, cfg, quietLogger())

				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.TotalHours.String()).To(Equal("13"))
				Expect(result.PermanentSalary.String()).To(Equal("100"))

				records, _ := store.UnpaidRecords(ctx, employeeID)
				Expect(records.Hours).To(HaveLen(1))
				Expect(records.Hours[0].Hours.String()).To(Equal("5"))
				Expect(records.Permanent).To(HaveLen(1))
				Expect(records.Permanent[0].Salary.String()).To(Equal("40"))

				history := store.History(employeeID)
				Expect(history).To(HaveLen(1))
				Expect(history[0].Hours.String()).To(Equal("13"))
			})

			It("fails with a cancelled context and leaves the rows alone", func() {
				cancelled, cancel := context.WithCancel(ctx)
				cancel()

				_, err := svc.Settle(cancelled, employer, employeeID)
				Expect(errors.Is(err, internal.ErrSettlementFailed)).To(BeTrue())

				records, _ := store.UnpaidRecords(ctx, employeeID)
				Expect(records.Hours).To(HaveLen(2))
			})
		})

		It("returns NotFound when the employee has no rows at all", func() {
			result, err := svc.Settle(ctx, employer, employeeID)
			Expect(result).To(BeNil())
			Expect(errors.Is(err, internal.ErrNoUnpaidSalary)).To(BeTrue())
			Expect(store.History(employeeID)).To(BeEmpty())
		})

		It("returns NotFound for an unknown employee", func() {
			_, err := svc.Settle(ctx, employer, 999)
			Expect(errors.Is(err, internal.ErrEmployeeNotFound)).To(BeTrue())
		})

		It("rejects invalid employee ids", func() {
			_, err := svc.Settle(ctx, employer, 0)
			Expect(errors.Is(err, internal.ErrInvalidUser)).To(BeTrue())
		})

		It("owes nothing when only a rate exists", func() {
			store.AddRate(employeeID, d("20"))

			totals, err := svc.ComputeBalance(ctx, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.TotalSalary.IsZero()).To(BeTrue())

			result, err := svc.Settle(ctx, employer, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(ledger.OutcomeNothingOwed))
			Expect(result.TotalSalary.IsZero()).To(BeTrue())
			Expect(store.History(employeeID)).To(BeEmpty())
			Expect(publisher.Types()).To(BeEmpty())
		})

		It("returns NotFound on a second settle when no rate was ever set", func() {
			store.AddPermanent(employeeID, d("75"))

			_, err := svc.Settle(ctx, employer, employeeID)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Settle(ctx, employer, employeeID)
			Expect(errors.Is(err, internal.ErrNoUnpaidSalary)).To(BeTrue())
			Expect(store.History(employeeID)).To(HaveLen(1))
		})

		It("keeps zero hour entries when nothing is owed", func() {
			store.AddHours(employeeID, d("0"))

			result, err := svc.Settle(ctx, employer, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(ledger.OutcomeNothingOwed))

			records, _ := store.UnpaidRecords(ctx, employeeID)
			Expect(records.Hours).To(HaveLen(1))
		})

		Context("when empty settlements are recorded", func() {
			BeforeEach(func() {
				cfg.RecordEmptySettlements = true
				svc = newService()
			})

			It("writes a zero amount history row", func() {
				store.AddHours(employeeID, d("0"))
				store.AddRate(employeeID, d("20"))

				result, err := svc.Settle(ctx, employer, employeeID)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Outcome).To(Equal(ledger.OutcomeCommitted))

				history := store.History(employeeID)
				Expect(history).To(HaveLen(1))
				Expect(history[0].TotalPaid.IsZero()).To(BeTrue())

				records, _ := store.UnpaidRecords(ctx, employeeID)
				Expect(records.Hours).To(BeEmpty())
			})
		})

		Context("when the requester is an employee", func() {
			BeforeEach(func() {
				store.AddHours(employeeID, d("4"))
				store.AddPermanent(employeeID, d("10"))
			})

			DescribeTable("always refuses and mutates nothing",
				func(target int64) {
					result, err := svc.Settle(ctx, employee, target)
					Expect(result).To(BeNil())
					Expect(errors.Is(err, internal.ErrUnauthorizedSettlement)).To(BeTrue())

					records, _ := store.UnpaidRecords(ctx, employeeID)
					Expect(records.Hours).To(HaveLen(1))
					Expect(records.Permanent).To(HaveLen(1))
					Expect(store.History(employeeID)).To(BeEmpty())
				},
				Entry("own balance", employeeID),
				Entry("another employee", int64(3)),
				Entry("the employer", employerID),
				Entry("an unknown id", int64(404)),
				Entry("an invalid id", int64(0)),
			)

			It("refuses a requester without identity", func() {
				_, err := svc.Settle(ctx, nil, employeeID)
				Expect(errors.Is(err, internal.ErrUnauthorizedSettlement)).To(BeTrue())
			})
		})

		It("settles exactly once under concurrent calls", func() {
			store.AddHours(employeeID, d("10"))
			store.AddRate(employeeID, d("20"))
			store.AddPermanent(employeeID, d("50"))

			const callers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				committed []*ledger.SettlementResult
				others    int
			)

			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					result, err := svc.Settle(ctx, employer, employeeID)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil && result.Outcome == ledger.OutcomeCommitted:
						committed = append(committed, result)
					case err == nil && result.Outcome == ledger.OutcomeNothingOwed,
						errors.Is(err, internal.ErrNoUnpaidSalary):
						others++
					default:
						Fail("unexpected settlement outcome")
					}
				}()
			}
			wg.Wait()

			Expect(committed).To(HaveLen(1))
			Expect(others).To(Equal(callers - 1))
			Expect(committed[0].TotalSalary.String()).To(Equal("250"))

			history := store.History(employeeID)
			Expect(history).To(HaveLen(1))
			Expect(history[0].Hours.String()).To(Equal("10"))
			Expect(history[0].Permanent.String()).To(Equal("50"))
		})
	})

	Describe("ViewBalance", func() {
		It("shows an employee their own zero balance", func() {
			totals, err := svc.ViewBalance(ctx, employee, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.TotalSalary.IsZero()).To(BeTrue())
		})

		It("hides other balances from employees", func() {
			_, err := svc.ViewBalance(ctx, employee, employerID)
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})

		It("lets employers look at anyone", func() {
			store.AddHours(employeeID, d("2"))
			store.AddRate(employeeID, d("30"))

			totals, err := svc.ViewBalance(ctx, employer, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.TotalSalary.String()).To(Equal("60"))
		})
	})

	Describe("RequestPayment", func() {
		It("refuses when nothing is unpaid", func() {
			store.AddRate(employeeID, d("20"))

			_, err := svc.RequestPayment(ctx, employee)
			Expect(errors.Is(err, internal.ErrNothingToRequest)).To(BeTrue())
			Expect(publisher.Types()).To(BeEmpty())
		})

		It("notifies the employer about the balance", func() {
			store.AddHours(employeeID, d("3"))
			store.AddRate(employeeID, d("10"))

			balance, err := svc.RequestPayment(ctx, employee)
			Expect(err).NotTo(HaveOccurred())
			Expect(balance.TotalSalary.String()).To(Equal("30"))
			Expect(publisher.Types()).To(ConsistOf(events.EventTypePaymentRequested))

			records, _ := store.UnpaidRecords(ctx, employeeID)
			Expect(records.Hours).To(HaveLen(1))
		})

		It("rejects a missing identity", func() {
			_, err := svc.RequestPayment(ctx, nil)
			Expect(errors.Is(err, internal.ErrInvalidUser)).To(BeTrue())
		})
	})

	Describe("Outstanding", func() {
		It("is reserved to employers", func() {
			_, err := svc.Outstanding(ctx, employee)
			Expect(errors.Is(err, internal.ErrUnauthorizedSettlement)).To(BeTrue())
		})

		It("fills in the total of every line", func() {
			reports.outstanding = []ledger.UnpaidRecord{
				{UserID: 2, Firstname: "Ada", UnpaidHours: d("13"), HourlySalary: d("15"), UnpaidPermanent: d("100")},
				{UserID: 3, Firstname: "Linus", UnpaidHours: d("0"), HourlySalary: d("0"), UnpaidPermanent: d("40")},
			}

			records, err := svc.Outstanding(ctx, employer)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].TotalSalary.String()).To(Equal("295"))
			Expect(records[1].TotalSalary.String()).To(Equal("40"))
			Expect(reports.policy).To(Equal(ledger.RatePolicySum))
		})

		It("reports storage failures as internal errors", func() {
			reports.err = errors.New("timeout")
			_, err := svc.Outstanding(ctx, employer)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	Describe("History", func() {
		It("sums the archived settlements", func() {
			reports.history = []payroll.HistoryEntry{
				{ID: 2, UserID: employeeID, Hours: d("5"), Permanent: d("0"), TotalPaid: d("50")},
				{ID: 1, UserID: employeeID, Hours: d("8"), Permanent: d("100"), TotalPaid: d("220")},
			}

			summary, err := svc.History(ctx, employee, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.TotalHours.String()).To(Equal("13"))
			Expect(summary.TotalPermanent.String()).To(Equal("100"))
			Expect(summary.TotalPaid.String()).To(Equal("270"))
			Expect(summary.Entries).To(HaveLen(2))
		})

		It("returns an empty list instead of null", func() {
			summary, err := svc.History(ctx, employee, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Entries).NotTo(BeNil())
			Expect(summary.TotalPaid.IsZero()).To(BeTrue())
		})

		It("hides other users' history from employees", func() {
			_, err := svc.History(ctx, employee, employerID)
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})
	})
})
