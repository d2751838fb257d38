package ledger_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/core/datamodel/payroll"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/frahmantamala/payroll-ledger/internal/ledger/memory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

type failingStore struct {
	memory.Store
	err error
}

func (f *failingStore) UnpaidRecords(context.Context, int64) (*ledger.UnpaidRecords, error) {
	return nil, f.err
}

var _ = Describe("Aggregator", func() {
	var (
		store *memory.Store
		agg   *ledger.Aggregator
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore()
		store.AddUser(1, internal.RoleEmployee)
		agg = ledger.NewAggregator(store, ledger.RatePolicySum)
	})

	Describe("ComputeBalance", func() {
		It("rejects non-positive user ids", func() {
			_, err := agg.ComputeBalance(ctx, 0)
			Expect(errors.Is(err, internal.ErrInvalidUser)).To(BeTrue())

			_, err = agg.ComputeBalance(ctx, -4)
			Expect(errors.Is(err, internal.ErrInvalidUser)).To(BeTrue())
		})

		It("returns zero totals for a user without rows", func() {
			totals, err := agg.ComputeBalance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.UnpaidHours.IsZero()).To(BeTrue())
			Expect(totals.HourlySalary.IsZero()).To(BeTrue())
			Expect(totals.UnpaidPermanent.IsZero()).To(BeTrue())
			Expect(totals.TotalSalary.IsZero()).To(BeTrue())
			Expect(totals.HasRecords()).To(BeFalse())
		})

		It("computes the documented example balance", func() {
			store.AddHours(1, d("8"))
			store.AddHours(1, d("5"))
			store.AddRate(1, d("15"))
			store.AddPermanent(1, d("100"))

			totals, err := agg.ComputeBalance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.UnpaidHours.String()).To(Equal("13"))
			Expect(totals.HourlySalary.String()).To(Equal("15"))
			Expect(totals.UnpaidPermanent.String()).To(Equal("100"))
			Expect(totals.TotalSalary.String()).To(Equal("295"))
		})

		It("ignores rows of other users", func() {
			store.AddHours(2, d("40"))
			store.AddPermanent(2, d("1000"))
			store.AddHours(1, d("1.5"))

			totals, err := agg.ComputeBalance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.UnpaidHours.String()).To(Equal("1.5"))
			Expect(totals.UnpaidPermanent.IsZero()).To(BeTrue())
		})

		It("wraps storage failures", func() {
			broken := &failingStore{err: errors.New("connection reset")}
			_, err := ledger.NewAggregator(broken, ledger.RatePolicySum).ComputeBalance(ctx, 1)
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})

		It("has no side effects", func() {
			store.AddHours(1, d("3"))
			for i := 0; i < 3; i++ {
				totals, err := agg.ComputeBalance(ctx, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(totals.UnpaidHours.String()).To(Equal("3"))
			}
		})
	})

	DescribeTable("sums every source independently",
		func(hours, permanent []string, wantHours, wantPermanent string) {
			for _, h := range hours {
				store.AddHours(1, d(h))
			}
			for _, p := range permanent {
				store.AddPermanent(1, d(p))
			}

			totals, err := agg.ComputeBalance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals.UnpaidHours.Equal(d(wantHours))).To(BeTrue())
			Expect(totals.UnpaidPermanent.Equal(d(wantPermanent))).To(BeTrue())
		},
		Entry("only hours", []string{"1", "2", "3"}, nil, "6", "0"),
		Entry("only permanent", nil, []string{"250.50", "49.50"}, "0", "300"),
		Entry("fractional hours", []string{"0.25", "0.75", "7.5"}, []string{"10"}, "8.5", "10"),
		Entry("zero hour entries", []string{"0", "0"}, nil, "0", "0"),
	)

	DescribeTable("EffectiveRate",
		func(policy ledger.RatePolicy, want string) {
			rates := []payroll.HourlyRate{
				{ID: 1, Salary: d("10")},
				{ID: 3, Salary: d("15")},
				{ID: 2, Salary: d("25")},
			}
			Expect(ledger.EffectiveRate(rates, policy).String()).To(Equal(want))
		},
		Entry("sum adds every rate", ledger.RatePolicySum, "50"),
		Entry("max picks the highest rate", ledger.RatePolicyMax, "25"),
		Entry("latest picks the newest row", ledger.RatePolicyLatest, "15"),
	)

	It("uses zero rate when none is set", func() {
		Expect(ledger.EffectiveRate(nil, ledger.RatePolicyMax).Equal(decimal.Zero)).To(BeTrue())
	})

	Describe("ParseRatePolicy", func() {
		It("defaults to sum", func() {
			policy, err := ledger.ParseRatePolicy("")
			Expect(err).NotTo(HaveOccurred())
			Expect(policy).To(Equal(ledger.RatePolicySum))
		})

		It("rejects unknown policies", func() {
			_, err := ledger.ParseRatePolicy("average")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Gate", func() {
	gate := ledger.NewGate()

	It("lets only employers settle", func() {
		Expect(gate.CanSettle(internal.RoleEmployer)).To(BeTrue())
		Expect(gate.CanSettle(internal.RoleEmployee)).To(BeFalse())
		Expect(gate.CanSettle(internal.Role("admin"))).To(BeFalse())
	})

	It("rejects missing requesters", func() {
		Expect(errors.Is(gate.AuthorizeSettlement(nil), internal.ErrUnauthorizedSettlement)).To(BeTrue())
	})

	It("limits employees to their own balance", func() {
		employee := &internal.User{ID: 5, Role: internal.RoleEmployee}
		employer := &internal.User{ID: 1, Role: internal.RoleEmployer}

		Expect(gate.CanView(employee, 5)).To(BeTrue())
		Expect(gate.CanView(employee, 6)).To(BeFalse())
		Expect(gate.CanView(employer, 6)).To(BeTrue())
		Expect(gate.CanView(nil, 6)).To(BeFalse())
	})
})
