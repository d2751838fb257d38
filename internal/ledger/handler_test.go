package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/ledger"
	"github.com/frahmantamala/payroll-ledger/internal/ledger/memory"
	"github.com/frahmantamala/payroll-ledger/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ledger Handler", func() {
	var (
		store   *memory.Store
		router  *chi.Mux
		handler *ledger.Handler
	)

	employer := &internal.User{ID: 1, Email: "boss@example.com", Role: internal.RoleEmployer}
	employee := &internal.User{ID: 2, Email: "worker@example.com", Role: internal.RoleEmployee}

	do := func(method, path string, user *internal.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if user != nil {
			req = req.WithContext(internal.ContextWithUser(context.Background(), user))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		body := decode(rec)
		errBody, ok := body["error"].(map[string]interface{})
		Expect(ok).To(BeTrue(), "expected an error envelope, got %s", rec.Body.String())
		return errBody["code"].(string)
	}

	BeforeEach(func() {
		store = memory.NewStore()
		store.AddUser(employer.ID, internal.RoleEmployer)
		store.AddUser(employee.ID, internal.RoleEmployee)

		svc := ledger.NewService(store, &stubReports{}, &recordingPublisher{},
			internal.LedgerConfig{RatePolicy: "sum", SettlementTimeout: time.Second}, quietLogger())
		handler = ledger.NewHandler(transport.NewBaseHandler(quietLogger()), svc)

		router = chi.NewRouter()
		router.Get("/salary/unpaid", handler.GetUnpaid)
		router.Get("/salary/unpaid/all", handler.GetOutstanding)
		router.Post("/salary/payment/request", handler.RequestPayment)
		router.Post("/salary/{employeeId}/payment", handler.Settle)
		router.Get("/users/history", handler.GetHistory)
	})

	Describe("POST /salary/{employeeId}/payment", func() {
		BeforeEach(func() {
			store.AddHours(employee.ID, d("8"))
			store.AddHours(employee.ID, d("5"))
			store.AddRate(employee.ID, d("15"))
			store.AddPermanent(employee.ID, d("100"))
		})

		It("settles and returns the paid amounts as strings", func() {
			rec := do(http.MethodPost, "/salary/2/payment", employer)
			Expect(rec.Code).To(Equal(http.StatusOK))

			body := decode(rec)
			Expect(body["employeeId"]).To(BeEquivalentTo(2))
			Expect(body["totalHours"]).To(Equal("13"))
			Expect(body["hourlySalary"]).To(Equal("15"))
			Expect(body["permanentSalary"]).To(Equal("100"))
			Expect(body["totalSalary"]).To(Equal("295"))
			Expect(body["outcome"]).To(Equal("committed"))
		})

		It("returns 403 for employees", func() {
			rec := do(http.MethodPost, "/salary/2/payment", employee)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal("UNAUTHORIZED_SETTLEMENT"))
		})

		It("returns 404 once everything is paid and no rate remains", func() {
			store2 := memory.NewStore()
			store2.AddUser(3, internal.RoleEmployee)
			svc := ledger.NewService(store2, &stubReports{}, nil, internal.LedgerConfig{}, quietLogger())
			router.Post("/other/{employeeId}/payment", ledger.NewHandler(nil, svc).Settle)

			rec := do(http.MethodPost, "/other/3/payment", employer)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal("NO_UNPAID_SALARY"))
		})

		It("returns 404 for unknown employees", func() {
			rec := do(http.MethodPost, "/salary/77/payment", employer)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal("EMPLOYEE_NOT_FOUND"))
		})

		It("returns 400 for malformed ids", func() {
			rec := do(http.MethodPost, "/salary/abc/payment", employer)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal("INVALID_USER"))
		})

		It("returns 500 without leaking the cause when the transaction fails", func() {
			store.FailHistoryWith(context.DeadlineExceeded)

			rec := do(http.MethodPost, "/salary/2/payment", employer)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(errorCode(rec)).To(Equal("SETTLEMENT_FAILED"))
			Expect(rec.Body.String()).NotTo(ContainSubstring("deadline"))
		})

		It("returns 401 without an identity", func() {
			rec := do(http.MethodPost, "/salary/2/payment", nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("GET /salary/unpaid", func() {
		It("shows the caller's own balance", func() {
			store.AddHours(employee.ID, d("2.5"))
			store.AddRate(employee.ID, d("10"))

			rec := do(http.MethodGet, "/salary/unpaid", employee)
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["unpaidHours"]).To(Equal("2.5"))
			Expect(body["totalSalary"]).To(Equal("25"))
		})

		It("forbids employees from reading other balances", func() {
			rec := do(http.MethodGet, "/salary/unpaid?userid=1", employee)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal("UNAUTHORIZED_ACCESS"))
		})

		It("lets employers pick a user", func() {
			store.AddPermanent(employee.ID, d("40"))

			rec := do(http.MethodGet, "/salary/unpaid?userid=2", employer)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["totalSalary"]).To(Equal("40"))
		})
	})

	Describe("POST /salary/payment/request", func() {
		It("answers 400 with nothing unpaid", func() {
			rec := do(http.MethodPost, "/salary/payment/request", employee)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal("NOTHING_TO_REQUEST"))
		})

		It("accepts the request when money is owed", func() {
			store.AddPermanent(employee.ID, d("12.50"))

			rec := do(http.MethodPost, "/salary/payment/request", employee)
			Expect(rec.Code).To(Equal(http.StatusAccepted))
		})
	})

	Describe("GET /salary/unpaid/all", func() {
		It("is employer only", func() {
			rec := do(http.MethodGet, "/salary/unpaid/all", employee)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("returns an empty list", func() {
			rec := do(http.MethodGet, "/salary/unpaid/all", employer)
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["employees"]).To(BeEmpty())
			Expect(body["total"]).To(Equal("0"))
		})
	})

	Describe("GET /users/history", func() {
		It("returns the caller's empty history", func() {
			rec := do(http.MethodGet, "/users/history", employee)
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["userid"]).To(BeEquivalentTo(2))
			Expect(body["entries"]).To(BeEmpty())
		})
	})
})
