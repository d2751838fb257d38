package ledger

import (
	"net/http"
	"strconv"

	"github.com/frahmantamala/payroll-ledger/internal"
	"github.com/frahmantamala/payroll-ledger/internal/transport"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(nil)
	}
	return &Handler{
		BaseHandler: base,
		Service:     service,
	}
}

// GetUnpaid returns the caller's unpaid balance. Employers may pass
// ?userid= to look at somebody else.
func (h *Handler) GetUnpaid(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	target, err := h.targetUser(r, user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	balance, err := h.Service.ViewBalance(r.Context(), user, target)
	if err != nil {
		h.Logger.Error("GetUnpaid: service error", "error", err, "user_id", user.ID, "target_id", target)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.Service.RequestPayment(r.Context(), user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	logger.Annotate(r.Context(), "employee_id", user.ID, "total_salary", balance.TotalSalary.String())

	h.WriteJSON(w, http.StatusAccepted, PaymentRequestResponse{
		Message: "payment request sent to employer",
		Balance: balance,
	})
}

// Settle pays an employee: POST /salary/{employeeId}/payment
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	employeeID, err := h.PathInt64(r, "employeeId")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.Annotate(r.Context(), "employee_id", employeeID)

	result, err := h.Service.Settle(r.Context(), user, employeeID)
	if err != nil {
		h.Logger.Error("Settle: service error", "error", err, "employee_id", employeeID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	logger.Annotate(r.Context(), "outcome", result.Outcome, "total_salary", result.TotalSalary.String())
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	records, err := h.Service.Outstanding(r.Context(), user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToOutstandingResponse(records))
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	target, err := h.targetUser(r, user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	summary, err := h.Service.History(r.Context(), user, target)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) targetUser(r *http.Request, user *internal.User) (int64, error) {
	raw := r.URL.Query().Get("userid")
	if raw == "" {
		return user.ID, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.ErrInvalidUser
	}
	return id, nil
}
