package salary

import (
	"net/http"

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

func (h *Handler) AddHours(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	var dto AddHoursDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	entry, err := h.Service.AddHours(r.Context(), user.ID, dto.Hours)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, EntryResponse{Message: "Hours added successfully", Entry: entry})
}

func (h *Handler) AddPermanentSalary(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	var dto SalaryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	entry, err := h.Service.AddPermanentSalary(r.Context(), user.ID, dto.Salary)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, EntryResponse{Message: "Permanent salary added successfully", Entry: entry})
}

func (h *Handler) SetHourlyRate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	var dto SalaryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	entry, err := h.Service.SetHourlyRate(r.Context(), user.ID, dto.Salary)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, EntryResponse{Message: "Hourly salary set successfully", Entry: entry})
}

// UpdateHourlyRate handles PUT /salary/{employeeId}/hourly
func (h *Handler) UpdateHourlyRate(w http.ResponseWriter, r *http.Request) {
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

	var dto UpdateRateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	entry, err := h.Service.UpdateHourlyRate(r.Context(), user, employeeID, dto.NewSalary)
	if err != nil {
		h.Logger.Error("UpdateHourlyRate: service error", "error", err, "employee_id", employeeID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, EntryResponse{Message: "Hourly salary updated successfully", Entry: entry})
}
