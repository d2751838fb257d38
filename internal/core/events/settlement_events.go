package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeSettlementCompleted = "settlement.completed"
	EventTypePaymentRequested    = "payment.requested"
)

type SettlementCompletedEvent struct {
	BaseEvent
	EmployeeID      int64           `json:"employee_id"`
	SettledBy       int64           `json:"settled_by"`
	HistoryID       int64           `json:"history_id"`
	TotalHours      decimal.Decimal `json:"total_hours"`
	HourlySalary    decimal.Decimal `json:"hourly_salary"`
	PermanentSalary decimal.Decimal `json:"permanent_salary"`
	TotalSalary     decimal.Decimal `json:"total_salary"`
}

func NewSettlementCompletedEvent(employeeID, settledBy, historyID int64, hours, rate, permanent, total decimal.Decimal) *SettlementCompletedEvent {
	return &SettlementCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSettlementCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"employee_id":      employeeID,
				"settled_by":       settledBy,
				"history_id":       historyID,
				"total_hours":      hours.String(),
				"hourly_salary":    rate.String(),
				"permanent_salary": permanent.String(),
				"total_salary":     total.String(),
			},
		},
		EmployeeID:      employeeID,
		SettledBy:       settledBy,
		HistoryID:       historyID,
		TotalHours:      hours,
		HourlySalary:    rate,
		PermanentSalary: permanent,
		TotalSalary:     total,
	}
}

type PaymentRequestedEvent struct {
	BaseEvent
	EmployeeID  int64           `json:"employee_id"`
	TotalSalary decimal.Decimal `json:"total_salary"`
}

func NewPaymentRequestedEvent(employeeID int64, hours, rate, permanent, total decimal.Decimal) *PaymentRequestedEvent {
	return &PaymentRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"employee_id":      employeeID,
				"unpaid_hours":     hours.String(),
				"hourly_salary":    rate.String(),
				"permanent_salary": permanent.String(),
				"total_salary":     total.String(),
			},
		},
		EmployeeID:  employeeID,
		TotalSalary: total,
	}
}
