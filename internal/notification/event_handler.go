package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payroll-ledger/internal/core/events"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"
)

type Enqueuer interface {
	Enqueue(n Notification) error
}

type EventHandler struct {
	queue  Enqueuer
	logger *slog.Logger
}

func NewEventHandler(queue Enqueuer, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		queue:  queue,
		logger: logger,
	}
}

func (h *EventHandler) HandleSettlementCompleted(ctx context.Context, event events.Event) error {
	settled, ok := event.(*events.SettlementCompletedEvent)
	if !ok {
		h.logger.Error("invalid event type for settlement completed handler", "event_type", event.EventType())
		return fmt.Errorf("expected SettlementCompletedEvent, got %T", event)
	}

	h.logger.Info("notifying settlement",
		"employee_id", settled.EmployeeID,
		"settled_by", settled.SettledBy,
		"total_salary", settled.TotalSalary.String(),
		"event_id", settled.EventID())

	return h.enqueue(fromEvent(ctx, event, settled.EmployeeID))
}

func (h *EventHandler) HandlePaymentRequested(ctx context.Context, event events.Event) error {
	requested, ok := event.(*events.PaymentRequestedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment requested handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentRequestedEvent, got %T", event)
	}

	h.logger.Info("notifying payment request",
		"employee_id", requested.EmployeeID,
		"total_salary", requested.TotalSalary.String(),
		"event_id", requested.EventID())

	return h.enqueue(fromEvent(ctx, event, requested.EmployeeID))
}

func (h *EventHandler) enqueue(n Notification) error {
	if err := h.queue.Enqueue(n); err != nil {
		return fmt.Errorf("enqueue %s notification for employee %d: %w", n.Type, n.EmployeeID, err)
	}
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeSettlementCompleted, h.HandleSettlementCompleted)
	eventBus.Subscribe(events.EventTypePaymentRequested, h.HandlePaymentRequested)

	h.logger.Info("notification event handlers registered",
		"handlers", []string{events.EventTypeSettlementCompleted, events.EventTypePaymentRequested})
}

// fromEvent copies the trace id of the request that raised the event.
func fromEvent(ctx context.Context, event events.Event, employeeID int64) Notification {
	n := Notification{
		Type:       event.EventType(),
		EventID:    event.EventID(),
		EmployeeID: employeeID,
		OccurredAt: event.OccurredAt(),
		TraceID:    logger.TraceID(ctx),
	}
	if data, ok := event.Payload().(map[string]interface{}); ok {
		n.Data = data
	}
	return n
}
