package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal/core/events"
	"github.com/frahmantamala/payroll-ledger/internal/notification"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish ledger events by hand to check subscribers and the notification webhook`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a test event",
	Long:      `Publish a settlement.completed or payment.requested event to the event bus`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypeSettlementCompleted, events.EventTypePaymentRequested},
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(cmd.Context(), args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventEmployeeID int64
	eventAmount     string
	eventNotify     bool
)

func buildTestEvent(eventType string, employeeID int64, amount decimal.Decimal) (events.Event, error) {
	switch eventType {
	case events.EventTypeSettlementCompleted:
		return events.NewSettlementCompletedEvent(employeeID, 0, 0, decimal.Zero, decimal.Zero, amount, amount), nil
	case events.EventTypePaymentRequested:
		return events.NewPaymentRequestedEvent(employeeID, decimal.Zero, decimal.Zero, amount, amount), nil
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func publishTestEvent(ctx context.Context, eventType string) error {
	lg := logger.LoggerWrapper()

	amount, err := decimal.NewFromString(eventAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", eventAmount, err)
	}

	event, err := buildTestEvent(eventType, eventEmployeeID, amount)
	if err != nil {
		return err
	}

	eventBus := events.NewEventBus(lg)
	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	var dispatcher *notification.Dispatcher
	if eventNotify {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		dispatcher = notification.NewDispatcher(notification.Config{
			WebhookURL: cfg.Notification.WebhookURL,
			Timeout:    cfg.Notification.Timeout,
			MaxWorkers: 1,
		}, lg)
		defer dispatcher.Shutdown()
		notification.NewEventHandler(dispatcher, lg).RegisterEventHandlers(eventBus)
	}

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if ctx == nil {
		ctx = context.Background()
	}
	if err := eventBus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if dispatcher != nil {
		drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := dispatcher.Drain(drainCtx); err != nil {
			return err
		}
	}

	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventEmployeeID, "employee", 1, "Employee id carried by the event")
	publishEventCmd.Flags().StringVar(&eventAmount, "amount", "100", "Total salary carried by the event")
	publishEventCmd.Flags().BoolVar(&eventNotify, "notify", false, "Also forward the event to the configured notification webhook")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
