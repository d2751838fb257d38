package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payroll-ledger/internal/notification"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools",
	Long:  `Start and manage the background worker pools of the ledger.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Start the notification worker pool",
	Long:  `Start the webhook notification worker pool and send a test notification through it`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	webhookURL   string
)

func startNotificationWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(config)
	lg := logger.L()

	notificationConfig := notification.Config{
		WebhookURL:   getStringFlag(webhookURL, config.Notification.WebhookURL),
		Timeout:      config.Notification.Timeout,
		MaxWorkers:   getIntFlag(maxWorkers, config.Notification.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Notification.JobQueueSize),
	}
	if notificationConfig.WebhookURL == "" {
		fmt.Fprintln(os.Stderr, "webhook url is required (config notification.webhook_url or --webhook-url)")
		os.Exit(1)
	}

	lg.Info("starting notification worker",
		"max_workers", notificationConfig.MaxWorkers,
		"job_queue_size", notificationConfig.JobQueueSize,
		"webhook_url", notificationConfig.WebhookURL)

	dispatcher := notification.NewDispatcher(notificationConfig, lg)

	if err := dispatcher.Enqueue(notification.Notification{
		Type:       "worker.started",
		EventID:    fmt.Sprintf("worker-%d", time.Now().Unix()),
		OccurredAt: time.Now(),
		Data:       map[string]interface{}{"source": "cli-command"},
	}); err != nil {
		lg.Warn("failed to enqueue startup notification", "error", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("notification worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	lg.Info("received signal, shutting down notification worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		dispatcher.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lg.Info("notification worker pool shutdown complete")
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Webhook URL (overrides config)")

	workerCmd.AddCommand(notificationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
