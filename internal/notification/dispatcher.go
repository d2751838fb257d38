package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull        = errors.New("notification queue full")
	ErrDispatcherClosed = errors.New("notification dispatcher is shut down")
)

// Notification is the JSON document posted to the webhook.
type Notification struct {
	Type       string                 `json:"type"`
	EventID    string                 `json:"event_id"`
	EmployeeID int64                  `json:"employee_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	TraceID    string                 `json:"trace_id,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

type Worker struct {
	ID         int
	WorkerPool chan chan Notification
	JobChannel chan Notification
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Notification, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Notification),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, deliver func(Notification)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case n := <-w.JobChannel:
				w.Logger.Debug("worker delivering notification", "worker_id", w.ID, "event_id", n.EventID)
				deliver(n)
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	WebhookURL   string
	Timeout      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

// Dispatcher delivers notifications to a webhook from a fixed pool of
// workers. Delivery is best effort: failures are logged and dropped.
type Dispatcher struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	jobQueue   chan Notification
	workerPool chan chan Notification
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once

	// pending counts accepted notifications not yet delivered or failed.
	pending atomic.Int64
}

func NewDispatcher(config Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &Dispatcher{
		webhookURL: config.WebhookURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan Notification, jobQueueSize),
		workerPool: make(chan chan Notification, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	d.start()

	return d
}

func (d *Dispatcher) start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.deliver)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- n:
				case <-d.ctx.Done():
					d.logger.Info("notification dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("notification dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

// Enqueue never blocks. It fails when the queue is full or the dispatcher
// has been shut down.
func (d *Dispatcher) Enqueue(n Notification) error {
	if d.ctx.Err() != nil {
		return ErrDispatcherClosed
	}

	d.pending.Add(1)
	select {
	case d.jobQueue <- n:
		d.logger.Debug("notification queued",
			"type", n.Type,
			"event_id", n.EventID,
			"queue_length", len(d.jobQueue))
		return nil
	default:
		d.pending.Add(-1)
		d.logger.Warn("notification queue full, dropping notification",
			"type", n.Type,
			"event_id", n.EventID,
			"queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

type Stats struct {
	Workers       int   `json:"workers"`
	Queued        int   `json:"queued"`
	QueueCapacity int   `json:"queue_capacity"`
	Pending       int64 `json:"pending"`
	Closed        bool  `json:"closed"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Workers:       d.maxWorkers,
		Queued:        len(d.jobQueue),
		QueueCapacity: cap(d.jobQueue),
		Pending:       d.pending.Load(),
		Closed:        d.ctx.Err() != nil,
	}
}

// Drain waits until every accepted notification has been attempted or ctx
// is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for d.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain notifications: %d pending: %w", d.pending.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// Shutdown stops the workers. Notifications still queued are dropped.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down notification dispatcher", "pending", len(d.jobQueue))
		d.cancel()
		d.wg.Wait()
		d.logger.Info("notification dispatcher shutdown complete")
	})
}

func (d *Dispatcher) deliver(n Notification) {
	defer d.pending.Add(-1)

	if err := d.post(n); err != nil {
		d.logger.Error("notification delivery failed",
			"type", n.Type,
			"event_id", n.EventID,
			"employee_id", n.EmployeeID,
			"error", err)
		return
	}
	d.logger.Info("notification delivered",
		"type", n.Type,
		"event_id", n.EventID,
		"employee_id", n.EmployeeID)
}

func (d *Dispatcher) post(n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", n.Type)
	req.Header.Set("X-Event-ID", n.EventID)
	if n.TraceID != "" {
		req.Header.Set("X-Trace-ID", n.TraceID)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
