package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerConfig contains mail worker configuration.
type WorkerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	NumWorkers        int
	// SendsPerSecond throttles outbound sends across all workers.
	// Zero disables throttling.
	SendsPerSecond float64
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:         50,
		PollInterval:      5 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		NumWorkers:        2,
	}
}

// Worker drains the mail queue in the background so that transport latency
// never blocks the action that raised an event. Delivery is at-least-once:
// a retried item may produce a duplicate email, never a duplicate in-app
// record.
type Worker struct {
	config     WorkerConfig
	repo       Repository
	dispatcher *Dispatcher
	limiter    *rate.Limiter

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a new mail worker.
func NewWorker(config WorkerConfig, repo Repository, dispatcher *Dispatcher) *Worker {
	var limiter *rate.Limiter
	if config.SendsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.SendsPerSecond), 1)
	}

	return &Worker{
		config:     config,
		repo:       repo,
		dispatcher: dispatcher,
		limiter:    limiter,
		stopCh:     make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting mail worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("mail worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processBatch(ctx, workerID)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	items, err := w.repo.FetchPendingMail(ctx, w.config.BatchSize)
	if err != nil {
		slog.Error("failed to fetch pending mail", "worker", workerID, "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	slog.Debug("processing mail queue", "worker", workerID, "count", len(items))

	for _, item := range items {
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item *MailQueueItem) {
	if len(item.Recipients) == 0 {
		// Nothing to deliver; should not be enqueued but handled anyway.
		if err := w.repo.MarkMailSent(ctx, item.ID); err != nil {
			slog.Error("failed to mark empty item as sent", "item_id", item.ID, "error", err)
		}
		recordMailProcessed("empty")
		return
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
	}

	err := w.dispatcher.Send(ctx, item.Recipients, item.Subject, item.Body)
	if err != nil {
		w.handleSendError(ctx, item, err)
		return
	}

	if err := w.repo.MarkMailSent(ctx, item.ID); err != nil {
		slog.Error("failed to mark mail as sent", "item_id", item.ID, "error", err)
	}

	recordMailProcessed("sent")

	slog.Debug("mail sent",
		"item_id", item.ID,
		"event_kind", item.EventKind,
		"recipients", len(item.Recipients),
	)
}

func (w *Worker) handleSendError(ctx context.Context, item *MailQueueItem, err error) {
	slog.Warn("mail send failed",
		"item_id", item.ID,
		"attempt", item.Attempts+1,
		"max_attempts", item.MaxAttempts,
		"error", err,
	)

	if !isRetryable(err) {
		if markErr := w.repo.MarkMailFailed(ctx, item.ID, err); markErr != nil {
			slog.Error("failed to mark mail as failed", "item_id", item.ID, "error", markErr)
		}
		recordMailProcessed("failed")
		return
	}

	if item.Attempts+1 >= item.MaxAttempts {
		if markErr := w.repo.MarkMailFailed(ctx, item.ID, fmt.Errorf("max attempts exceeded: %w", err)); markErr != nil {
			slog.Error("failed to mark mail as failed", "item_id", item.ID, "error", markErr)
		}
		recordMailProcessed("failed")
		return
	}

	nextAttempt := w.calculateNextAttempt(item.Attempts + 1)
	if markErr := w.repo.MarkMailForRetry(ctx, item.ID, err, nextAttempt); markErr != nil {
		slog.Error("failed to mark mail for retry", "item_id", item.ID, "error", markErr)
	}
	recordMailProcessed("retry")

	slog.Info("mail scheduled for retry",
		"item_id", item.ID,
		"next_attempt", nextAttempt,
	)
}

func (w *Worker) calculateNextAttempt(attempt int) time.Time {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return time.Now().Add(time.Duration(backoff))
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
