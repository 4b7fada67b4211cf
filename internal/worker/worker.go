// Package worker removes stored images once no repair job refers to them.
// It consumes images_released events published by the API service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned by Start when the broker stops delivering
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// DeliverySource is satisfied by *rabbitmq.Client
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// ReferenceChecker is satisfied by *storage.Storage
type ReferenceChecker interface {
	ImageReferenced(ctx context.Context, url string) (bool, error)
}

// FileRemover is satisfied by *uploads.Store
type FileRemover interface {
	Remove(url string) error
}

// Republisher is satisfied by *rabbitmq.Client
type Republisher interface {
	Republish(ctx context.Context, body []byte, contentType string, headers amqp.Table) error
}

// Default retry policy for transient failures
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Config holds worker configuration. Without a Retrier a failed task is
// requeued once, using the broker's redelivered flag as the counter.
type Config struct {
	Logger      *slog.Logger
	Source      DeliverySource
	References  ReferenceChecker
	Files       FileRemover
	Retrier     Republisher
	ConsumerTag string
	Concurrency int
	TaskTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// Worker represents the background image cleanup worker
type Worker struct {
	logger      *slog.Logger
	source      DeliverySource
	references  ReferenceChecker
	files       FileRemover
	retrier     Republisher
	consumerTag string
	concurrency int
	taskTimeout time.Duration
	maxRetries  int
	retryDelay  time.Duration

	tasksChan chan *taskMessage
	wg        sync.WaitGroup
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	tag := cfg.ConsumerTag
	if tag == "" {
		tag = "repair-worker"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Worker{
		logger:      cfg.Logger,
		source:      cfg.Source,
		references:  cfg.References,
		files:       cfg.Files,
		retrier:     cfg.Retrier,
		consumerTag: tag,
		concurrency: concurrency,
		taskTimeout: cfg.TaskTimeout,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		tasksChan:   make(chan *taskMessage, concurrency),
		stopChan:    make(chan struct{}),
	}
}

// Start consumes events until ctx is canceled or the delivery channel closes.
// In-flight tasks are finished before it returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("task_timeout", w.taskTimeout),
		slog.Int("max_retries", w.maxRetries),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	closed := w.startMessageDispatcher(ctx, deliveries)

	close(w.tasksChan)
	w.wg.Wait()

	if closed {
		return fmt.Errorf("worker stopped: %w", ErrDeliveriesClosed)
	}

	w.logger.Info("Worker context canceled, stopped")
	return nil
}

// Stop asks the pool to exit without draining queued tasks. Unacked
// messages are redelivered by the broker.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
