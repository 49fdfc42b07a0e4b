// Package callback runs asynchronous enrichments on a bounded worker pool and
// reports each result to the caller's webhook.
package callback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/queue/memory"
	"github.com/JakeFAU/site-enricher/internal/site"
)

// ErrQueueFull is returned when a task could not be queued in time.
var ErrQueueFull = errors.New("callback queue full")

// Task is one fire-and-forget enrichment.
type Task struct {
	URL         string
	CallbackURL string
	Key         string
	Tags        []string
	Languages   []string
}

// Enricher runs one enrichment; implemented by enrich.Orchestrator.
type Enricher interface {
	EnrichAndStore(ctx context.Context, req site.EnrichmentRequest) site.Result
}

// Notifier delivers a finished result.
type Notifier interface {
	Deliver(ctx context.Context, url, key string, env site.Envelope) error
}

// Config sizes the pool.
type Config struct {
	Workers        int
	QueueDepth     int
	EnqueueTimeout time.Duration
}

// Dispatcher owns the task queue and its workers.
type Dispatcher struct {
	queue    *memory.Queue[Task]
	enricher Enricher
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
}

// New creates a Dispatcher. Call Run to start the workers.
func New(enricher Enricher, notifier Notifier, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 2 * time.Second
	}
	return &Dispatcher{
		queue:    memory.NewQueue[Task](cfg.QueueDepth),
		enricher: enricher,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.Named("callback"),
	}
}

// DispatchAsync queues task and returns without waiting for the enrichment.
func (d *Dispatcher) DispatchAsync(ctx context.Context, task Task) error {
	enqueueCtx, cancel := context.WithTimeout(ctx, d.cfg.EnqueueTimeout)
	defer cancel()
	if err := d.queue.Enqueue(enqueueCtx, task); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrQueueFull
		}
		return fmt.Errorf("queue enqueue: %w", err)
	}
	d.logger.Debug("task queued", zap.String("url", task.URL), zap.Int("depth", d.queue.Len()))
	return nil
}

// Run starts the workers and blocks until ctx ends or the queue is closed and
// drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range d.cfg.Workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			newWorker(id, d).run(ctx)
		}(i)
	}
	wg.Wait()
}

// Close stops accepting tasks. Workers finish what is already queued.
func (d *Dispatcher) Close() {
	d.queue.Close()
}
