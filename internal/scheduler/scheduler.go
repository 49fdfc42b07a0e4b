// Package scheduler drains the submission queue on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/clock/system"
	"github.com/JakeFAU/site-enricher/internal/site"
	"github.com/JakeFAU/site-enricher/internal/submission"
)

// Drainer runs one drain; implemented by submission.Processor.
type Drainer interface {
	DrainPending(ctx context.Context, limit int, order site.PendingOrder) submission.DrainReport
}

// TickerFactory builds the ticker driving the loop.
type TickerFactory func(d time.Duration) system.Ticker

// Config controls the drain cadence.
type Config struct {
	Interval     time.Duration
	BatchLimit   int
	Order        site.PendingOrder
	SingleFlight bool
}

// Scheduler triggers a drain on every tick.
type Scheduler struct {
	drainer   Drainer
	newTicker TickerFactory
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	ticker   system.Ticker
	loopDone chan struct{}
	runs     sync.WaitGroup
	inFlight atomic.Bool
}

// New creates a Scheduler. A nil factory uses real tickers.
func New(drainer Drainer, newTicker TickerFactory, cfg Config, logger *zap.Logger) *Scheduler {
	if newTicker == nil {
		newTicker = system.New().NewTicker
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	return &Scheduler{
		drainer:   drainer,
		newTicker: newTicker,
		cfg:       cfg,
		logger:    logger.Named("scheduler"),
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op. Drains run under a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.cfg.Interval)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = s.newTicker(s.cfg.Interval)
	s.loopDone = make(chan struct{})
	s.running = true

	go s.loop(runCtx, s.ticker, s.loopDone)
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_limit", s.cfg.BatchLimit),
		zap.Bool("single_flight", s.cfg.SingleFlight),
	)
	return nil
}

// Stop halts the ticker and waits for in-flight drains until ctx ends.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.ticker.Stop()
	s.cancel()
	loopDone := s.loopDone
	s.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		<-loopDone
		s.runs.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) loop(ctx context.Context, ticker system.Ticker, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if s.cfg.SingleFlight && !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Info("previous drain still running, skipping tick")
		return
	}
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if s.cfg.SingleFlight {
			defer s.inFlight.Store(false)
		}
		report := s.drainer.DrainPending(ctx, s.cfg.BatchLimit, s.cfg.Order)
		if report.Err != nil {
			s.logger.Error("scheduled drain failed", zap.Error(report.Err))
			return
		}
		s.logger.Info("scheduled drain done",
			zap.Int("total", report.Total),
			zap.Int("success", report.SuccessCount),
			zap.Duration("elapsed", report.Elapsed),
		)
	}()
}
