package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/clock/system"
	"github.com/JakeFAU/site-enricher/internal/site"
	"github.com/JakeFAU/site-enricher/internal/submission"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type tickerFactory struct {
	mu       sync.Mutex
	tickers  []*fakeTicker
	interval time.Duration
}

func (f *tickerFactory) New(d time.Duration) system.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interval = d
	t := &fakeTicker{ch: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) last() *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

type fakeDrainer struct {
	calls   atomic.Int32
	limit   atomic.Int32
	order   atomic.Value
	block   chan struct{}
	started chan struct{}
}

func (f *fakeDrainer) DrainPending(_ context.Context, limit int, order site.PendingOrder) submission.DrainReport {
	f.calls.Add(1)
	f.limit.Store(int32(limit))
	f.order.Store(order)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return submission.DrainReport{}
}

func TestSchedulerDrainsOnTick(t *testing.T) {
	t.Parallel()

	factory := &tickerFactory{}
	drainer := &fakeDrainer{}
	s := New(drainer, factory.New, Config{Interval: 10 * time.Minute, BatchLimit: 50, Order: site.OrderPriority}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, factory.count())
	require.Equal(t, 10*time.Minute, factory.interval)

	factory.last().ch <- time.Now()
	factory.last().ch <- time.Now()
	require.Eventually(t, func() bool { return drainer.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 50, drainer.limit.Load())
	require.Equal(t, site.OrderPriority, drainer.order.Load())

	require.NoError(t, s.Stop(context.Background()))
	require.True(t, factory.last().stopped.Load())
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerSingleFlightSkipsOverlappingTicks(t *testing.T) {
	t.Parallel()

	factory := &tickerFactory{}
	drainer := &fakeDrainer{block: make(chan struct{}), started: make(chan struct{}, 4)}
	s := New(drainer, factory.New, Config{Interval: time.Minute, SingleFlight: true}, nil)
	require.NoError(t, s.Start(context.Background()))

	factory.last().ch <- time.Now()
	<-drainer.started
	factory.last().ch <- time.Now()
	factory.last().ch <- time.Now()
	require.EqualValues(t, 1, drainer.calls.Load())

	close(drainer.block)
	require.NoError(t, s.Stop(context.Background()))
	require.EqualValues(t, 1, drainer.calls.Load())
}

func TestSchedulerWithoutSingleFlightOverlaps(t *testing.T) {
	t.Parallel()

	factory := &tickerFactory{}
	drainer := &fakeDrainer{block: make(chan struct{}), started: make(chan struct{}, 4)}
	s := New(drainer, factory.New, Config{Interval: time.Minute}, nil)
	require.NoError(t, s.Start(context.Background()))

	factory.last().ch <- time.Now()
	factory.last().ch <- time.Now()
	<-drainer.started
	<-drainer.started
	require.EqualValues(t, 2, drainer.calls.Load())

	close(drainer.block)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerStopHonoursDeadline(t *testing.T) {
	t.Parallel()

	factory := &tickerFactory{}
	drainer := &fakeDrainer{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(drainer, factory.New, Config{Interval: time.Minute}, nil)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { close(drainer.block) })

	factory.last().ch <- time.Now()
	<-drainer.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	t.Parallel()

	s := New(&fakeDrainer{}, (&tickerFactory{}).New, Config{}, nil)
	require.Error(t, s.Start(context.Background()))
}

func TestSchedulerCanRestart(t *testing.T) {
	t.Parallel()

	factory := &tickerFactory{}
	drainer := &fakeDrainer{}
	s := New(drainer, factory.New, Config{Interval: time.Minute}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	factory.last().ch <- time.Now()
	require.Eventually(t, func() bool { return drainer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, 2, factory.count())
}
