package callback

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/metrics"
	"github.com/JakeFAU/site-enricher/internal/queue/memory"
	"github.com/JakeFAU/site-enricher/internal/site"
)

type worker struct {
	d      *Dispatcher
	logger *zap.Logger
}

func newWorker(id int, d *Dispatcher) *worker {
	return &worker{d: d, logger: d.logger.With(zap.Int("worker", id))}
}

func (w *worker) run(ctx context.Context) {
	for {
		task, err := w.d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, memory.ErrClosed) {
				w.logger.Error("dequeue failed", zap.Error(err))
				continue
			}
			return
		}
		w.process(ctx, task)
	}
}

func (w *worker) process(ctx context.Context, task Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	res := w.d.enricher.EnrichAndStore(ctx, site.EnrichmentRequest{
		URL:       task.URL,
		Tags:      task.Tags,
		Languages: task.Languages,
	})
	logger := w.logger.With(zap.String("url", task.URL), zap.Int("code", int(res.Code)))
	if task.CallbackURL == "" {
		logger.Info("async enrichment finished without callback")
		metrics.ObserveCallback("skipped")
		return
	}
	if err := w.d.notifier.Deliver(ctx, task.CallbackURL, task.Key, site.EnvelopeOf(res)); err != nil {
		logger.Error("callback failed", zap.String("callback_url", task.CallbackURL), zap.Error(err))
		metrics.ObserveCallback("error")
		return
	}
	logger.Info("callback delivered", zap.String("callback_url", task.CallbackURL))
	metrics.ObserveCallback("delivered")
}
