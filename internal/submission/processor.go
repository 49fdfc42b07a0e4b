// Package submission manages the queue of user-submitted URLs: accepting new
// submissions and draining pending ones through the enrichment orchestrator.
package submission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/metrics"
	"github.com/JakeFAU/site-enricher/internal/site"
)

// DefaultLimit is used when a drain or listing asks for a non-positive limit.
const DefaultLimit = 10

// Enricher runs one enrichment; implemented by enrich.Orchestrator.
type Enricher interface {
	EnrichAndStore(ctx context.Context, req site.EnrichmentRequest) site.Result
}

// ProcessorConfig holds the enrichment parameters applied to queued items.
type ProcessorConfig struct {
	DefaultLimit int
	Languages    []string
	Tags         []string
	UseCache     bool
}

// ItemOutcome reports what happened to one drained submission.
type ItemOutcome struct {
	URL     string    `json:"url"`
	Success bool      `json:"success"`
	Code    site.Code `json:"code"`
	Reason  string    `json:"reason,omitempty"`
}

// DrainReport summarizes one drain.
type DrainReport struct {
	Total        int
	SuccessCount int
	Elapsed      time.Duration
	Items        []ItemOutcome
	// Err is set when pending submissions could not be read at all.
	Err error
}

// Processor drains pending submissions sequentially.
type Processor struct {
	submissions site.SubmissionStore
	enricher    Enricher
	cfg         ProcessorConfig
	logger      *zap.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(submissions site.SubmissionStore, enricher Enricher, cfg ProcessorConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	return &Processor{
		submissions: submissions,
		enricher:    enricher,
		cfg:         cfg,
		logger:      logger.Named("drain"),
	}
}

// DrainPending enriches up to limit pending submissions in the given order.
// Items are handled one at a time; a success marks the submission done,
// anything else leaves it pending for a later drain.
func (p *Processor) DrainPending(ctx context.Context, limit int, order site.PendingOrder) DrainReport {
	start := time.Now()
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}

	pending, err := p.submissions.SelectPending(ctx, limit, order)
	if err != nil {
		p.logger.Error("select pending failed", zap.Error(err))
		return DrainReport{Items: []ItemOutcome{}, Elapsed: time.Since(start), Err: fmt.Errorf("select pending: %w", err)}
	}

	report := DrainReport{Total: len(pending), Items: make([]ItemOutcome, 0, len(pending))}
	for _, sub := range pending {
		outcome := p.processOne(ctx, sub)
		if outcome.Success {
			report.SuccessCount++
			metrics.ObserveDrainItem("success")
		} else {
			metrics.ObserveDrainItem("failure")
		}
		report.Items = append(report.Items, outcome)
	}
	report.Elapsed = time.Since(start)

	p.logger.Info("drain finished",
		zap.Int("total", report.Total),
		zap.Int("success", report.SuccessCount),
		zap.String("order", string(order)),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report
}

func (p *Processor) processOne(ctx context.Context, sub site.SubmissionRecord) ItemOutcome {
	res := p.enricher.EnrichAndStore(ctx, site.EnrichmentRequest{
		URL:         sub.URL,
		Tags:        p.cfg.Tags,
		Languages:   p.cfg.Languages,
		UseCache:    p.cfg.UseCache,
		SubmittedBy: sub.SubmittedBy,
	})
	outcome := ItemOutcome{URL: sub.URL, Code: res.Code}
	if !res.OK() {
		outcome.Reason = res.Reason()
		p.logger.Warn("item failed", zap.String("url", sub.URL), zap.String("reason", outcome.Reason))
		return outcome
	}

	if _, err := p.submissions.UpdateStatusByURL(ctx, sub.URL, site.SubmissionDone); err != nil {
		outcome.Code = site.CodeFailure
		outcome.Reason = fmt.Sprintf("mark done: %v", err)
		p.logger.Error("mark done failed", zap.String("url", sub.URL), zap.Error(err))
		return outcome
	}
	outcome.Success = true
	return outcome
}
