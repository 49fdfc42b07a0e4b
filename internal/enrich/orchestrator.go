// Package enrich runs one URL through crawl, language-model enrichment and
// persistence.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/metrics"
	"github.com/JakeFAU/site-enricher/internal/site"
)

// Pipeline is the slice of llm.Pipeline the orchestrator depends on.
type Pipeline interface {
	Enrich(ctx context.Context, raw string, languages, tagHint []string) site.EnrichedContent
}

// Hasher derives archive keys for raw pages.
type Hasher interface {
	ArchiveKey(prefix string, data []byte) (key, digest string)
}

// Config controls the optional archive and notification steps.
type Config struct {
	ArchivePrefix string
	ContentType   string
	Topic         string
}

// Orchestrator implements the enrich-and-store flow.
type Orchestrator struct {
	crawler   site.Crawler
	pipeline  Pipeline
	sites     site.SiteStore
	blobs     site.BlobStore
	hasher    Hasher
	publisher site.Publisher
	clock     site.Clock
	cfg       Config
	logger    *zap.Logger
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithArchive stores the raw HTML of every crawled page in blobs.
func WithArchive(blobs site.BlobStore, hasher Hasher) Option {
	return func(o *Orchestrator) {
		o.blobs = blobs
		o.hasher = hasher
	}
}

// WithPublisher announces every stored record on cfg.Topic.
func WithPublisher(p site.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// New constructs an Orchestrator.
func New(
	crawler site.Crawler,
	pipeline Pipeline,
	sites site.SiteStore,
	clock site.Clock,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	o := &Orchestrator{
		crawler:  crawler,
		pipeline: pipeline,
		sites:    sites,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnrichAndStore crawls, enriches and upserts req.URL. All failures are
// reported in the returned Result.
func (o *Orchestrator) EnrichAndStore(ctx context.Context, req site.EnrichmentRequest) site.Result {
	res := o.enrichAndStore(ctx, req)
	metrics.ObserveEnrichment(int(res.Code))
	return res
}

func (o *Orchestrator) enrichAndStore(ctx context.Context, req site.EnrichmentRequest) site.Result {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return site.Result{Code: site.CodeInvalid, Err: site.ErrInvalidURL}
	}
	logger := o.logger.With(zap.String("url", url))

	if req.UseCache {
		rec, err := o.sites.GetByURL(ctx, url)
		switch {
		case err == nil:
			logger.Info("cache hit")
			return site.CacheHit(rec)
		case !errors.Is(err, site.ErrNotFound):
			logger.Warn("cache lookup failed, crawling", zap.Error(err))
		}
	}

	start := time.Now()
	page, err := o.crawler.Crawl(ctx, url)
	if err == nil && page.Empty() {
		err = site.ErrEmptyPage
	}
	if err != nil {
		logger.Error("crawl failed", zap.Error(err))
		return site.Failure(fmt.Errorf("crawl: %w", err))
	}
	logger.Info("crawled",
		zap.Int("status", page.StatusCode),
		zap.Bool("headless", page.UsedHeadless),
		zap.Duration("duration", time.Since(start)),
	)

	rec := site.SiteRecord{
		URL:         url,
		Title:       page.Title,
		Description: page.Description,
		Content:     page.Content,
		SubmittedBy: req.SubmittedBy,
	}
	rec.SnapshotURI, rec.ContentHash = o.archive(ctx, logger, page.HTML)

	enriched := o.pipeline.Enrich(ctx, page.Text(), req.Languages, req.Tags)
	rec.Detail = enriched.Detail
	rec.Tags = enriched.Tags
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	rec.Languages = enriched.Languages
	if rec.Languages == nil {
		rec.Languages = map[string]*string{}
	}
	rec.UpdatedAt = o.clock.Now()

	stored, err := o.sites.UpsertByURL(ctx, rec)
	if err != nil {
		logger.Error("store failed", zap.Error(err))
		return site.Failure(fmt.Errorf("store: %w", err))
	}
	o.publish(ctx, logger, stored)
	logger.Info("enriched",
		zap.Int("tags", len(stored.Tags)),
		zap.Int("languages", len(stored.Languages)),
		zap.Bool("detail", stored.Detail != nil),
	)
	return site.Success(stored)
}

func (o *Orchestrator) archive(ctx context.Context, logger *zap.Logger, html []byte) (uri, digest string) {
	if o.blobs == nil || o.hasher == nil || len(html) == 0 {
		return "", ""
	}
	key, digest := o.hasher.ArchiveKey(o.cfg.ArchivePrefix, html)
	uri, err := o.blobs.PutObject(ctx, key, o.cfg.ContentType, bytes.NewReader(html))
	if err != nil {
		logger.Warn("archive failed", zap.String("key", key), zap.Error(err))
		return "", digest
	}
	return uri, digest
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, rec site.SiteRecord) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"url":          rec.URL,
		"title":        rec.Title,
		"tags":         rec.Tags,
		"languages":    languageNames(rec.Languages),
		"has_detail":   rec.Detail != nil,
		"snapshot_uri": rec.SnapshotURI,
		"content_hash": rec.ContentHash,
		"submit_by":    rec.SubmittedBy,
		"timestamp":    rec.UpdatedAt.Format(time.RFC3339),
	}
	id, err := o.publisher.Publish(ctx, o.cfg.Topic, payload)
	if err != nil {
		logger.Warn("publish failed", zap.String("topic", o.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("published", zap.String("topic", o.cfg.Topic), zap.String("message_id", id))
}

// languageNames lists the languages that produced a translation.
func languageNames(langs map[string]*string) []string {
	out := make([]string, 0, len(langs))
	for name, text := range langs {
		if text != nil {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
