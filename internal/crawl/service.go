package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/site"
)

// Config tunes the crawl service.
type Config struct {
	MinContentChars int
}

// Service implements site.Crawler.
type Service struct {
	probe     Fetcher
	headless  Fetcher
	extractor Extractor
	limiter   Limiter
	promoter  Promoter
	logger    *zap.Logger
}

// NewService wires the crawl pipeline. headless and limiter may be nil.
func NewService(probe, headless Fetcher, extractor Extractor, limiter Limiter, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		probe:     probe,
		headless:  headless,
		extractor: extractor,
		limiter:   limiter,
		promoter:  Promoter{MinContentChars: cfg.MinContentChars},
		logger:    logger.Named("crawl"),
	}
}

// Crawl fetches rawURL once and returns the extracted page. A probe failure
// or a thin, client-rendered response is retried through the headless
// fetcher when one is configured.
func (s *Service) Crawl(ctx context.Context, rawURL string) (site.Page, error) {
	if err := validateURL(rawURL); err != nil {
		return site.Page{}, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rawURL); err != nil {
			return site.Page{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	req := FetchRequest{URL: rawURL}
	resp, probeErr := s.probe.Fetch(ctx, req)
	var ext Extraction
	if probeErr == nil {
		var err error
		ext, err = s.extractor.Extract(resp.Body, resp.URL)
		if err != nil {
			return site.Page{}, fmt.Errorf("extract %s: %w", rawURL, err)
		}
	}

	switch {
	case probeErr != nil && s.headless == nil:
		return site.Page{}, fmt.Errorf("fetch %s: %w", rawURL, probeErr)
	case probeErr != nil:
		s.logger.Info("probe failed, trying headless", zap.String("url", rawURL), zap.Error(probeErr))
		return s.render(ctx, req, probeErr)
	case s.headless != nil && s.promoter.ShouldPromote(resp, ext):
		s.logger.Info("promoting to headless",
			zap.String("url", rawURL),
			zap.Int("content_chars", len(ext.Content)),
		)
		page, err := s.render(ctx, req, nil)
		if err == nil {
			return page, nil
		}
		s.logger.Warn("headless render failed, keeping probe result", zap.String("url", rawURL), zap.Error(err))
	}

	return toPage(resp, ext)
}

func (s *Service) render(ctx context.Context, req FetchRequest, probeErr error) (site.Page, error) {
	resp, err := s.headless.Fetch(ctx, req)
	if err != nil {
		return site.Page{}, fmt.Errorf("render %s: %w", req.URL, errors.Join(probeErr, err))
	}
	ext, err := s.extractor.Extract(resp.Body, resp.URL)
	if err != nil {
		return site.Page{}, fmt.Errorf("extract %s: %w", req.URL, err)
	}
	return toPage(resp, ext)
}

func toPage(resp FetchResponse, ext Extraction) (site.Page, error) {
	page := site.Page{
		URL:          resp.URL,
		Title:        ext.Title,
		Description:  ext.Description,
		Content:      ext.Content,
		HTML:         resp.Body,
		StatusCode:   resp.StatusCode,
		UsedHeadless: resp.UsedHeadless,
	}
	if page.Empty() {
		return site.Page{}, fmt.Errorf("%s: %w", resp.URL, site.ErrEmptyPage)
	}
	return page, nil
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return site.ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", site.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", site.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", site.ErrInvalidURL)
	}
	return nil
}
