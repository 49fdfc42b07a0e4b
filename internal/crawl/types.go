// Package crawl turns a URL into a site.Page: a rate-limited probe fetch,
// readability extraction, and promotion to a headless browser when the probe
// yields too little text.
package crawl

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest describes one page fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result of a fetch.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher retrieves raw page bytes.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Extraction is the readable content pulled out of an HTML document.
type Extraction struct {
	Title       string
	Description string
	Content     string
}

// Extractor pulls readable content from HTML.
type Extractor interface {
	Extract(html []byte, pageURL string) (Extraction, error)
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}
