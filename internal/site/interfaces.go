package site

import (
	"context"
	"io"
	"time"
)

// SiteStore persists enriched site records keyed by URL.
type SiteStore interface {
	// GetByURL returns ErrNotFound when no record exists.
	GetByURL(ctx context.Context, url string) (SiteRecord, error)
	// UpsertByURL inserts or fully replaces the record for rec.URL.
	UpsertByURL(ctx context.Context, rec SiteRecord) (SiteRecord, error)
}

// SubmissionStore persists queued submissions.
type SubmissionStore interface {
	// InsertIfAbsent returns ErrDuplicate when the URL is already present.
	InsertIfAbsent(ctx context.Context, rec SubmissionRecord) (SubmissionRecord, error)
	SelectPending(ctx context.Context, limit int, order PendingOrder) ([]SubmissionRecord, error)
	// UpdateStatusByURL returns ErrNotFound when no submission exists for url.
	UpdateStatusByURL(ctx context.Context, url string, status SubmissionStatus) (SubmissionRecord, error)
}

// Crawler fetches one URL and extracts its content.
type Crawler interface {
	Crawl(ctx context.Context, url string) (Page, error)
}

// Completer sends a system/user message pair to a language model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Tokenizer converts text to model tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes enrichment events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces submission IDs.
type IDGenerator interface {
	NewID() (string, error)
}
