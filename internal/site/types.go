package site

import (
	"strings"
	"time"
)

// SubmissionStatus represents the lifecycle state of a queued submission.
type SubmissionStatus string

// Submission status values persisted in the submission store.
const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionDone    SubmissionStatus = "done"
)

// PendingOrder selects the ordering used when reading pending submissions.
type PendingOrder string

// Supported pending orderings. Both sort descending.
const (
	OrderSubmitTime PendingOrder = "submit_time"
	OrderPriority   PendingOrder = "priority"
)

// ParseOrder maps a client-supplied order_by value onto a PendingOrder.
// Anything other than "priority" falls back to submit time.
func ParseOrder(raw string) PendingOrder {
	if strings.EqualFold(strings.TrimSpace(raw), string(OrderPriority)) {
		return OrderPriority
	}
	return OrderSubmitTime
}

// SiteRecord is the enriched, persisted view of one URL.
type SiteRecord struct {
	URL         string             `json:"url"                    bson:"url"`
	Title       string             `json:"title"                  bson:"title"`
	Description string             `json:"description,omitempty"  bson:"description,omitempty"`
	Content     string             `json:"content"                bson:"content"`
	Detail      *string            `json:"detail"                 bson:"detail"`
	Tags        []string           `json:"tags"                   bson:"tags"`
	Languages   map[string]*string `json:"languages"              bson:"languages"`
	SubmittedBy string             `json:"submit_by,omitempty"    bson:"submit_by,omitempty"`
	SnapshotURI string             `json:"snapshot_uri,omitempty" bson:"snapshot_uri,omitempty"`
	ContentHash string             `json:"content_hash,omitempty" bson:"content_hash,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"             bson:"updated_at"`
}

// SubmissionRecord is a user-submitted URL awaiting enrichment.
type SubmissionRecord struct {
	ID          string           `json:"id"                  bson:"id"`
	URL         string           `json:"url"                 bson:"url"`
	Status      SubmissionStatus `json:"status"              bson:"status"`
	SubmitTime  time.Time        `json:"submit_time"         bson:"submit_time"`
	Priority    int              `json:"priority"            bson:"priority"`
	SubmittedBy string           `json:"submit_by,omitempty" bson:"submit_by,omitempty"`
}

// EnrichmentRequest describes one orchestration call. It is never persisted.
type EnrichmentRequest struct {
	URL         string
	Tags        []string
	Languages   []string
	UseCache    bool
	SubmittedBy string
}

// EnrichedContent is the output of the LLM pipeline for one page.
type EnrichedContent struct {
	Detail    *string
	Tags      []string
	Languages map[string]*string
}

// Page is the crawl collaborator's view of a fetched URL.
type Page struct {
	URL          string
	Title        string
	Description  string
	Content      string
	HTML         []byte
	StatusCode   int
	UsedHeadless bool
}

// Text joins the non-empty title, description and content into the raw text
// handed to the enrichment pipeline.
func (p Page) Text() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Title, p.Description, p.Content} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Empty reports whether the crawl produced nothing worth enriching.
func (p Page) Empty() bool {
	return p.Text() == ""
}
