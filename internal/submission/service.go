package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/site-enricher/internal/site"
)

// Service accepts submissions and lists the pending backlog.
type Service struct {
	submissions site.SubmissionStore
	ids         site.IDGenerator
	clock       site.Clock
}

// NewService constructs a Service.
func NewService(submissions site.SubmissionStore, ids site.IDGenerator, clock site.Clock) *Service {
	return &Service{submissions: submissions, ids: ids, clock: clock}
}

// Submit queues url as a pending submission. A URL that was already
// submitted, pending or done, yields site.ErrDuplicate.
func (s *Service) Submit(ctx context.Context, url string, priority int, submittedBy string) (site.SubmissionRecord, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return site.SubmissionRecord{}, site.ErrInvalidURL
	}
	id, err := s.ids.NewID()
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("new id: %w", err)
	}
	rec, err := s.submissions.InsertIfAbsent(ctx, site.SubmissionRecord{
		ID:          id,
		URL:         url,
		Status:      site.SubmissionPending,
		SubmitTime:  s.clock.Now(),
		Priority:    priority,
		SubmittedBy: strings.TrimSpace(submittedBy),
	})
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("insert submission: %w", err)
	}
	return rec, nil
}

// ListPending returns up to limit pending submissions in the given order.
func (s *Service) ListPending(ctx context.Context, limit int, order site.PendingOrder) ([]site.SubmissionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	recs, err := s.submissions.SelectPending(ctx, limit, order)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	if recs == nil {
		recs = []site.SubmissionRecord{}
	}
	return recs, nil
}
