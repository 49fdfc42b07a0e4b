package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/site-enricher/internal/site"
)

// SubmissionStore keeps queued submissions keyed by URL.
type SubmissionStore struct {
	mu    sync.RWMutex
	byURL map[string]site.SubmissionRecord
}

// NewSubmissionStore constructs an empty SubmissionStore.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{byURL: make(map[string]site.SubmissionRecord)}
}

// InsertIfAbsent stores rec unless its URL is already present.
func (s *SubmissionStore) InsertIfAbsent(_ context.Context, rec site.SubmissionRecord) (site.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[rec.URL]; exists {
		return site.SubmissionRecord{}, site.ErrDuplicate
	}
	s.byURL[rec.URL] = rec
	return rec, nil
}

// SelectPending returns up to limit pending records, newest (or highest
// priority) first.
func (s *SubmissionStore) SelectPending(_ context.Context, limit int, order site.PendingOrder) ([]site.SubmissionRecord, error) {
	s.mu.RLock()
	pending := make([]site.SubmissionRecord, 0, len(s.byURL))
	for _, rec := range s.byURL {
		if rec.Status == site.SubmissionPending {
			pending = append(pending, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if order == site.OrderPriority && a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.SubmitTime.Equal(b.SubmitTime) {
			return a.SubmitTime.After(b.SubmitTime)
		}
		return a.ID > b.ID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// UpdateStatusByURL sets the status of the submission for url.
func (s *SubmissionStore) UpdateStatusByURL(_ context.Context, url string, status site.SubmissionStatus) (site.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byURL[url]
	if !ok {
		return site.SubmissionRecord{}, site.ErrNotFound
	}
	rec.Status = status
	s.byURL[url] = rec
	return rec, nil
}

// Get returns the submission for url.
func (s *SubmissionStore) Get(url string) (site.SubmissionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byURL[url]
	return rec, ok
}
