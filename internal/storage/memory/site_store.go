package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/JakeFAU/site-enricher/internal/site"
)

// SiteStore keeps enriched records keyed by URL.
type SiteStore struct {
	mu    sync.RWMutex
	sites map[string]site.SiteRecord
}

// NewSiteStore constructs an empty SiteStore.
func NewSiteStore() *SiteStore {
	return &SiteStore{sites: make(map[string]site.SiteRecord)}
}

// GetByURL fetches a record or site.ErrNotFound.
func (s *SiteStore) GetByURL(_ context.Context, url string) (site.SiteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sites[url]
	if !ok {
		return site.SiteRecord{}, site.ErrNotFound
	}
	return cloneSite(rec), nil
}

// UpsertByURL replaces the whole record for rec.URL.
func (s *SiteStore) UpsertByURL(_ context.Context, rec site.SiteRecord) (site.SiteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneSite(rec)
	s.sites[rec.URL] = stored
	return cloneSite(stored), nil
}

// Len reports the number of stored records.
func (s *SiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sites)
}

func cloneSite(rec site.SiteRecord) site.SiteRecord {
	out := rec
	out.Tags = slices.Clone(rec.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	out.Languages = maps.Clone(rec.Languages)
	if out.Languages == nil {
		out.Languages = map[string]*string{}
	}
	return out
}
