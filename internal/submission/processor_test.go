package submission

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-enricher/internal/enrich"
	"github.com/JakeFAU/site-enricher/internal/llm"
	"github.com/JakeFAU/site-enricher/internal/site"
	"github.com/JakeFAU/site-enricher/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "id-" + strconv.Itoa(s.n), nil
}

type scriptedEnricher struct {
	mu      sync.Mutex
	seen    []site.EnrichmentRequest
	results map[string]site.Result
}

func (e *scriptedEnricher) EnrichAndStore(_ context.Context, req site.EnrichmentRequest) site.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, req)
	if res, ok := e.results[req.URL]; ok {
		return res
	}
	return site.Success(site.SiteRecord{URL: req.URL})
}

type brokenStore struct {
	*memory.SubmissionStore
	selectErr error
	updateErr error
}

func (b brokenStore) SelectPending(ctx context.Context, limit int, order site.PendingOrder) ([]site.SubmissionRecord, error) {
	if b.selectErr != nil {
		return nil, b.selectErr
	}
	return b.SubmissionStore.SelectPending(ctx, limit, order)
}

func (b brokenStore) UpdateStatusByURL(ctx context.Context, url string, status site.SubmissionStatus) (site.SubmissionRecord, error) {
	if b.updateErr != nil {
		return site.SubmissionRecord{}, b.updateErr
	}
	return b.SubmissionStore.UpdateStatusByURL(ctx, url, status)
}

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.SubmissionStore, subs ...site.SubmissionRecord) {
	t.Helper()
	for _, sub := range subs {
		sub.Status = site.SubmissionPending
		_, err := store.InsertIfAbsent(context.Background(), sub)
		require.NoError(t, err)
	}
}

func TestDrainPendingMarksSuccessesDone(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	seed(t, store,
		site.SubmissionRecord{ID: "1", URL: "https://a.example.com", SubmitTime: base, Priority: 1},
		site.SubmissionRecord{ID: "2", URL: "https://b.example.com", SubmitTime: base.Add(time.Minute), Priority: 9},
		site.SubmissionRecord{ID: "3", URL: "https://c.example.com", SubmitTime: base.Add(2 * time.Minute), Priority: 5},
	)
	enricher := &scriptedEnricher{results: map[string]site.Result{
		"https://c.example.com": site.Failure(errors.New("crawl: timeout")),
	}}
	p := NewProcessor(store, enricher, ProcessorConfig{Languages: []string{"French"}, Tags: []string{"AI"}}, zap.NewNop())

	report := p.DrainPending(context.Background(), 0, site.OrderPriority)
	require.NoError(t, report.Err)
	require.Equal(t, 3, report.Total)
	require.Equal(t, 2, report.SuccessCount)
	require.Equal(t, []ItemOutcome{
		{URL: "https://b.example.com", Success: true, Code: site.CodeSuccess},
		{URL: "https://c.example.com", Code: site.CodeFailure, Reason: "crawl: timeout"},
		{URL: "https://a.example.com", Success: true, Code: site.CodeSuccess},
	}, report.Items)

	got, _ := store.Get("https://c.example.com")
	require.Equal(t, site.SubmissionPending, got.Status)
	got, _ = store.Get("https://b.example.com")
	require.Equal(t, site.SubmissionDone, got.Status)

	require.Equal(t, []string{"French"}, enricher.seen[0].Languages)
	require.Equal(t, []string{"AI"}, enricher.seen[0].Tags)
}

func TestDrainPendingOrdersBySubmitTimeByDefault(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	seed(t, store,
		site.SubmissionRecord{ID: "1", URL: "https://old.example.com", SubmitTime: base, Priority: 9},
		site.SubmissionRecord{ID: "2", URL: "https://new.example.com", SubmitTime: base.Add(time.Hour)},
	)
	p := NewProcessor(store, &scriptedEnricher{}, ProcessorConfig{}, nil)

	report := p.DrainPending(context.Background(), 1, site.ParseOrder("anything"))
	require.Equal(t, 1, report.Total)
	require.Equal(t, "https://new.example.com", report.Items[0].URL)
}

func TestDrainPendingEmptyQueue(t *testing.T) {
	t.Parallel()

	p := NewProcessor(memory.NewSubmissionStore(), &scriptedEnricher{}, ProcessorConfig{}, nil)
	report := p.DrainPending(context.Background(), 10, site.OrderSubmitTime)
	require.NoError(t, report.Err)
	require.Zero(t, report.Total)
	require.Zero(t, report.SuccessCount)
	require.NotNil(t, report.Items)
}

func TestDrainPendingSelectError(t *testing.T) {
	t.Parallel()

	store := brokenStore{SubmissionStore: memory.NewSubmissionStore(), selectErr: errors.New("db down")}
	p := NewProcessor(store, &scriptedEnricher{}, ProcessorConfig{}, nil)

	report := p.DrainPending(context.Background(), 10, site.OrderSubmitTime)
	require.ErrorContains(t, report.Err, "db down")
	require.Zero(t, report.Total)
}

func TestDrainPendingStatusUpdateFailureIsItemFailure(t *testing.T) {
	t.Parallel()

	inner := memory.NewSubmissionStore()
	seed(t, inner, site.SubmissionRecord{ID: "1", URL: "https://a.example.com", SubmitTime: base})
	store := brokenStore{SubmissionStore: inner, updateErr: errors.New("write conflict")}
	p := NewProcessor(store, &scriptedEnricher{}, ProcessorConfig{}, nil)

	report := p.DrainPending(context.Background(), 10, site.OrderSubmitTime)
	require.Equal(t, 1, report.Total)
	require.Zero(t, report.SuccessCount)
	require.False(t, report.Items[0].Success)
	require.Equal(t, site.CodeFailure, report.Items[0].Code)
	require.Contains(t, report.Items[0].Reason, "write conflict")

	got, _ := inner.Get("https://a.example.com")
	require.Equal(t, site.SubmissionPending, got.Status)
}

type pageCrawler struct{ page site.Page }

func (c pageCrawler) Crawl(_ context.Context, url string) (site.Page, error) {
	page := c.page
	page.URL = url
	return page, nil
}

type stageCompleter struct{}

func (stageCompleter) Complete(_ context.Context, system, _ string) (string, error) {
	switch {
	case system == "detail":
		return "An example site", nil
	case strings.HasPrefix(system, "tags"):
		return "", nil
	default:
		return "", errors.New("unexpected stage")
	}
}

func TestSubmitThenDrainEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := fixedClock{base}
	subs := memory.NewSubmissionStore()
	sites := memory.NewSiteStore()

	svc := NewService(subs, &seqIDs{}, clock)
	rec, err := svc.Submit(ctx, "https://example.com", 5, "bob")
	require.NoError(t, err)
	require.Equal(t, site.SubmissionPending, rec.Status)

	pipeline := llm.NewPipeline(stageCompleter{}, nil, llm.Config{Prompts: llm.Prompts{Detail: "detail", Tags: "tags"}}, nil)
	orch := enrich.New(pageCrawler{page: site.Page{Title: "Example", StatusCode: 200}}, pipeline, sites, clock, enrich.Config{}, nil)
	p := NewProcessor(subs, orch, ProcessorConfig{}, nil)

	report := p.DrainPending(ctx, 10, site.ParseOrder("priority"))
	require.NoError(t, report.Err)
	require.Equal(t, 1, report.SuccessCount)

	stored, err := sites.GetByURL(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "Example", stored.Title)
	require.NotNil(t, stored.Detail)
	require.Equal(t, "An example site", *stored.Detail)
	require.Equal(t, []string{}, stored.Tags)
	require.Equal(t, "bob", stored.SubmittedBy)

	done, ok := subs.Get("https://example.com")
	require.True(t, ok)
	require.Equal(t, site.SubmissionDone, done.Status)
}
