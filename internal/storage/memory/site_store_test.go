package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-enricher/internal/site"
)

func strPtr(s string) *string { return &s }

func TestSiteStoreUpsertReplacesRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSiteStore()

	_, err := store.GetByURL(ctx, "https://example.com")
	require.ErrorIs(t, err, site.ErrNotFound)

	first := site.SiteRecord{
		URL:       "https://example.com",
		Title:     "v1",
		Detail:    strPtr("first"),
		Tags:      []string{"a"},
		Languages: map[string]*string{"French": strPtr("un")},
		UpdatedAt: time.Unix(1, 0).UTC(),
	}
	_, err = store.UpsertByURL(ctx, first)
	require.NoError(t, err)

	second := site.SiteRecord{
		URL:       "https://example.com",
		Title:     "v2",
		UpdatedAt: time.Unix(2, 0).UTC(),
	}
	stored, err := store.UpsertByURL(ctx, second)
	require.NoError(t, err)
	require.Equal(t, "v2", stored.Title)

	got, err := store.GetByURL(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
	require.Equal(t, "v2", got.Title)
	require.Nil(t, got.Detail)
	require.Empty(t, got.Tags)
	require.NotNil(t, got.Tags)
	require.Empty(t, got.Languages)
	require.Equal(t, time.Unix(2, 0).UTC(), got.UpdatedAt)
}

func TestSiteStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSiteStore()
	_, err := store.UpsertByURL(ctx, site.SiteRecord{URL: "u", Tags: []string{"a"}})
	require.NoError(t, err)

	got, err := store.GetByURL(ctx, "u")
	require.NoError(t, err)
	got.Tags[0] = "mutated"

	again, err := store.GetByURL(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, again.Tags)
}
