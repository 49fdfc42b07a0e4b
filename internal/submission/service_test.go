package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-enricher/internal/site"
	"github.com/JakeFAU/site-enricher/internal/storage/memory"
)

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func TestSubmitCreatesPendingRecord(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	svc := NewService(store, &seqIDs{}, fixedClock{base})

	rec, err := svc.Submit(context.Background(), " https://a.example.com ", 3, " carol ")
	require.NoError(t, err)
	require.Equal(t, site.SubmissionRecord{
		ID:          "id-1",
		URL:         "https://a.example.com",
		Status:      site.SubmissionPending,
		SubmitTime:  base,
		Priority:    3,
		SubmittedBy: "carol",
	}, rec)
}

func TestSubmitDuplicateKeepsFirstRecord(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	svc := NewService(store, &seqIDs{}, fixedClock{base})

	_, err := svc.Submit(context.Background(), "https://a.example.com", 1, "first")
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "https://a.example.com", 9, "second")
	require.ErrorIs(t, err, site.ErrDuplicate)

	got, ok := store.Get("https://a.example.com")
	require.True(t, ok)
	require.Equal(t, 1, got.Priority)
	require.Equal(t, "first", got.SubmittedBy)
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(memory.NewSubmissionStore(), &seqIDs{}, fixedClock{base})
	_, err := svc.Submit(context.Background(), "  ", 0, "")
	require.ErrorIs(t, err, site.ErrInvalidURL)

	svc = NewService(memory.NewSubmissionStore(), failingIDs{}, fixedClock{base})
	_, err = svc.Submit(context.Background(), "https://a.example.com", 0, "")
	require.ErrorContains(t, err, "entropy exhausted")
}

func TestListPending(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	svc := NewService(store, &seqIDs{}, fixedClock{base})

	recs, err := svc.ListPending(context.Background(), 0, site.OrderSubmitTime)
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)

	_, err = svc.Submit(context.Background(), "https://a.example.com", 0, "")
	require.NoError(t, err)
	recs, err = svc.ListPending(context.Background(), 5, site.OrderPriority)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}
