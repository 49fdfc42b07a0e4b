package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-enricher/internal/site"
)

func submissionRow(recs ...site.SubmissionRecord) *pgxmock.Rows {
	rows := pgxmock.NewRows(submissionColumns)
	for _, rec := range recs {
		rows.AddRow(rec.ID, rec.URL, string(rec.Status), rec.SubmitTime, rec.Priority, rec.SubmittedBy)
	}
	return rows
}

func newSubmissionMock(t *testing.T) (pgxmock.PgxPoolIface, *SubmissionStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewSubmissionStore(mock, "submit_site")
	require.NoError(t, err)
	return mock, store
}

func TestSubmissionStoreInsertIfAbsent(t *testing.T) {
	t.Parallel()

	mock, store := newSubmissionMock(t)
	rec := site.SubmissionRecord{
		ID:          "0190f5d2-0000-7000-8000-000000000001",
		URL:         "https://example.com",
		Status:      site.SubmissionPending,
		SubmitTime:  time.Unix(1700000000, 0).UTC(),
		Priority:    3,
		SubmittedBy: "bob",
	}
	mock.ExpectQuery(`INSERT INTO submit_site .+ ON CONFLICT \(url\) DO NOTHING RETURNING id, url`).
		WithArgs(rec.ID, rec.URL, "pending", rec.SubmitTime, rec.Priority, rec.SubmittedBy).
		WillReturnRows(submissionRow(rec))

	stored, err := store.InsertIfAbsent(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, rec, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionStoreInsertDuplicate(t *testing.T) {
	t.Parallel()

	mock, store := newSubmissionMock(t)
	mock.ExpectQuery(`INSERT INTO submit_site`).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO submit_site`).WillReturnError(&pgconn.PgError{Code: "23505"})

	rec := site.SubmissionRecord{ID: "id", URL: "https://example.com", Status: site.SubmissionPending}
	_, err := store.InsertIfAbsent(context.Background(), rec)
	require.ErrorIs(t, err, site.ErrDuplicate)
	_, err = store.InsertIfAbsent(context.Background(), rec)
	require.ErrorIs(t, err, site.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionStoreSelectPending(t *testing.T) {
	t.Parallel()

	mock, store := newSubmissionMock(t)
	now := time.Unix(1700000000, 0).UTC()
	recs := []site.SubmissionRecord{
		{ID: "b", URL: "https://b.test", Status: site.SubmissionPending, SubmitTime: now, Priority: 9},
		{ID: "a", URL: "https://a.test", Status: site.SubmissionPending, SubmitTime: now.Add(-time.Hour), Priority: 1},
	}

	mock.ExpectQuery(`SELECT id, url, status, submit_time, priority, submit_by FROM submit_site WHERE status = \$1 ORDER BY priority DESC, submit_time DESC LIMIT 5`).
		WithArgs("pending").
		WillReturnRows(submissionRow(recs...))
	mock.ExpectQuery(`FROM submit_site WHERE status = \$1 ORDER BY submit_time DESC LIMIT 2`).
		WithArgs("pending").
		WillReturnRows(submissionRow())

	got, err := store.SelectPending(context.Background(), 5, site.OrderPriority)
	require.NoError(t, err)
	require.Equal(t, recs, got)

	empty, err := store.SelectPending(context.Background(), 2, site.OrderSubmitTime)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionStoreUpdateStatus(t *testing.T) {
	t.Parallel()

	mock, store := newSubmissionMock(t)
	rec := site.SubmissionRecord{ID: "a", URL: "https://a.test", Status: site.SubmissionDone, SubmitTime: time.Unix(5, 0).UTC()}

	mock.ExpectQuery(`UPDATE submit_site SET status = \$1 WHERE url = \$2 RETURNING`).
		WithArgs("done", "https://a.test").
		WillReturnRows(submissionRow(rec))
	mock.ExpectQuery(`UPDATE submit_site SET status = \$1 WHERE url = \$2 RETURNING`).
		WithArgs("done", "https://missing.test").
		WillReturnError(pgx.ErrNoRows)

	got, err := store.UpdateStatusByURL(context.Background(), "https://a.test", site.SubmissionDone)
	require.NoError(t, err)
	require.Equal(t, site.SubmissionDone, got.Status)

	_, err = store.UpdateStatusByURL(context.Background(), "https://missing.test", site.SubmissionDone)
	require.ErrorIs(t, err, site.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sites`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS submit_site`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureSchema(context.Background(), mock, "", ""))
	require.NoError(t, mock.ExpectationsWereMet())

	require.Error(t, EnsureSchema(context.Background(), mock, "bad-name", ""))
}
