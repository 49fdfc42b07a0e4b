package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/site-enricher/internal/site"
)

var submissionColumns = []string{"id", "url", "status", "submit_time", "priority", "submit_by"}

// SubmissionStore persists queued submissions; url carries a unique index.
type SubmissionStore struct {
	pool  Pool
	table string
}

// NewSubmissionStore wraps an existing pool.
func NewSubmissionStore(pool Pool, table string) (*SubmissionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "submit_site")
	if err != nil {
		return nil, err
	}
	return &SubmissionStore{pool: pool, table: table}, nil
}

// InsertIfAbsent inserts rec, or returns site.ErrDuplicate when the URL exists.
func (s *SubmissionStore) InsertIfAbsent(ctx context.Context, rec site.SubmissionRecord) (site.SubmissionRecord, error) {
	query, args, err := psql.Insert(s.table).
		Columns(submissionColumns...).
		Values(rec.ID, rec.URL, string(rec.Status), rec.SubmitTime, rec.Priority, rec.SubmittedBy).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING " + strings.Join(submissionColumns, ", ")).
		ToSql()
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("build submission insert: %w", err)
	}
	stored, err := scanSubmission(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return site.SubmissionRecord{}, site.ErrDuplicate
	}
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("insert submission: %w", err)
	}
	return stored, nil
}

// SelectPending lists pending submissions, newest first or by priority.
func (s *SubmissionStore) SelectPending(ctx context.Context, limit int, order site.PendingOrder) ([]site.SubmissionRecord, error) {
	builder := psql.Select(submissionColumns...).
		From(s.table).
		Where(sq.Eq{"status": string(site.SubmissionPending)})
	if order == site.OrderPriority {
		builder = builder.OrderBy("priority DESC", "submit_time DESC")
	} else {
		builder = builder.OrderBy("submit_time DESC")
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	out := []site.SubmissionRecord{}
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return out, nil
}

// UpdateStatusByURL sets the status column and returns the updated row.
func (s *SubmissionStore) UpdateStatusByURL(ctx context.Context, url string, status site.SubmissionStatus) (site.SubmissionRecord, error) {
	query, args, err := psql.Update(s.table).
		Set("status", string(status)).
		Where(sq.Eq{"url": url}).
		Suffix("RETURNING " + strings.Join(submissionColumns, ", ")).
		ToSql()
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("build status update: %w", err)
	}
	rec, err := scanSubmission(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return site.SubmissionRecord{}, site.ErrNotFound
	}
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("update submission status: %w", err)
	}
	return rec, nil
}

// Close releases the pool.
func (s *SubmissionStore) Close() {
	s.pool.Close()
}

func scanSubmission(row pgx.Row) (site.SubmissionRecord, error) {
	var (
		rec    site.SubmissionRecord
		status string
	)
	if err := row.Scan(&rec.ID, &rec.URL, &status, &rec.SubmitTime, &rec.Priority, &rec.SubmittedBy); err != nil {
		return site.SubmissionRecord{}, err
	}
	rec.Status = site.SubmissionStatus(status)
	return rec, nil
}
