package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/site-enricher/internal/site"
)

var siteColumns = []string{
	"url",
	"title",
	"description",
	"content",
	"detail",
	"tags",
	"languages",
	"submit_by",
	"snapshot_uri",
	"content_hash",
	"updated_at",
}

// SiteStore persists enriched records in a table keyed by a unique url column.
type SiteStore struct {
	pool  Pool
	table string
}

// NewSiteStore wraps an existing pool.
func NewSiteStore(pool Pool, table string) (*SiteStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "sites")
	if err != nil {
		return nil, err
	}
	return &SiteStore{pool: pool, table: table}, nil
}

// GetByURL loads one record or site.ErrNotFound.
func (s *SiteStore) GetByURL(ctx context.Context, url string) (site.SiteRecord, error) {
	query, args, err := psql.Select(siteColumns...).
		From(s.table).
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("build site select: %w", err)
	}
	rec, err := scanSite(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return site.SiteRecord{}, site.ErrNotFound
	}
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("select site: %w", err)
	}
	return rec, nil
}

// UpsertByURL inserts rec or overwrites every column of the existing row.
func (s *SiteStore) UpsertByURL(ctx context.Context, rec site.SiteRecord) (site.SiteRecord, error) {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	languages := rec.Languages
	if languages == nil {
		languages = map[string]*string{}
	}
	langJSON, err := json.Marshal(languages)
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("marshal languages: %w", err)
	}

	updates := make([]string, 0, len(siteColumns)-1)
	for _, col := range siteColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	query, args, err := psql.Insert(s.table).
		Columns(siteColumns...).
		Values(
			rec.URL,
			rec.Title,
			rec.Description,
			rec.Content,
			rec.Detail,
			tags,
			langJSON,
			rec.SubmittedBy,
			rec.SnapshotURI,
			rec.ContentHash,
			rec.UpdatedAt,
		).
		Suffix("ON CONFLICT (url) DO UPDATE SET " + strings.Join(updates, ", ") +
			" RETURNING " + strings.Join(siteColumns, ", ")).
		ToSql()
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("build site upsert: %w", err)
	}
	stored, err := scanSite(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("upsert site: %w", err)
	}
	return stored, nil
}

// Close releases the pool.
func (s *SiteStore) Close() {
	s.pool.Close()
}

func scanSite(row pgx.Row) (site.SiteRecord, error) {
	var (
		rec      site.SiteRecord
		langJSON []byte
	)
	if err := row.Scan(
		&rec.URL,
		&rec.Title,
		&rec.Description,
		&rec.Content,
		&rec.Detail,
		&rec.Tags,
		&langJSON,
		&rec.SubmittedBy,
		&rec.SnapshotURI,
		&rec.ContentHash,
		&rec.UpdatedAt,
	); err != nil {
		return site.SiteRecord{}, err
	}
	rec.Languages = map[string]*string{}
	if len(langJSON) > 0 {
		if err := json.Unmarshal(langJSON, &rec.Languages); err != nil {
			return site.SiteRecord{}, fmt.Errorf("decode languages: %w", err)
		}
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec, nil
}
