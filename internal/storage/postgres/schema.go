package postgres

import (
	"context"
	"fmt"
)

const sitesDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	url          TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	detail       TEXT,
	tags         TEXT[] NOT NULL DEFAULT '{}',
	languages    JSONB NOT NULL DEFAULT '{}'::jsonb,
	submit_by    TEXT NOT NULL DEFAULT '',
	snapshot_uri TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL
)`

const submissionsDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id          UUID PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	status      TEXT NOT NULL DEFAULT 'pending',
	submit_time TIMESTAMPTZ NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	submit_by   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS %[1]s_pending_idx ON %[1]s (status, submit_time DESC)`

// EnsureSchema creates both tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool Pool, sitesTable, submissionsTable string) error {
	sites, err := checkTable(sitesTable, "sites")
	if err != nil {
		return err
	}
	subs, err := checkTable(submissionsTable, "submit_site")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(sitesDDL, sites)); err != nil {
		return fmt.Errorf("create %s: %w", sites, err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(submissionsDDL, subs)); err != nil {
		return fmt.Errorf("create %s: %w", subs, err)
	}
	return nil
}
