package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitSchema creates the necessary database tables if they don't exist.
// Updates carry ON DELETE CASCADE so a fake-delete removes them with the
// parent report in one statement.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			animal_kind TEXT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			image_urls TEXT[] NOT NULL DEFAULT '{}',
			closure_note TEXT,
			needs_help BOOLEAN NOT NULL DEFAULT FALSE,
			help_note TEXT,
			claimer_token TEXT,
			claimed_at TIMESTAMPTZ,
			last_claimer_activity_at TIMESTAMPTZ,
			reporter_token TEXT NOT NULL,
			closed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS reports_status_idx ON reports (status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS updates (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			report_id UUID NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
			type TEXT NOT NULL DEFAULT 'info',
			text TEXT NOT NULL DEFAULT '',
			image_urls TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS updates_report_idx ON updates (report_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			category TEXT NOT NULL DEFAULT 'contact',
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			image_urls TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
