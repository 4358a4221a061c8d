// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

const reportColumns = `id, title, description, animal_kind, lat, lng, status,
	image_urls, closure_note, needs_help, help_note, claimer_token, claimed_at,
	last_claimer_activity_at, reporter_token, closed_at, created_at`

const (
	latestCacheKey = "straymap:latest"
	latestCacheTTL = 30 * time.Second
)

// ReportService handles report persistence, including the conditional
// claim/close/delete writes. It implements lifecycle.Store.
type ReportService struct {
	db     *pgxpool.Pool
	cache  *redis.Client // optional; nil disables the latest-feed cache
	logger *zap.SugaredLogger
}

// NewReportService creates a new report service. cache may be nil.
func NewReportService(db *pgxpool.Pool, cache *redis.Client, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{db: db, cache: cache, logger: logger}
}

// Create inserts a new open report and generates its reporter token. The
// token is returned once in the Report and kept only for future moderation.
func (s *ReportService) Create(ctx context.Context, req models.NewReport) (*models.Report, error) {
	reporterToken := "rpt_" + uuid.NewString()

	query := `
		INSERT INTO reports (title, description, animal_kind, lat, lng, status, reporter_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	r := &models.Report{
		Title:         req.Title,
		Description:   req.Description,
		AnimalKind:    req.AnimalKind,
		Lat:           req.Lat,
		Lng:           req.Lng,
		Status:        models.StatusOpen,
		ImageURLs:     []string{},
		ReporterToken: reporterToken,
	}

	err := s.db.QueryRow(ctx, query,
		req.Title, req.Description, req.AnimalKind, req.Lat, req.Lng,
		models.StatusOpen, reporterToken,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	s.invalidateLatest(ctx)
	return r, nil
}

// Get fetches a report by id.
func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// ListByStatus returns reports in one status, newest first.
func (s *ReportService) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Report, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// ListByIDs returns the non-resolved reports among ids, newest first. Used
// for a device's "my cases" view.
func (s *ReportService) ListByIDs(ctx context.Context, ids []uuid.UUID, limit int) ([]models.Report, error) {
	if len(ids) == 0 {
		return []models.Report{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE id = ANY($1) AND status <> $2
		ORDER BY created_at DESC
		LIMIT $3`, ids, models.StatusResolved, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports by ids: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// Latest returns the newest n reports across all statuses, served from the
// Redis cache when warm.
func (s *ReportService) Latest(ctx context.Context, n int) ([]models.Report, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, latestCacheKey).Bytes(); err == nil {
			var cached []models.Report
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("latest reports: %w", err)
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(reports); err == nil {
			if err := s.cache.Set(ctx, latestCacheKey, data, latestCacheTTL).Err(); err != nil {
				s.logger.Debugw("latest-feed cache write failed", "error", err)
			}
		}
	}
	return reports, nil
}

// AppendImages attaches uploaded image URLs to a report.
func (s *ReportService) AppendImages(ctx context.Context, id uuid.UUID, urls []string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reports SET image_urls = image_urls || $2 WHERE id = $1`, id, urls)
	if err != nil {
		return fmt.Errorf("append images: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	s.invalidateLatest(ctx)
	return nil
}

// ClaimReport is the optimistic claim: a single conditional write guarded by
// "claimer_token IS NULL". Zero affected rows means another claimant won.
func (s *ReportService) ClaimReport(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reports
		SET status = $3,
		    claimer_token = $2,
		    claimed_at = NOW(),
		    last_claimer_activity_at = NOW()
		WHERE id = $1 AND status = $4 AND claimer_token IS NULL`,
		id, token, models.StatusInProgress, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("claim report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); errors.Is(err, lifecycle.ErrNotFound) {
			return lifecycle.ErrNotFound
		}
		return lifecycle.ErrAlreadyClaimed
	}

	s.invalidateLatest(ctx)
	s.logger.Infow("Report claimed", "report_id", id)
	return nil
}

// CloseReport applies a computed closure, guarded by token equality. Zero
// affected rows means the caller is not the claimant.
func (s *ReportService) CloseReport(ctx context.Context, id uuid.UUID, token string, c models.Closure) error {
	if token == "" {
		return lifecycle.ErrNotClaimant
	}

	query := `
		UPDATE reports
		SET status = $3,
		    closure_note = NULLIF($4, ''),
		    needs_help = $5,
		    help_note = NULLIF($6, ''),
		    closed_at = $7
		WHERE id = $1 AND claimer_token = $2`
	if c.ClearClaimer {
		query = `
		UPDATE reports
		SET status = $3,
		    closure_note = NULLIF($4, ''),
		    needs_help = $5,
		    help_note = NULLIF($6, ''),
		    closed_at = $7,
		    claimer_token = NULL,
		    claimed_at = NULL,
		    last_claimer_activity_at = NULL
		WHERE id = $1 AND claimer_token = $2`
	}

	tag, err := s.db.Exec(ctx, query, id, token, c.Status, c.Note, c.NeedsHelp, c.HelpNote, c.ClosedAt)
	if err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotClaimant
	}

	s.invalidateLatest(ctx)
	s.logger.Infow("Report closed", "report_id", id, "status", c.Status, "result", c.Result)
	return nil
}

// DeleteReport permanently removes a fake report and, via cascade, its
// updates. Guarded by token equality.
func (s *ReportService) DeleteReport(ctx context.Context, id uuid.UUID, token string) error {
	if token == "" {
		return lifecycle.ErrNotClaimant
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM reports WHERE id = $1 AND claimer_token = $2`, id, token)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotClaimant
	}

	s.invalidateLatest(ctx)
	s.logger.Infow("Report deleted as fake", "report_id", id)
	return nil
}

// AdminDelete removes a report unconditionally. Moderation only; callers
// must be behind admin auth.
func (s *ReportService) AdminDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("admin delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	s.invalidateLatest(ctx)
	s.logger.Infow("Report removed by moderator", "report_id", id)
	return nil
}

// ReleaseStale reopens in_progress reports whose claimant has been inactive
// longer than ttl. The status/token predicate keeps the write race-safe
// against a concurrent close.
func (s *ReportService) ReleaseStale(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reports
		SET status = $1,
		    claimer_token = NULL,
		    claimed_at = NULL,
		    last_claimer_activity_at = NULL
		WHERE status = $2
		  AND claimer_token IS NOT NULL
		  AND last_claimer_activity_at < NOW() - $3::interval`,
		models.StatusOpen, models.StatusInProgress, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.invalidateLatest(ctx)
	}
	return tag.RowsAffected(), nil
}

func (s *ReportService) invalidateLatest(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, latestCacheKey).Err(); err != nil {
		s.logger.Debugw("latest-feed cache invalidation failed", "error", err)
	}
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.AnimalKind, &r.Lat, &r.Lng,
		&r.Status, &r.ImageURLs, &r.ClosureNote, &r.NeedsHelp, &r.HelpNote,
		&r.ClaimerToken, &r.ClaimedAt, &r.LastClaimerActivityAt,
		&r.ReporterToken, &r.ClosedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReports(rows pgx.Rows) ([]models.Report, error) {
	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}
