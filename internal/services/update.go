package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

// UpdateService handles the append-only update feed of a report.
type UpdateService struct {
	db      *pgxpool.Pool
	reports *ReportService
	logger  *zap.SugaredLogger
}

// NewUpdateService creates a new update service.
func NewUpdateService(db *pgxpool.Pool, reports *ReportService, logger *zap.SugaredLogger) *UpdateService {
	return &UpdateService{db: db, reports: reports, logger: logger}
}

// Add inserts an info update. Empty submissions (no text, no images) are
// rejected before touching the database. When claimerToken matches the row's
// stored token the claimant's activity timestamp is refreshed; a mismatch is
// ignored, since attribution is best-effort and never blocks the insert.
func (s *UpdateService) Add(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(imageURLs) == 0 {
		return nil, lifecycle.ErrEmptyUpdate
	}
	if imageURLs == nil {
		imageURLs = []string{}
	}

	if _, err := s.reports.Get(ctx, reportID); err != nil {
		return nil, err
	}

	u := &models.Update{
		ReportID:  reportID,
		Type:      models.UpdateTypeInfo,
		Text:      text,
		ImageURLs: imageURLs,
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO updates (report_id, type, text, image_urls)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		reportID, u.Type, text, imageURLs,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert update: %w", err)
	}

	if claimerToken != "" {
		s.refreshActivity(ctx, reportID, claimerToken)
	}

	s.logger.Infow("Update added", "report_id", reportID, "images", len(imageURLs))
	return u, nil
}

// ListByReport returns a report's updates, newest first.
func (s *UpdateService) ListByReport(ctx context.Context, reportID uuid.UUID, limit int) ([]models.Update, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, report_id, type, text, image_urls, created_at
		FROM updates
		WHERE report_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, reportID, limit)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	updates := []models.Update{}
	for rows.Next() {
		var u models.Update
		if err := rows.Scan(&u.ID, &u.ReportID, &u.Type, &u.Text, &u.ImageURLs, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (s *UpdateService) refreshActivity(ctx context.Context, reportID uuid.UUID, token string) {
	_, err := s.db.Exec(ctx, `
		UPDATE reports
		SET last_claimer_activity_at = NOW()
		WHERE id = $1 AND claimer_token = $2`, reportID, token)
	if err != nil {
		s.logger.Warnw("claimant activity refresh failed", "report_id", reportID, "error", err)
	}
}
