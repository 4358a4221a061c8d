package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

// Message categories accepted from the contact form.
const (
	MessageCategoryContact    = "contact"
	MessageCategoryHappyStory = "happy_story"
)

// MessageService stores contact-form and happy-story submissions.
type MessageService struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewMessageService creates a new message service.
func NewMessageService(db *pgxpool.Pool, logger *zap.SugaredLogger) *MessageService {
	return &MessageService{db: db, logger: logger}
}

// Create stores a submission. The message body is required; everything else
// is optional. Unknown categories fall back to "contact".
func (s *MessageService) Create(ctx context.Context, req models.NewMessage) (*models.Message, error) {
	body := strings.TrimSpace(req.Message)
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	category := req.Category
	if category != MessageCategoryContact && category != MessageCategoryHappyStory {
		category = MessageCategoryContact
	}

	images := req.ImageURLs
	if images == nil {
		images = []string{}
	}

	m := &models.Message{
		Category:  category,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Subject:   strings.TrimSpace(req.Subject),
		Body:      body,
		ImageURLs: images,
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (category, name, email, subject, body, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		m.Category, m.Name, m.Email, m.Subject, m.Body, m.ImageURLs,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.logger.Infow("Message received", "category", m.Category, "has_email", m.Email != "")
	return m, nil
}

// List returns recent submissions for the admin inbox, newest first.
func (s *MessageService) List(ctx context.Context, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, category, name, email, subject, body, image_urls, created_at
		FROM messages
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Category, &m.Name, &m.Email, &m.Subject, &m.Body, &m.ImageURLs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
