package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

// MessageStore is the message persistence surface the handler depends on.
type MessageStore interface {
	Create(ctx context.Context, req models.NewMessage) (*models.Message, error)
	List(ctx context.Context, limit int) ([]models.Message, error)
}

// Notifier delivers a best-effort notification without blocking the caller.
type Notifier interface {
	NotifyAsync(n models.Notification)
}

// MessageHandler handles contact-form and happy-story submissions.
type MessageHandler struct {
	messages MessageStore
	notifier Notifier
	logger   *zap.SugaredLogger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages MessageStore, notifier Notifier, logger *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{messages: messages, notifier: notifier, logger: logger}
}

// Submit handles POST /api/v1/messages. Submissions with a filled honeypot
// field are acknowledged but silently dropped. The notification fires after
// the insert and never affects the response.
func (h *MessageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.NewMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Honeypot) != "" {
		h.logger.Infow("Honeypot tripped, dropping message", "category", req.Category)
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	msg, err := h.messages.Create(r.Context(), req)
	if err != nil {
		h.logger.Errorw("Failed to store message", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to store message")
		return
	}

	h.notifier.NotifyAsync(models.Notification{
		Category:  msg.Category,
		Subject:   msg.Subject,
		Name:      msg.Name,
		Email:     msg.Email,
		Message:   msg.Body,
		ImageURLs: msg.ImageURLs,
		CreatedAt: msg.CreatedAt,
	})

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         msg.ID,
		"created_at": msg.CreatedAt,
	})
}
