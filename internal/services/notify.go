package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

// Notifier posts contact notifications to an external endpoint (an email
// relay function). Delivery is strictly best-effort: failures are logged and
// never surface to the caller or roll back the primary write.
type Notifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewNotifier creates a notifier. An empty endpoint disables delivery.
func NewNotifier(endpoint, apiKey string, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// NotifyAsync fires the notification in the background and returns
// immediately.
func (n *Notifier) NotifyAsync(notification models.Notification) {
	if n.endpoint == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := n.send(ctx, notification); err != nil {
			n.logger.Warnw("notification delivery failed", "error", err)
		}
	}()
}

func (n *Notifier) send(ctx context.Context, notification models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
