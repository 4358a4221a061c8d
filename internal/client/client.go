// Package client is a small HTTP client for the StrayMap API. It implements
// lifecycle.Store, so the lifecycle engine can run on a volunteer device
// with the server acting as the persistent store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
)

// Client talks to one StrayMap server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given server base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Latest fetches the newest reports across all statuses.
func (c *Client) Latest(ctx context.Context, n int) ([]models.Report, error) {
	var reports []models.Report
	err := c.get(ctx, fmt.Sprintf("/api/v1/reports/latest?limit=%d", n), &reports)
	return reports, err
}

// ListByStatus fetches reports in one status.
func (c *Client) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := c.get(ctx, fmt.Sprintf("/api/v1/reports?status=%s&limit=%d", status, limit), &reports)
	return reports, err
}

// ListByIDs fetches the non-resolved reports among ids.
func (c *Client) ListByIDs(ctx context.Context, ids []string, limit int) ([]models.Report, error) {
	if len(ids) == 0 {
		return []models.Report{}, nil
	}
	var reports []models.Report
	query := url.Values{"ids": {strings.Join(ids, ",")}, "limit": {fmt.Sprint(limit)}}
	err := c.get(ctx, "/api/v1/reports?"+query.Encode(), &reports)
	return reports, err
}

// Get fetches one report by id.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := c.get(ctx, "/api/v1/reports/"+id.String(), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Updates fetches a report's update feed.
func (c *Client) Updates(ctx context.Context, id uuid.UUID, limit int) ([]models.Update, error) {
	var updates []models.Update
	err := c.get(ctx, fmt.Sprintf("/api/v1/reports/%s/updates?limit=%d", id, limit), &updates)
	return updates, err
}

// ClaimReport attempts the conditional claim with a device-minted token.
// A 409 from the server maps to lifecycle.ErrAlreadyClaimed.
func (c *Client) ClaimReport(ctx context.Context, id uuid.UUID, token string) error {
	body := map[string]string{"token": token}
	return c.post(ctx, fmt.Sprintf("/api/v1/reports/%s/claim", id), body, nil)
}

// CloseReport applies a close outcome with the device's claim token.
func (c *Client) CloseReport(ctx context.Context, id uuid.UUID, token string, closure models.Closure) error {
	body := map[string]interface{}{
		"token":      token,
		"result":     closure.Result,
		"note":       closure.Note,
		"needs_help": closure.NeedsHelp,
		"help_note":  closure.HelpNote,
	}
	return c.post(ctx, fmt.Sprintf("/api/v1/reports/%s/close", id), body, nil)
}

// DeleteReport marks a report as fake, removing it permanently.
func (c *Client) DeleteReport(ctx context.Context, id uuid.UUID, token string) error {
	body := map[string]interface{}{
		"token":  token,
		"result": models.ResultFake,
	}
	return c.post(ctx, fmt.Sprintf("/api/v1/reports/%s/close", id), body, nil)
}

// InsertUpdate posts an info update with pre-uploaded image URLs.
func (c *Client) InsertUpdate(ctx context.Context, id uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error) {
	body := map[string]interface{}{
		"text":          text,
		"image_urls":    imageURLs,
		"claimer_token": claimerToken,
	}
	var update models.Update
	if err := c.post(ctx, fmt.Sprintf("/api/v1/reports/%s/updates", id), body, &update); err != nil {
		return nil, err
	}
	return &update, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and maps the server's error statuses back onto
// the engine's error taxonomy.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusConflict:
		return lifecycle.ErrAlreadyClaimed
	case http.StatusForbidden:
		return lifecycle.ErrNotClaimant
	case http.StatusNotFound:
		return lifecycle.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
