// Package storage uploads images to a Supabase-compatible object store over
// its Storage REST API and hands back publicly resolvable URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Allowed image extensions; anything else is stored as .png.
var allowedExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// MaxImagesPerEntity caps how many images a single report or update carries.
const MaxImagesPerEntity = 3

// Client uploads objects to one bucket. Object names are randomized so
// concurrent uploads under the same prefix never collide.
type Client struct {
	baseURL string
	bucket  string
	apiKey  string
	http    *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a storage client. baseURL is the store's root URL
// (e.g. https://xyz.supabase.co).
func NewClient(baseURL, apiKey, bucket string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Upload stores body under "{prefix}/{random}.{ext}" and returns the public
// URL. The extension is derived from filename; contentType is preserved on
// the stored object.
func (c *Client) Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (string, error) {
	objectPath := fmt.Sprintf("%s/%s.%s", strings.Trim(prefix, "/"), uuid.NewString(), SafeExt(filename))

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "3600")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("upload %s: store returned %d: %s", objectPath, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	c.logger.Infow("Image uploaded", "path", objectPath, "content_type", contentType)
	return c.PublicURL(objectPath), nil
}

// PublicURL returns the resolvable URL for an already-stored object.
func (c *Client) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, strings.Trim(objectPath, "/"))
}

// SafeExt extracts a whitelisted lowercase extension from a file name,
// falling back to png.
func SafeExt(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if allowedExts[ext] {
		return ext
	}
	return "png"
}
