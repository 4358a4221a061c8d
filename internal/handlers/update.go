package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

const defaultUpdatesLimit = 50

// UpdateStore is the update persistence surface the handler depends on.
type UpdateStore interface {
	Add(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error)
	ListByReport(ctx context.Context, reportID uuid.UUID, limit int) ([]models.Update, error)
}

// UpdateHandler handles the add-information endpoints of a report.
type UpdateHandler struct {
	updates UpdateStore
	uploads Uploader
	logger  *zap.SugaredLogger
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(updates UpdateStore, uploads Uploader, logger *zap.SugaredLogger) *UpdateHandler {
	return &UpdateHandler{updates: updates, uploads: uploads, logger: logger}
}

// List handles GET /api/v1/reports/{id}/updates
func (h *UpdateHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	updates, err := h.updates.ListByReport(r.Context(), id, queryLimit(r, defaultUpdatesLimit, maxListLimit))
	if err != nil {
		h.logger.Errorw("Failed to list updates", "report_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list updates")
		return
	}
	respondJSON(w, http.StatusOK, updates)
}

// addUpdateRequest is the JSON body of POST /api/v1/reports/{id}/updates.
// Image URLs must already be uploaded; the multipart form variant uploads
// inline instead.
type addUpdateRequest struct {
	Text         string   `json:"text"`
	ImageURLs    []string `json:"image_urls"`
	ClaimerToken string   `json:"claimer_token"`
}

// Add handles POST /api/v1/reports/{id}/updates. Accepts JSON or a
// multipart form (fields: text, claimer_token; files: images). An empty
// submission is rejected before any upload or insert.
func (h *UpdateHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var req addUpdateRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if !h.parseMultipart(w, r, id, &req) {
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	update, err := h.updates.Add(r.Context(), id, req.Text, req.ImageURLs, req.ClaimerToken)
	if respondLifecycleError(w, err, "Failed to add update") {
		return
	}
	respondJSON(w, http.StatusCreated, update)
}

// parseMultipart fills req from a multipart form, uploading images under
// updates/{id}/. Returns false after writing an error response.
func (h *UpdateHandler) parseMultipart(w http.ResponseWriter, r *http.Request, id uuid.UUID, req *addUpdateRequest) bool {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return false
	}

	req.Text = strings.TrimSpace(r.FormValue("text"))
	req.ClaimerToken = r.FormValue("claimer_token")

	files := r.MultipartForm.File["images"]
	if req.Text == "" && len(files) == 0 {
		respondError(w, http.StatusBadRequest, "Update needs text or at least one image")
		return false
	}

	urls, err := uploadFromForm(h.uploads, h.logger, r, "updates/"+id.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	req.ImageURLs = urls
	return true
}
