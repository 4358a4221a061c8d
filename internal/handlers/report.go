package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/straymap/straymap-server/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 200
	maxListLimit     = 500
	defaultFeedSize  = 5
	maxUploadBytes   = 32 << 20
)

// ReportStore is the report persistence surface the handler depends on.
type ReportStore interface {
	Create(ctx context.Context, req models.NewReport) (*models.Report, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Report, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID, limit int) ([]models.Report, error)
	Latest(ctx context.Context, n int) ([]models.Report, error)
	AppendImages(ctx context.Context, id uuid.UUID, urls []string) error
	ClaimReport(ctx context.Context, id uuid.UUID, token string) error
	CloseReport(ctx context.Context, id uuid.UUID, token string, c models.Closure) error
	DeleteReport(ctx context.Context, id uuid.UUID, token string) error
}

// Uploader pushes a binary to the object store and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (string, error)
}

// ReportHandler handles report-related HTTP endpoints
type ReportHandler struct {
	reports ReportStore
	uploads Uploader
	logger  *zap.SugaredLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports ReportStore, uploads Uploader, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: reports, uploads: uploads, logger: logger}
}

// Create handles POST /api/v1/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.NewReport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if !req.AnimalKind.Valid() {
		respondError(w, http.StatusBadRequest, "animal_kind must be dog, cat or other")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		respondError(w, http.StatusBadRequest, "Coordinates out of range")
		return
	}

	report, err := h.reports.Create(r.Context(), req)
	if err != nil {
		h.logger.Errorw("Failed to create report", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create report")
		return
	}

	h.logger.Infow("Report created", "id", report.ID, "animal_kind", report.AnimalKind)

	// The reporter token is handed out exactly once, at creation.
	respondJSON(w, http.StatusCreated, struct {
		*models.Report
		ReporterToken string `json:"reporter_token"`
	}{report, report.ReporterToken})
}

// List handles GET /api/v1/reports with status/ids/limit filters.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit, maxListLimit)

	if rawIDs := r.URL.Query().Get("ids"); rawIDs != "" {
		ids, err := parseIDList(rawIDs)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid ids filter")
			return
		}
		reports, err := h.reports.ListByIDs(r.Context(), ids, limit)
		if err != nil {
			h.logger.Errorw("Failed to list reports by ids", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to list reports")
			return
		}
		respondJSON(w, http.StatusOK, reports)
		return
	}

	status := models.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusOpen
	}
	if !status.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown status filter")
		return
	}

	reports, err := h.reports.ListByStatus(r.Context(), status, limit)
	if err != nil {
		h.logger.Errorw("Failed to list reports", "status", status, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// Latest handles GET /api/v1/reports/latest
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.Latest(r.Context(), queryLimit(r, defaultFeedSize, 20))
	if err != nil {
		h.logger.Errorw("Failed to fetch latest reports", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch latest reports")
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if respondLifecycleError(w, err, "Failed to fetch report") {
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// UploadImages handles POST /api/v1/reports/{id}/images (multipart).
// Images are stored under reports/{id}/ and their URLs appended to the row.
func (h *ReportHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	if _, err := h.reports.Get(r.Context(), id); respondLifecycleError(w, err, "Failed to fetch report") {
		return
	}

	urls, err := uploadFromForm(h.uploads, h.logger, r, "reports/"+id.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(urls) == 0 {
		respondError(w, http.StatusBadRequest, "No images in request")
		return
	}

	if err := h.reports.AppendImages(r.Context(), id, urls); respondLifecycleError(w, err, "Failed to attach images") {
		return
	}

	respondJSON(w, http.StatusOK, map[string][]string{"image_urls": urls})
}

// Claim handles POST /api/v1/reports/{id}/claim. The conditional write
// decides the race; the loser gets 409 and no token. Devices that mint
// their own claim token send it in the body; otherwise one is generated.
func (h *ReportHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	// Body is optional; ignore parse failures on an empty body.
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := req.Token
	if token == "" {
		token = "clm_" + uuid.NewString()
	}
	if err := h.reports.ClaimReport(r.Context(), id, token); respondLifecycleError(w, err, "Failed to claim report") {
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// closeRequest is the body of POST /api/v1/reports/{id}/close.
type closeRequest struct {
	Token     string             `json:"token"`
	Result    models.CloseResult `json:"result"`
	Note      string             `json:"note"`
	NeedsHelp bool               `json:"needs_help"`
	HelpNote  string             `json:"help_note"`
}

// Close handles POST /api/v1/reports/{id}/close for resolved/reopen/fake.
func (h *ReportHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusForbidden, "Only the claimant can do this")
		return
	}

	if req.Result == models.ResultFake {
		if err := h.reports.DeleteReport(r.Context(), id, req.Token); respondLifecycleError(w, err, "Failed to delete report") {
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}

	closure, err := lifecycle.PlanClose(lifecycle.CloseRequest{
		Result:    req.Result,
		Note:      req.Note,
		NeedsHelp: req.NeedsHelp,
		HelpNote:  req.HelpNote,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reports.CloseReport(r.Context(), id, req.Token, closure); respondLifecycleError(w, err, "Failed to close report") {
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": string(closure.Status)})
}

// uploadFromForm parses the multipart form and uploads every "images" part,
// returning the public URLs in order.
func uploadFromForm(uploads Uploader, logger *zap.SugaredLogger, r *http.Request, prefix string) ([]string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}
	if r.MultipartForm == nil {
		return nil, fmt.Errorf("multipart form required")
	}

	files := r.MultipartForm.File["images"]
	if len(files) > storage.MaxImagesPerEntity {
		files = files[:storage.MaxImagesPerEntity]
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("unreadable image %q", fh.Filename)
		}
		url, err := uploads.Upload(r.Context(), prefix, fh.Filename, fh.Header.Get("Content-Type"), f)
		f.Close()
		if err != nil {
			logger.Errorw("Image upload failed", "file", fh.Filename, "error", err)
			return nil, fmt.Errorf("image upload failed")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func parseIDList(raw string) ([]uuid.UUID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
