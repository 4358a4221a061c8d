package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const adminTokenTTL = 12 * time.Hour

// AdminReportStore is the moderation surface the admin handler depends on.
type AdminReportStore interface {
	AdminDelete(ctx context.Context, id uuid.UUID) error
}

// AdminHandler provides the moderation endpoints: login, message inbox and
// report takedown.
type AdminHandler struct {
	passwordHash string
	jwtSecret    string
	messages     MessageStore
	reports      AdminReportStore
	logger       *zap.SugaredLogger
}

// NewAdminHandler creates a new admin handler. passwordHash is a bcrypt
// hash; when empty, login always fails.
func NewAdminHandler(passwordHash, jwtSecret string, messages MessageStore, reports AdminReportStore, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		messages:     messages,
		reports:      reports,
		logger:       logger,
	}
}

// Login handles POST /api/v1/admin/login and issues a short-lived JWT.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.passwordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		h.logger.Warnw("Admin login rejected")
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(adminTokenTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.logger.Errorw("Failed to sign admin token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": signed})
}

// Messages handles GET /api/v1/admin/messages
func (h *AdminHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.List(r.Context(), queryLimit(r, defaultListLimit, maxListLimit))
	if err != nil {
		h.logger.Errorw("Failed to list messages", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// DeleteReport handles DELETE /api/v1/admin/reports/{id} (moderation
// takedown, no claim token involved).
func (h *AdminHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	if err := h.reports.AdminDelete(r.Context(), id); respondLifecycleError(w, err, "Failed to delete report") {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
