package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/handlers"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUpdateRouter(updates handlers.UpdateStore, uploads handlers.Uploader) *chi.Mux {
	h := handlers.NewUpdateHandler(updates, uploads, zap.NewNop().Sugar())
	r := chi.NewRouter()
	r.Get("/reports/{id}/updates", h.List)
	r.Post("/reports/{id}/updates", h.Add)
	return r
}

func TestAddUpdateJSON(t *testing.T) {
	updates := new(MockUpdateStore)
	router := newUpdateRouter(updates, nil)
	id := uuid.New()

	updates.On("Add", id, "spotted again near the park", []string(nil), "clm_abc").
		Return(&models.Update{ReportID: id, Type: models.UpdateTypeInfo}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/reports/"+id.String()+"/updates", map[string]string{
		"text":          "spotted again near the park",
		"claimer_token": "clm_abc",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	updates.AssertExpectations(t)
}

func TestAddUpdateEmptyRejected(t *testing.T) {
	updates := new(MockUpdateStore)
	router := newUpdateRouter(updates, nil)
	id := uuid.New()

	updates.On("Add", id, "", []string(nil), "").
		Return(nil, lifecycle.ErrEmptyUpdate).Once()

	rec := doJSON(t, router, http.MethodPost, "/reports/"+id.String()+"/updates", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddUpdateUnknownReport(t *testing.T) {
	updates := new(MockUpdateStore)
	router := newUpdateRouter(updates, nil)
	id := uuid.New()

	updates.On("Add", id, "text", []string(nil), "").
		Return(nil, lifecycle.ErrNotFound).Once()

	rec := doJSON(t, router, http.MethodPost, "/reports/"+id.String()+"/updates", map[string]string{
		"text": "text",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddUpdateMultipartEmptyRejectedBeforeUpload(t *testing.T) {
	updates := new(MockUpdateStore)
	uploads := new(MockUploader)
	router := newUpdateRouter(updates, uploads)
	id := uuid.New()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", "   "))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports/"+id.String()+"/updates", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uploads.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	updates.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddUpdateMultipartTextOnly(t *testing.T) {
	updates := new(MockUpdateStore)
	uploads := new(MockUploader)
	router := newUpdateRouter(updates, uploads)
	id := uuid.New()

	updates.On("Add", id, "moved to the shelter", []string{}, "clm_abc").
		Return(&models.Update{ReportID: id}, nil).Once()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", "moved to the shelter"))
	require.NoError(t, mw.WriteField("claimer_token", "clm_abc"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports/"+id.String()+"/updates", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	updates.AssertExpectations(t)
}

func TestListUpdates(t *testing.T) {
	updates := new(MockUpdateStore)
	router := newUpdateRouter(updates, nil)
	id := uuid.New()

	updates.On("ListByReport", id, 50).Return([]models.Update{{ReportID: id}}, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/reports/"+id.String()+"/updates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	updates.AssertExpectations(t)
}
