package handlers_test

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Create(ctx context.Context, req models.NewReport) (*models.Report, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockReportStore) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockReportStore) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Report, error) {
	args := m.Called(status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockReportStore) ListByIDs(ctx context.Context, ids []uuid.UUID, limit int) ([]models.Report, error) {
	args := m.Called(ids, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockReportStore) Latest(ctx context.Context, n int) ([]models.Report, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockReportStore) AppendImages(ctx context.Context, id uuid.UUID, urls []string) error {
	args := m.Called(id, urls)
	return args.Error(0)
}

func (m *MockReportStore) ClaimReport(ctx context.Context, id uuid.UUID, token string) error {
	args := m.Called(id, token)
	return args.Error(0)
}

func (m *MockReportStore) CloseReport(ctx context.Context, id uuid.UUID, token string, c models.Closure) error {
	args := m.Called(id, token, c)
	return args.Error(0)
}

func (m *MockReportStore) DeleteReport(ctx context.Context, id uuid.UUID, token string) error {
	args := m.Called(id, token)
	return args.Error(0)
}

func (m *MockReportStore) AdminDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockUpdateStore struct {
	mock.Mock
}

func (m *MockUpdateStore) Add(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error) {
	args := m.Called(reportID, text, imageURLs, claimerToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Update), args.Error(1)
}

func (m *MockUpdateStore) ListByReport(ctx context.Context, reportID uuid.UUID, limit int) ([]models.Update, error) {
	args := m.Called(reportID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Update), args.Error(1)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Create(ctx context.Context, req models.NewMessage) (*models.Message, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageStore) List(ctx context.Context, limit int) ([]models.Message, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyAsync(n models.Notification) {
	m.Called(n)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (string, error) {
	args := m.Called(prefix, filename, contentType)
	return args.String(0), args.Error(1)
}
