package lifecycle_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ClaimReport(ctx context.Context, reportID uuid.UUID, token string) error {
	args := m.Called(reportID, token)
	return args.Error(0)
}

func (m *MockStore) CloseReport(ctx context.Context, reportID uuid.UUID, token string, c models.Closure) error {
	args := m.Called(reportID, token, c)
	return args.Error(0)
}

func (m *MockStore) DeleteReport(ctx context.Context, reportID uuid.UUID, token string) error {
	args := m.Called(reportID, token)
	return args.Error(0)
}

func (m *MockStore) InsertUpdate(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error) {
	args := m.Called(reportID, text, imageURLs, claimerToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Update), args.Error(1)
}

// raceStore is an in-memory store whose claim is a real compare-and-set,
// used to exercise the two-concurrent-claimants property.
type raceStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]string
}

func newRaceStore() *raceStore {
	return &raceStore{tokens: make(map[uuid.UUID]string)}
}

func (s *raceStore) ClaimReport(ctx context.Context, reportID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, claimed := s.tokens[reportID]; claimed {
		return lifecycle.ErrAlreadyClaimed
	}
	s.tokens[reportID] = token
	return nil
}

func (s *raceStore) CloseReport(ctx context.Context, reportID uuid.UUID, token string, c models.Closure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[reportID] != token {
		return lifecycle.ErrNotClaimant
	}
	if c.ClearClaimer {
		delete(s.tokens, reportID)
	}
	return nil
}

func (s *raceStore) DeleteReport(ctx context.Context, reportID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[reportID] != token {
		return lifecycle.ErrNotClaimant
	}
	delete(s.tokens, reportID)
	return nil
}

func (s *raceStore) InsertUpdate(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error) {
	return &models.Update{ReportID: reportID, Type: models.UpdateTypeInfo, Text: text, ImageURLs: imageURLs}, nil
}
