package lifecycle_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/lifecycle"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/straymap/straymap-server/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(store lifecycle.Store) (*lifecycle.Engine, *vault.Memory) {
	v := vault.NewMemory()
	return lifecycle.NewEngine(store, v, zap.NewNop().Sugar()), v
}

func TestClaimStoresTokenInVault(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()

	store.On("ClaimReport", reportID, mock.AnythingOfType("string")).Return(nil).Once()

	token, err := engine.Claim(context.Background(), reportID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored, ok := v.Get(reportID.String())
	assert.True(t, ok, "vault should hold the claim token")
	assert.Equal(t, token, stored)
	store.AssertExpectations(t)
}

func TestClaimConflictLeavesNoLocalState(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()

	store.On("ClaimReport", reportID, mock.Anything).Return(lifecycle.ErrAlreadyClaimed).Once()

	_, err := engine.Claim(context.Background(), reportID)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyClaimed)

	_, ok := v.Get(reportID.String())
	assert.False(t, ok, "a lost claim race must not touch the vault")
}

func TestConcurrentClaimSucceedsExactlyOnce(t *testing.T) {
	store := newRaceStore()
	reportID := uuid.New()

	engineA, _ := newTestEngine(store)
	engineB, _ := newTestEngine(store)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, e := range []*lifecycle.Engine{engineA, engineB} {
		wg.Add(1)
		go func(i int, e *lifecycle.Engine) {
			defer wg.Done()
			_, results[i] = e.Claim(context.Background(), reportID)
		}(i, e)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, lifecycle.ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, wins, "exactly one of two racing claims must win")
}

func TestCloseWithoutVaultTokenRejectedLocally(t *testing.T) {
	store := new(MockStore)
	engine, _ := newTestEngine(store)

	err := engine.Close(context.Background(), uuid.New(), lifecycle.CloseRequest{Result: models.ResultResolved})
	assert.ErrorIs(t, err, lifecycle.ErrNotClaimant)
	store.AssertNotCalled(t, "CloseReport", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "DeleteReport", mock.Anything, mock.Anything)
}

func TestCloseResolvedClearsVault(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_abc"))

	store.On("CloseReport", reportID, "clm_abc", mock.MatchedBy(func(c models.Closure) bool {
		return c.Status == models.StatusResolved && c.ClearClaimer && c.ClosedAt != nil
	})).Return(nil).Once()

	err := engine.Close(context.Background(), reportID, lifecycle.CloseRequest{
		Result: models.ResultResolved,
		Note:   "found the owner",
	})
	require.NoError(t, err)

	_, ok := v.Get(reportID.String())
	assert.False(t, ok, "resolved close must clear the vault entry")
	store.AssertExpectations(t)
}

func TestCloseNeedsHelpKeepsVaultEntry(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_abc"))

	store.On("CloseReport", reportID, "clm_abc", mock.MatchedBy(func(c models.Closure) bool {
		return c.Status == models.StatusNeedsHelp && c.NeedsHelp && c.HelpNote == "needs a foster home" && c.ClosedAt == nil
	})).Return(nil).Once()

	err := engine.Close(context.Background(), reportID, lifecycle.CloseRequest{
		Result:    models.ResultResolved,
		NeedsHelp: true,
		HelpNote:  "needs a foster home",
	})
	require.NoError(t, err)

	token, ok := v.Get(reportID.String())
	assert.True(t, ok, "needs_help close must keep the claim on this device")
	assert.Equal(t, "clm_abc", token)
}

func TestCloseReopenClearsClaimAndVault(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_abc"))

	store.On("CloseReport", reportID, "clm_abc", mock.MatchedBy(func(c models.Closure) bool {
		return c.Status == models.StatusOpen && c.ClearClaimer && c.ClosedAt == nil
	})).Return(nil).Once()

	err := engine.Close(context.Background(), reportID, lifecycle.CloseRequest{Result: models.ResultReopen})
	require.NoError(t, err)

	_, ok := v.Get(reportID.String())
	assert.False(t, ok)
	store.AssertExpectations(t)
}

func TestCloseFakeDeletesAndClearsVault(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_abc"))

	store.On("DeleteReport", reportID, "clm_abc").Return(nil).Once()

	err := engine.Close(context.Background(), reportID, lifecycle.CloseRequest{Result: models.ResultFake})
	require.NoError(t, err)

	_, ok := v.Get(reportID.String())
	assert.False(t, ok)
	store.AssertNotCalled(t, "CloseReport", mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseStaleTokenKeepsVaultEntry(t *testing.T) {
	// The server reopened the case and someone else claimed it; the old
	// token no longer matches. The rejection must not destroy local state.
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_stale"))

	store.On("CloseReport", reportID, "clm_stale", mock.Anything).Return(lifecycle.ErrNotClaimant).Once()

	err := engine.Close(context.Background(), reportID, lifecycle.CloseRequest{Result: models.ResultResolved})
	assert.ErrorIs(t, err, lifecycle.ErrNotClaimant)

	_, ok := v.Get(reportID.String())
	assert.True(t, ok)
}

func TestCloseUnknownResultRejected(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_abc"))

	err := engine.Close(context.Background(), reportID, lifecycle.CloseRequest{Result: "archived"})
	assert.Error(t, err)
	store.AssertNotCalled(t, "CloseReport", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddUpdateEmptyRejectedBeforeAnyWrite(t *testing.T) {
	store := new(MockStore)
	engine, _ := newTestEngine(store)

	_, err := engine.AddUpdate(context.Background(), uuid.New(), "   ", nil)
	assert.ErrorIs(t, err, lifecycle.ErrEmptyUpdate)
	store.AssertNotCalled(t, "InsertUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddUpdateImagesOnlyIsAccepted(t *testing.T) {
	store := new(MockStore)
	engine, _ := newTestEngine(store)
	reportID := uuid.New()
	urls := []string{"https://cdn.example/img.png"}

	store.On("InsertUpdate", reportID, "", urls, "").
		Return(&models.Update{ReportID: reportID, ImageURLs: urls}, nil).Once()

	update, err := engine.AddUpdate(context.Background(), reportID, "", urls)
	require.NoError(t, err)
	assert.Equal(t, urls, update.ImageURLs)
}

func TestAddUpdatePassesVaultTokenForAttribution(t *testing.T) {
	store := new(MockStore)
	engine, v := newTestEngine(store)
	reportID := uuid.New()
	require.NoError(t, v.Put(reportID.String(), "clm_abc"))

	store.On("InsertUpdate", reportID, "still there", []string(nil), "clm_abc").
		Return(&models.Update{ReportID: reportID, Text: "still there"}, nil).Once()

	_, err := engine.AddUpdate(context.Background(), reportID, "still there", nil)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestPlanClose(t *testing.T) {
	tests := []struct {
		name      string
		req       lifecycle.CloseRequest
		status    models.Status
		clear     bool
		hasClosed bool
		wantErr   bool
	}{
		{
			name:      "resolved",
			req:       lifecycle.CloseRequest{Result: models.ResultResolved},
			status:    models.StatusResolved,
			clear:     true,
			hasClosed: true,
		},
		{
			name:   "resolved with residual need",
			req:    lifecycle.CloseRequest{Result: models.ResultResolved, NeedsHelp: true},
			status: models.StatusNeedsHelp,
		},
		{
			name:   "reopen",
			req:    lifecycle.CloseRequest{Result: models.ResultReopen},
			status: models.StatusOpen,
			clear:  true,
		},
		{
			name:    "unknown result",
			req:     lifecycle.CloseRequest{Result: "wontfix"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := lifecycle.PlanClose(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, c.Status)
			assert.Equal(t, tt.clear, c.ClearClaimer)
			assert.Equal(t, tt.hasClosed, c.ClosedAt != nil)
		})
	}
}
