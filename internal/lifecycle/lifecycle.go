// Package lifecycle implements the case lifecycle engine: the guarded status
// transitions of a report (claim, close, reopen, mark-as-fake, add-info).
//
// Every contested transition is an optimistic, single-round conditional write:
// the store evaluates the guard ("claimer_token is null" on claim,
// "claimer_token = token" on close/delete) atomically at write time. A write
// that affects zero rows means another actor won the race or the caller is
// not the claimant; the store reports that as ErrAlreadyClaimed or
// ErrNotClaimant and the engine makes no local state change. There is no
// client-side lock and no automatic retry.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyClaimed means the conditional claim write affected zero
	// rows: another claimant took the case first.
	ErrAlreadyClaimed = errors.New("case already claimed by someone else")

	// ErrNotClaimant means a close/reopen/delete was attempted without a
	// token equal to the stored claimer token.
	ErrNotClaimant = errors.New("caller does not hold the claim for this case")

	// ErrEmptyUpdate means an add-info submission carried neither text nor
	// images. Rejected before any write.
	ErrEmptyUpdate = errors.New("update needs text or at least one image")

	// ErrNotFound means the referenced report does not exist.
	ErrNotFound = errors.New("report not found")
)

// Store is the conditional-write surface the engine drives. Implementations
// must report zero affected rows as ErrAlreadyClaimed (claim) or
// ErrNotClaimant (close/delete), never as success.
type Store interface {
	ClaimReport(ctx context.Context, reportID uuid.UUID, token string) error
	CloseReport(ctx context.Context, reportID uuid.UUID, token string, c models.Closure) error
	DeleteReport(ctx context.Context, reportID uuid.UUID, token string) error
	InsertUpdate(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string, claimerToken string) (*models.Update, error)
}

// Vault is the per-device report-id -> claim-token mapping. It is a
// convenience record, not a security boundary; the authoritative token check
// happens in the store's conditional write.
type Vault interface {
	Put(reportID, token string) error
	Get(reportID string) (string, bool)
	Delete(reportID string) error
	IDs() []string
}

// CloseRequest carries the claimant's chosen outcome for a case.
type CloseRequest struct {
	Result    models.CloseResult
	Note      string
	NeedsHelp bool
	HelpNote  string
}

// PlanClose validates a close request and computes the resulting row
// mutation. result=fake is handled as a delete and never reaches here.
func PlanClose(req CloseRequest) (models.Closure, error) {
	switch req.Result {
	case models.ResultResolved:
		c := models.Closure{
			Status:    models.StatusResolved,
			Result:    req.Result,
			Note:      strings.TrimSpace(req.Note),
			NeedsHelp: req.NeedsHelp,
		}
		if req.NeedsHelp {
			c.Status = models.StatusNeedsHelp
			c.HelpNote = strings.TrimSpace(req.HelpNote)
		} else {
			now := time.Now().UTC()
			c.ClosedAt = &now
			// A fully resolved case is closed for everyone; the claim dies
			// with it.
			c.ClearClaimer = true
		}
		return c, nil
	case models.ResultReopen:
		return models.Closure{
			Status:       models.StatusOpen,
			Result:       req.Result,
			Note:         strings.TrimSpace(req.Note),
			ClearClaimer: true,
		}, nil
	default:
		return models.Closure{}, fmt.Errorf("unknown close result %q", req.Result)
	}
}

// Engine coordinates the vault and the store for one device.
type Engine struct {
	store  Store
	vault  Vault
	logger *zap.SugaredLogger
}

// NewEngine creates a lifecycle engine.
func NewEngine(store Store, vault Vault, logger *zap.SugaredLogger) *Engine {
	return &Engine{store: store, vault: vault, logger: logger}
}

// Claim takes ownership of an open case. On success the fresh token is
// persisted in the vault and returned. On ErrAlreadyClaimed nothing changes
// locally.
func (e *Engine) Claim(ctx context.Context, reportID uuid.UUID) (string, error) {
	token := "clm_" + uuid.NewString()

	if err := e.store.ClaimReport(ctx, reportID, token); err != nil {
		return "", err
	}

	if err := e.vault.Put(reportID.String(), token); err != nil {
		// The claim itself stood; losing the vault entry only costs this
		// device the ability to close the case later.
		e.logger.Errorw("claim succeeded but token could not be stored locally",
			"report_id", reportID, "error", err)
	}

	e.logger.Infow("Case claimed", "report_id", reportID)
	return token, nil
}

// Close finishes a claimed case. The vault must hold the claim token;
// without one the engine rejects locally with ErrNotClaimant, and with a
// stale one the store's conditional write rejects authoritatively.
func (e *Engine) Close(ctx context.Context, reportID uuid.UUID, req CloseRequest) error {
	token, ok := e.vault.Get(reportID.String())
	if !ok {
		return ErrNotClaimant
	}

	if req.Result == models.ResultFake {
		if err := e.store.DeleteReport(ctx, reportID, token); err != nil {
			return err
		}
		if err := e.vault.Delete(reportID.String()); err != nil {
			e.logger.Errorw("failed to drop vault entry", "report_id", reportID, "error", err)
		}
		e.logger.Infow("Case deleted as fake", "report_id", reportID)
		return nil
	}

	closure, err := PlanClose(req)
	if err != nil {
		return err
	}

	if err := e.store.CloseReport(ctx, reportID, token, closure); err != nil {
		return err
	}

	// A needs_help outcome keeps the claim alive so the same device can
	// finish the case later.
	if closure.Status != models.StatusNeedsHelp {
		if err := e.vault.Delete(reportID.String()); err != nil {
			e.logger.Errorw("failed to drop vault entry", "report_id", reportID, "error", err)
		}
	}

	e.logger.Infow("Case closed", "report_id", reportID, "status", closure.Status)
	return nil
}

// AddUpdate posts an info update to a case. Anyone may post; if this device
// holds the claim token it is passed along so the store can refresh the
// claimant's activity timestamp best-effort.
func (e *Engine) AddUpdate(ctx context.Context, reportID uuid.UUID, text string, imageURLs []string) (*models.Update, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(imageURLs) == 0 {
		return nil, ErrEmptyUpdate
	}

	token, _ := e.vault.Get(reportID.String())
	return e.store.InsertUpdate(ctx, reportID, text, imageURLs, token)
}

// ClaimedIDs lists the report ids this device currently holds tokens for.
func (e *Engine) ClaimedIDs() []string {
	return e.vault.IDs()
}
