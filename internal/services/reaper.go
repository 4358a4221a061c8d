package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// staleReleaser is the single store operation the reaper needs.
type staleReleaser interface {
	ReleaseStale(ctx context.Context, ttl time.Duration) (int64, error)
}

// ReaperWorker enforces the advertised claim auto-release: a claimant who
// posts no update within the TTL loses the case back to "open". The release
// itself is a conditional bulk write, so a close landing concurrently always
// wins over the reaper.
type ReaperWorker struct {
	reports staleReleaser
	ttl     time.Duration
	logger  *zap.SugaredLogger
}

// NewReaperWorker creates a background claim reaper.
func NewReaperWorker(reports staleReleaser, ttl time.Duration, logger *zap.SugaredLogger) *ReaperWorker {
	return &ReaperWorker{reports: reports, ttl: ttl, logger: logger}
}

// Start begins the periodic release loop. It blocks until ctx is cancelled.
func (w *ReaperWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial pass
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Claim reaper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReaperWorker) sweep(ctx context.Context) {
	released, err := w.reports.ReleaseStale(ctx, w.ttl)
	if err != nil {
		w.logger.Errorw("stale claim sweep failed", "error", err)
		return
	}
	if released > 0 {
		w.logger.Infow("Stale claims released", "count", released, "ttl", w.ttl)
	}
}
