package heatmap

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Rebuilder is the slice of the service the refresher needs.
type Rebuilder interface {
	Rebuild(ctx context.Context, opts Options) (*Result, error)
}

// Refresher periodically rebuilds the default heatmap window so interactive
// requests mostly hit a warm cache and velocity history keeps accruing even
// without traffic.
type Refresher struct {
	service  Rebuilder
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a Refresher. If interval is <= 0, it defaults to 5m.
func NewRefresher(service Rebuilder, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		service:  service,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run rebuilds on every interval tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("heatmap refresher started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("heatmap refresher stopped")
			return
		case <-time.After(r.interval):
		}

		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("refresh iteration failed", "error", err)
		}
	}
}

// RunOnce performs a single forced rebuild of the default window.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if _, err := r.service.Rebuild(ctx, Options{}); err != nil {
		return fmt.Errorf("rebuilding heatmap: %w", err)
	}
	return nil
}
