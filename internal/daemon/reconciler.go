package daemon

import (
	"context"
	"log/slog"
	"time"
)

// RescanFunc reconciles the backend's displays with the hardware and
// reports whether the display list changed.
type RescanFunc func(ctx context.Context) (changed bool, err error)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically rescans connectors so a missed hotplug event does
// not leave the display list stale. Only the first of a run of failures is
// logged at warning level.
type Reconciler struct {
	interval time.Duration
	rescan   RescanFunc
	logger   *slog.Logger

	failing bool
	repairs int
}

// NewReconciler returns a reconciler. A zero interval means 30 seconds.
func NewReconciler(cfg ReconcilerConfig, rescan RescanFunc) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{interval: interval, rescan: rescan, logger: logger}
}

// Run rescans every interval until ctx is cancelled. Run and ReconcileNow
// must not be called concurrently.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped", "repairs", r.repairs)
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// ReconcileNow runs one pass immediately.
func (r *Reconciler) ReconcileNow(ctx context.Context) {
	r.reconcile(ctx)
}

func (r *Reconciler) reconcile(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("reconciler panic recovered", "error", v)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	changed, err := r.rescan(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		// Shutting down or the loop is wedged; the next pass will tell.
	case err != nil:
		if r.failing {
			r.logger.Debug("reconciler: rescan still failing", "error", err)
		} else {
			r.logger.Warn("reconciler: rescan failed", "error", err)
		}
		r.failing = true
	default:
		if r.failing {
			r.logger.Info("reconciler: rescan recovered")
		}
		r.failing = false
		if changed {
			r.repairs++
			r.logger.Info("reconciler: display list was stale, repaired")
		}
	}
}
