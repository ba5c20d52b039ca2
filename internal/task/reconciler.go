package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/staging"
	"github.com/phrazzld/deckgen-api/internal/store"
)

// ReconcilerConfig configures stale task detection.
type ReconcilerConfig struct {
	// StuckTaskAge is how long a non-terminal task may go without an update
	// before it is considered abandoned. It must exceed the longest single
	// stage wait.
	StuckTaskAge time.Duration

	// CheckInterval is how often Run scans for abandoned tasks.
	CheckInterval time.Duration

	// StagingBaseDir is swept for directories left behind by abandoned runs.
	StagingBaseDir string
}

// Reconciler fails task records whose run died without reporting a
// terminal status. It never restarts work.
type Reconciler struct {
	store  store.TaskStore
	config ReconcilerConfig
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(taskStore store.TaskStore, config ReconcilerConfig, logger *slog.Logger) (*Reconciler, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.StuckTaskAge <= 0 {
		return nil, fmt.Errorf("stuck task age must be positive, got %s", config.StuckTaskAge)
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}

	return &Reconciler{
		store:  taskStore,
		config: config,
		logger: logger.With("component", "task_reconciler"),
	}, nil
}

// Run reconciles once immediately and then on every CheckInterval until ctx
// is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if _, err := r.ReconcileOnce(ctx); err != nil {
		r.logger.Error("initial reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error("reconciliation failed", "error", err)
			}
		}
	}
}

// ReconcileOnce fails every stale task and returns how many were failed.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	stale, err := r.store.FindStale(ctx, r.config.StuckTaskAge)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale tasks: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	r.logger.Info("found stale tasks", "count", len(stale))

	message := fmt.Sprintf("interrupted: no progress recorded for %s", r.config.StuckTaskAge)
	failed := 0
	for _, t := range stale {
		_, err := r.store.Update(ctx, t.ID, domain.FailedUpdate("", message))
		if err != nil {
			// The run may have finished between the scan and the write.
			if errors.Is(err, domain.ErrTaskFinalized) {
				continue
			}
			r.logger.Error("failed to mark stale task failed",
				"task_id", t.ID,
				"status", t.Status,
				"error", err)
			continue
		}
		failed++

		removed, err := staging.Sweep(r.config.StagingBaseDir, t.ID)
		if err != nil {
			r.logger.Warn("failed to sweep staging for stale task", "task_id", t.ID, "error", err)
		}
		r.logger.Warn("marked stale task failed",
			"task_id", t.ID,
			"stage", t.Stage,
			"progress", t.Progress,
			"last_update", t.UpdatedAt,
			"staging_dirs_removed", removed)
	}

	return failed, nil
}
