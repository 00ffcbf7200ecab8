package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/prospect/internal/storage"
)

// JobStore abstracts the job queue and interaction lookups the worker needs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetInteractionView(id int64) (storage.InteractionView, bool, error)
}

// Worker processes follow_up jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	notifier Notifier
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 5s.
func NewWorker(store JobStore, notifier Notifier, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		store:    store,
		notifier: notifier,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// WithLogger replaces the worker's logger.
func (w *Worker) WithLogger(logger *slog.Logger) *Worker {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("reminder iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single follow_up job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("reminder failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var p payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	view, found, err := w.store.GetInteractionView(p.InteractionID)
	if err != nil {
		return fmt.Errorf("loading interaction %d: %w", p.InteractionID, err)
	}
	if !found {
		w.logger.Debug("dropping reminder for deleted interaction", "interaction_id", p.InteractionID)
		return nil
	}
	if view.NextFollowUpAt == nil || view.NextFollowUpAt.UnixMilli() != p.At {
		w.logger.Debug("dropping stale reminder", "interaction_id", p.InteractionID)
		return nil
	}

	if err := w.notifier.Notify(ctx, view); err != nil {
		return fmt.Errorf("notifying: %w", err)
	}
	return nil
}
