// Package reminder dispatches follow-up notifications for interactions.
//
// Scheduling goes through the storage job queue: Queue writes one pending
// follow_up job per interaction, Worker claims jobs as they come due and
// hands them to a Notifier, and Digest periodically reports everything that
// is currently due.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/prospect/internal/storage"
)

// JobType is the job queue type used for follow-up reminders.
const JobType = "follow_up"

// JobQueue is the subset of the storage job queue Queue needs.
type JobQueue interface {
	ReplacePendingJob(job storage.Job) error
	CancelPendingJobs(jobType, refKey string) (int, error)
}

type payload struct {
	InteractionID int64 `json:"interaction_id"`
	At            int64 `json:"at"`
}

// RefKey identifies the reminder of one interaction in the job queue.
func RefKey(interactionID int64) string {
	return fmt.Sprintf("interaction:%d", interactionID)
}

// Queue schedules one-shot reminders. Scheduling an interaction that already
// has a pending reminder replaces it.
type Queue struct {
	jobs        JobQueue
	maxAttempts int
}

// NewQueue returns a Queue writing to jobs. maxAttempts <= 0 keeps the
// queue's default.
func NewQueue(jobs JobQueue, maxAttempts int) *Queue {
	return &Queue{jobs: jobs, maxAttempts: maxAttempts}
}

// Schedule arranges a reminder for interactionID at at.
func (q *Queue) Schedule(ctx context.Context, interactionID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload{InteractionID: interactionID, At: at.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encoding reminder payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		RefKey:      RefKey(interactionID),
		PayloadJSON: string(body),
		MaxAttempts: q.maxAttempts,
		RunAfter:    at,
	}
	if err := q.jobs.ReplacePendingJob(job); err != nil {
		return fmt.Errorf("scheduling reminder for interaction %d: %w", interactionID, err)
	}
	return nil
}

// Cancel drops the pending reminder of interactionID, if any.
func (q *Queue) Cancel(ctx context.Context, interactionID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := q.jobs.CancelPendingJobs(JobType, RefKey(interactionID)); err != nil {
		return fmt.Errorf("cancelling reminder for interaction %d: %w", interactionID, err)
	}
	return nil
}
