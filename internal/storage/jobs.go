package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

const jobColumns = `id, type, ref_key, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`

func scanJob(r rowScanner) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt int64
	var lastError sql.NullString
	if err := r.Scan(&j.ID, &j.Type, &j.RefKey, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError); err != nil {
		return Job{}, err
	}
	j.RunAfter = fromMillis(runAfter)
	j.CreatedAt = fromMillis(createdAt)
	j.UpdatedAt = fromMillis(updatedAt)
	j.LastError = lastError.String
	return j, nil
}

func (s *Store) insertJob(q querier, job Job) error {
	now := s.now().UnixMilli()
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UnixMilli()
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	payload := job.PayloadJSON
	if payload == "" {
		payload = "{}"
	}
	_, err := q.ExecContext(context.Background(), `
		INSERT INTO jobs (id, type, ref_key, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.RefKey, payload, maxAttempts, runAfter, now, now,
	)
	return err
}

// EnqueueJob adds a pending job. A zero RunAfter means "now".
func (s *Store) EnqueueJob(job Job) error {
	return s.insertJob(s.db, job)
}

// ReplacePendingJob enqueues job after removing any pending job with the same
// type and ref key, so re-scheduling the same target is idempotent.
func (s *Store) ReplacePendingJob(job Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM jobs WHERE type = ? AND ref_key = ? AND status = 'pending'`, job.Type, job.RefKey); err != nil {
		return fmt.Errorf("removing pending jobs: %w", err)
	}
	if err := s.insertJob(tx, job); err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return tx.Commit()
}

// CancelPendingJobs deletes pending jobs of jobType for refKey and returns
// how many were removed.
func (s *Store) CancelPendingJobs(jobType, refKey string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE type = ? AND ref_key = ? AND status = 'pending'`, jobType, refKey)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListJobs returns jobs of jobType, optionally restricted to status, ordered
// by run_after.
func (s *Store) ListJobs(jobType, status string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE type = ?`
	args := []any{jobType}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY run_after ASC, created_at ASC`
	return collect(s.db, scanJob, query, args...)
}

func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := s.now().UnixMilli()
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	j, err := scanJob(tx.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.UpdatedAt = fromMillis(now)
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, s.now().UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records a failed attempt. The job returns to pending with an
// exponential backoff until max_attempts is reached, then it is marked failed.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := s.now()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.UnixMilli(), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.UnixMilli(), now.UnixMilli(), id)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}
