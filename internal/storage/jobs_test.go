package storage

import (
	"errors"
	"testing"
	"time"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func openClockedStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: at(9, 0)}
	return openTestStore(t, WithClock(clock.Now)), clock
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s, _ := openClockedStore(t)

	job := Job{
		ID:          "j-claim-1",
		Type:        "follow_up",
		RefKey:      "interaction:1",
		PayloadJSON: `{"interaction_id":1}`,
	}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"follow_up"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" {
		t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
	}
	if got.RefKey != "interaction:1" {
		t.Errorf("RefKey = %q, want %q", got.RefKey, "interaction:1")
	}
	if got.PayloadJSON != `{"interaction_id":1}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want %q", got.Status, "running")
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
	if !got.RunAfter.Equal(at(9, 0)) {
		t.Errorf("RunAfter = %v, want %v", got.RunAfter, at(9, 0))
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s, _ := openClockedStore(t)

	got, err := s.ClaimNextJob([]string{"follow_up"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}

	got, err = s.ClaimNextJob(nil)
	if err != nil || got != nil {
		t.Errorf("ClaimNextJob(nil) = %+v, %v, want nil, nil", got, err)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s, clock := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-future", Type: "follow_up", RunAfter: at(10, 0)}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"follow_up"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}

	clock.now = at(10, 0)
	got, err = s.ClaimNextJob([]string{"follow_up"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil || got.ID != "j-future" {
		t.Errorf("claim at run_after = %+v, want j-future", got)
	}
}

func TestClaimNextJob_TypeFilter(t *testing.T) {
	s, _ := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-a", Type: "a"}); err != nil {
		t.Fatalf("EnqueueJob a: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "j-b", Type: "b"}); err != nil {
		t.Fatalf("EnqueueJob b: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"b"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil || got.Type != "b" {
		t.Errorf("claimed %+v, want type b", got)
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s, _ := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-first", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob first: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob first: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "j-second", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob second: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob second: %v", err)
	}
	if got == nil || got.ID != "j-second" {
		t.Errorf("claimed %+v, want j-second", got)
	}
}

func TestReplacePendingJob(t *testing.T) {
	s, _ := openClockedStore(t)

	first := Job{ID: "j-1", Type: "follow_up", RefKey: "interaction:7", RunAfter: at(12, 0)}
	if err := s.ReplacePendingJob(first); err != nil {
		t.Fatalf("ReplacePendingJob: %v", err)
	}
	second := Job{ID: "j-2", Type: "follow_up", RefKey: "interaction:7", RunAfter: at(15, 0)}
	if err := s.ReplacePendingJob(second); err != nil {
		t.Fatalf("ReplacePendingJob: %v", err)
	}
	other := Job{ID: "j-3", Type: "follow_up", RefKey: "interaction:8", RunAfter: at(13, 0)}
	if err := s.ReplacePendingJob(other); err != nil {
		t.Fatalf("ReplacePendingJob: %v", err)
	}

	pending, err := s.ListJobs("follow_up", "pending")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %+v, want 2 jobs", pending)
	}
	if pending[0].ID != "j-3" || pending[1].ID != "j-2" {
		t.Errorf("pending ids = %s, %s, want j-3, j-2", pending[0].ID, pending[1].ID)
	}
}

func TestCancelPendingJobs(t *testing.T) {
	s, _ := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-run", Type: "follow_up", RefKey: "interaction:1"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"follow_up"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "j-wait", Type: "follow_up", RefKey: "interaction:1"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	n, err := s.CancelPendingJobs("follow_up", "interaction:1")
	if err != nil {
		t.Fatalf("CancelPendingJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("cancelled %d, want 1", n)
	}

	all, err := s.ListJobs("follow_up", "")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 1 || all[0].ID != "j-run" {
		t.Errorf("remaining = %+v, want only the running job", all)
	}
}

func TestCompleteJob(t *testing.T) {
	s, _ := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-complete", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'j-complete'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want %q", status, "completed")
	}

	if err := s.CompleteJob("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_Backoff(t *testing.T) {
	s, _ := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-backoff", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-backoff", "retry"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	jobs, err := s.ListJobs("x", "pending")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("pending = %+v, want 1", jobs)
	}
	j := jobs[0]
	if j.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", j.Attempts)
	}
	if j.LastError != "retry" {
		t.Errorf("LastError = %q, want %q", j.LastError, "retry")
	}
	if want := at(9, 0).Add(2 * time.Second); !j.RunAfter.Equal(want) {
		t.Errorf("RunAfter = %v, want %v", j.RunAfter, want)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s, _ := openClockedStore(t)

	if err := s.EnqueueJob(Job{ID: "j-fail-max", Type: "x", MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	failed, err := s.ListJobs("x", "failed")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "j-fail-max" {
		t.Errorf("failed = %+v, want j-fail-max", failed)
	}

	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}
