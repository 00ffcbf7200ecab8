// Package repository is the single entry point for UI-facing commands and
// queries. It wraps the storage engine with domain-shaped operations, day
// windows, archive filtering, CSV import/export and follow-up scheduling.
package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/prospect/internal/csvcodec"
	"github.com/kalambet/prospect/internal/storage"
)

// Clock supplies the current time. The location of the returned time is the
// time zone used for day windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the process's local time zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler dispatches one-shot follow-up reminders. Schedule must be safe to
// call again for the same interaction with a new time.
type Scheduler interface {
	Schedule(ctx context.Context, interactionID int64, at time.Time) error
	Cancel(ctx context.Context, interactionID int64) error
}

type noopScheduler struct{}

func (noopScheduler) Schedule(context.Context, int64, time.Time) error { return nil }
func (noopScheduler) Cancel(context.Context, int64) error              { return nil }

// Repository translates domain operations into storage calls.
type Repository struct {
	store     *storage.Store
	clock     Clock
	scheduler Scheduler
	codec     *csvcodec.Codec
	logger    *slog.Logger
}

type Option func(*Repository)

func WithClock(c Clock) Option {
	return func(r *Repository) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithScheduler sets the reminder dispatcher. Without one, follow-ups are
// stored but never scheduled.
func WithScheduler(s Scheduler) Option {
	return func(r *Repository) {
		if s != nil {
			r.scheduler = s
		}
	}
}

// WithCodec sets the CSV codec used by ImportEvents and ExportEvents.
func WithCodec(c *csvcodec.Codec) Option {
	return func(r *Repository) {
		if c != nil {
			r.codec = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// New wraps store. The store stays owned by the caller.
func New(store *storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store:     store,
		clock:     SystemClock{},
		scheduler: noopScheduler{},
		codec:     csvcodec.New(nil),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the repository clock's current time.
func (r *Repository) Now() time.Time {
	return r.clock.Now()
}

// Location is the time zone of the repository clock.
func (r *Repository) Location() *time.Location {
	return r.clock.Now().Location()
}
