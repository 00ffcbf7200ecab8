package repository

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/prospect/internal/csvcodec"
	"github.com/kalambet/prospect/internal/storage"
)

// ObserveAll streams every event, earliest start first.
func (r *Repository) ObserveAll() (storage.Subscription[storage.Event], error) {
	return r.store.WatchEvents(storage.StartAscending)
}

// ObserveForDay streams events starting in [startOfDay, endOfDay).
func (r *Repository) ObserveForDay(startOfDay, endOfDay time.Time) (storage.Subscription[storage.Event], error) {
	return r.store.WatchEventsInRange(startOfDay, endOfDay)
}

// DayWindow returns [local midnight of t's date, next local midnight) in t's
// location. The window is 23 or 25 hours long across DST changes.
func DayWindow(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	loc := t.Location()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// Today is DayWindow of the clock's current time. It is computed on each
// call; nothing refreshes it at midnight.
func (r *Repository) Today() (start, end time.Time) {
	return DayWindow(r.clock.Now())
}

// ObserveToday streams today's events. The window is fixed at subscription
// time; subscribe again after a date rollover.
func (r *Repository) ObserveToday() (storage.Subscription[storage.Event], error) {
	return r.ObserveForDay(r.Today())
}

// TodayEvents returns today's events, earliest first.
func (r *Repository) TodayEvents() ([]storage.Event, error) {
	start, end := r.Today()
	return r.store.EventsInRange(start, end)
}

// Events returns every event in the given order.
func (r *Repository) Events(order storage.EventOrder) ([]storage.Event, error) {
	return r.store.AllEvents(order)
}

// Add persists e and returns its new id.
func (r *Repository) Add(e storage.Event) (int64, error) {
	return r.store.InsertEvent(e)
}

// Update replaces the stored event. Returns storage.ErrNotFound when e.ID
// does not exist.
func (r *Repository) Update(e storage.Event) error {
	return r.store.UpdateEvent(e)
}

func (r *Repository) DeleteByID(id int64) error {
	return r.store.DeleteEvent(id)
}

func (r *Repository) Get(id int64) (storage.Event, bool, error) {
	return r.store.GetEvent(id)
}

// Archive moves the event to the archive. A missing id is a no-op.
func (r *Repository) Archive(id int64) error {
	return r.setArchived(id, true)
}

// Unarchive moves the event back to the active list. A missing id is a no-op.
func (r *Repository) Unarchive(id int64) error {
	return r.setArchived(id, false)
}

func (r *Repository) setArchived(id int64, archived bool) error {
	e, found, err := r.store.GetEvent(id)
	if err != nil {
		return err
	}
	if !found || e.Archived == archived {
		return nil
	}
	e.Archived = archived
	if err := r.store.UpdateEvent(e); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Restore re-adds a deleted event snapshot under a fresh id.
func (r *Repository) Restore(snapshot storage.Event) (int64, error) {
	snapshot.ID = 0
	return r.store.InsertEvent(snapshot)
}

// Active drops archived events, keeping order.
func Active(events []storage.Event) []storage.Event {
	out := make([]storage.Event, 0, len(events))
	for _, e := range events {
		if !e.Archived {
			out = append(out, e)
		}
	}
	return out
}

// ArchiveFilter narrows the archive view. Zero values match everything.
type ArchiveFilter struct {
	// Query is matched case-insensitively against title, location and
	// description.
	Query string
	// From and To bound the local start date, both inclusive. Only the
	// calendar date of each is used.
	From, To time.Time
	// OldestFirst sorts by ascending start time; otherwise newest first.
	OldestFirst bool
}

// Match reports whether e passes the text and date criteria. Dates are
// compared in loc.
func (f ArchiveFilter) Match(e storage.Event, loc *time.Location) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hit := false
		for _, s := range []string{e.Title, e.Location, e.Description} {
			if strings.Contains(strings.ToLower(s), q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	day := dateOf(e.StartTime.In(loc))
	if !f.From.IsZero() && day.Before(dateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(dateOf(f.To)) {
		return false
	}
	return true
}

// Apply filters archived events from events and sorts them.
func (f ArchiveFilter) Apply(events []storage.Event, loc *time.Location) []storage.Event {
	out := []storage.Event{}
	for _, e := range events {
		if e.Archived && f.Match(e, loc) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.OldestFirst {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// dateOf strips the clock time, keeping the calendar date as UTC midnight so
// dates from different zones compare by their wall-clock date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Archived returns archived events matching f, with dates compared in the
// clock's time zone.
func (r *Repository) Archived(f ArchiveFilter) ([]storage.Event, error) {
	all, err := r.store.AllEvents(storage.StartAscending)
	if err != nil {
		return nil, err
	}
	return f.Apply(all, r.Location()), nil
}

// ImportOptions controls ImportEvents.
type ImportOptions struct {
	// MarkArchived files every imported event into the archive.
	MarkArchived bool
}

// ImportReport summarizes an import.
type ImportReport struct {
	IDs     []int64
	Skipped []csvcodec.RowError
}

// ImportEvents decodes CSV from rd and inserts every usable row under a new
// id. Rows are inserted one at a time; on a storage failure the events
// inserted so far remain.
func (r *Repository) ImportEvents(rd io.Reader, opts ImportOptions) (ImportReport, error) {
	res, err := r.codec.Read(rd)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{IDs: make([]int64, 0, len(res.Events)), Skipped: res.Skipped}
	for _, e := range res.Events {
		e.ID = 0
		if opts.MarkArchived {
			e.Archived = true
		}
		id, err := r.store.InsertEvent(e)
		if err != nil {
			return report, fmt.Errorf("importing %q: %w", e.Title, err)
		}
		report.IDs = append(report.IDs, id)
	}
	for _, s := range res.Skipped {
		r.logger.Warn("csv row skipped", "line", s.Line, "error", s.Err)
	}
	return report, nil
}

// ExportEvents writes events as CSV to w.
func (r *Repository) ExportEvents(w io.Writer, events []storage.Event) error {
	return r.codec.Write(w, events)
}
