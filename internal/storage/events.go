package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const tableEvents = "events"

var events = table[Event]{
	name:      tableEvents,
	columns:   []string{"title", "description", "location", "start_time", "end_time", "created_at", "archived"},
	immutable: map[string]bool{"created_at": true},
	values: func(e Event) []any {
		return []any{e.Title, e.Description, e.Location, e.StartTime.UnixMilli(), nullMillis(e.EndTime), e.CreatedAt.UnixMilli(), boolInt(e.Archived)}
	},
	scan: scanEvent,
}

func scanEvent(r rowScanner) (Event, error) {
	var e Event
	var start, created int64
	var end sql.NullInt64
	var archived int
	if err := r.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &start, &end, &created, &archived); err != nil {
		return Event{}, err
	}
	e.StartTime = fromMillis(start)
	e.EndTime = timePtr(end)
	e.CreatedAt = fromMillis(created)
	e.Archived = archived != 0
	return e, nil
}

// InsertEvent persists e under a newly assigned id and returns it. e.ID is
// ignored. CreatedAt is stamped from the store clock when zero.
func (s *Store) InsertEvent(e Event) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	var id int64
	err := s.mutate(func(tx *sql.Tx) ([]string, error) {
		var err error
		id, err = events.insert(tx, e)
		return []string{tableEvents}, err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateEvent replaces every field of the stored event except its identity
// and creation time. Returns ErrNotFound if e.ID does not exist.
func (s *Store) UpdateEvent(e Event) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		return []string{tableEvents}, events.update(tx, e.ID, e)
	})
}

// DeleteEvent removes the event. Deleting a missing id is a no-op.
func (s *Store) DeleteEvent(id int64) error {
	return s.mutate(func(tx *sql.Tx) ([]string, error) {
		found, err := events.delete(tx, id)
		if err != nil || !found {
			return nil, err
		}
		return []string{tableEvents}, nil
	})
}

// GetEvent looks up an event by id. The boolean is false if it does not exist.
func (s *Store) GetEvent(id int64) (Event, bool, error) {
	var (
		e     Event
		found bool
	)
	err := s.read(func() error {
		var err error
		e, found, err = events.get(s.db, id)
		return err
	})
	return e, found, err
}

func (o EventOrder) clause() string {
	if o == StartDescending {
		return "start_time DESC, id DESC"
	}
	return "start_time ASC, id ASC"
}

func (s *Store) allEvents(order EventOrder) ([]Event, error) {
	return events.list(s.db, "", order.clause())
}

func (s *Store) eventsInRange(start, end time.Time) ([]Event, error) {
	return events.list(s.db, "start_time >= ? AND start_time < ?", "start_time ASC, id ASC", start.UnixMilli(), end.UnixMilli())
}

// AllEvents returns every event in the given order.
func (s *Store) AllEvents(order EventOrder) ([]Event, error) {
	var result []Event
	err := s.read(func() error {
		var err error
		result, err = s.allEvents(order)
		return err
	})
	return result, err
}

// EventsInRange returns events whose start time lies in [start, end),
// ascending by start time.
func (s *Store) EventsInRange(start, end time.Time) ([]Event, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s", end, start)
	}
	var result []Event
	err := s.read(func() error {
		var err error
		result, err = s.eventsInRange(start, end)
		return err
	})
	return result, err
}

// WatchEvents streams the full event list in the given order.
func (s *Store) WatchEvents(order EventOrder) (Subscription[Event], error) {
	return watch(s, []string{tableEvents}, func() ([]Event, error) {
		return s.allEvents(order)
	})
}

// WatchEventsInRange streams the events starting in [start, end).
func (s *Store) WatchEventsInRange(start, end time.Time) (Subscription[Event], error) {
	if end.Before(start) {
		return Subscription[Event]{}, fmt.Errorf("invalid range: end %s before start %s", end, start)
	}
	return watch(s, []string{tableEvents}, func() ([]Event, error) {
		return s.eventsInRange(start, end)
	})
}
