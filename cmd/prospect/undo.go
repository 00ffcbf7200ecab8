package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/prospect/internal/storage"
)

const undoFile = "undo.yaml"

// undoEvent is the on-disk form of a deleted event. The id is not kept;
// restored events get a fresh one.
type undoEvent struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description,omitempty"`
	Location    string     `yaml:"location,omitempty"`
	Start       time.Time  `yaml:"start"`
	End         *time.Time `yaml:"end,omitempty"`
	CreatedAt   time.Time  `yaml:"created_at"`
	Archived    bool       `yaml:"archived,omitempty"`
}

type undoRecord struct {
	DeletedAt time.Time   `yaml:"deleted_at"`
	Events    []undoEvent `yaml:"events"`
}

// saveUndo replaces the undo snapshot in dataDir with events.
func saveUndo(dataDir string, events []storage.Event) error {
	rec := undoRecord{DeletedAt: time.Now().UTC()}
	for _, e := range events {
		rec.Events = append(rec.Events, undoEvent{
			Title:       e.Title,
			Description: e.Description,
			Location:    e.Location,
			Start:       e.StartTime,
			End:         e.EndTime,
			CreatedAt:   e.CreatedAt,
			Archived:    e.Archived,
		})
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding undo snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(dataDir, undoFile), data, 0o600)
}

// loadUndo returns the saved snapshot, or nil when there is none.
func loadUndo(dataDir string) ([]storage.Event, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, undoFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading undo snapshot: %w", err)
	}
	var rec undoRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing undo snapshot: %w", err)
	}
	events := make([]storage.Event, 0, len(rec.Events))
	for _, u := range rec.Events {
		events = append(events, storage.Event{
			Title:       u.Title,
			Description: u.Description,
			Location:    u.Location,
			StartTime:   u.Start,
			EndTime:     u.End,
			CreatedAt:   u.CreatedAt,
			Archived:    u.Archived,
		})
	}
	return events, nil
}

func clearUndo(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, undoFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
