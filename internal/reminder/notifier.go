package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/prospect/internal/storage"
)

// Notifier delivers reminders to the user.
type Notifier interface {
	// Notify reports that one interaction's follow-up is due.
	Notify(ctx context.Context, due storage.InteractionView) error
	// Digest reports every interaction due at now.
	Digest(ctx context.Context, due []storage.InteractionView, now time.Time) error
}

// LogNotifier writes reminders to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) Notify(ctx context.Context, due storage.InteractionView) error {
	n.logger().InfoContext(ctx, "follow-up due",
		"interaction_id", due.ID,
		"contact", due.ContactName(),
		"company", due.CompanyName,
		"what", due.WhatType,
		"note", due.FollowUpNote,
	)
	return nil
}

func (n LogNotifier) Digest(ctx context.Context, due []storage.InteractionView, now time.Time) error {
	n.logger().InfoContext(ctx, "follow-up digest", "due", len(due), "at", now)
	return nil
}

// WriterNotifier prints human-readable reminder lines to W.
type WriterNotifier struct {
	W        io.Writer
	Location *time.Location

	mu sync.Mutex
}

// NewWriterNotifier returns a WriterNotifier formatting times in loc
// (time.Local when nil).
func NewWriterNotifier(w io.Writer, loc *time.Location) *WriterNotifier {
	if loc == nil {
		loc = time.Local
	}
	return &WriterNotifier{W: w, Location: loc}
}

func (n *WriterNotifier) Notify(_ context.Context, due storage.InteractionView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.W, "Follow up with %s: %s\n", describe(due), due.FollowUpNote)
	return err
}

func (n *WriterNotifier) Digest(_ context.Context, due []storage.InteractionView, now time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.W, "%d follow-up(s) due as of %s\n", len(due), now.In(n.Location).Format("2006-01-02 15:04")); err != nil {
		return err
	}
	for _, v := range due {
		when := ""
		if v.NextFollowUpAt != nil {
			when = v.NextFollowUpAt.In(n.Location).Format("2006-01-02 15:04")
		}
		if _, err := fmt.Fprintf(n.W, "  %s  %s  %s\n", when, describe(v), v.FollowUpNote); err != nil {
			return err
		}
	}
	return nil
}

func describe(v storage.InteractionView) string {
	name := v.ContactName()
	if name == "" {
		name = fmt.Sprintf("contact #%d", v.ContactID)
	}
	if v.CompanyName != "" {
		name += " (" + v.CompanyName + ")"
	}
	return fmt.Sprintf("%s [%s]", name, v.WhatType)
}
