package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kalambet/prospect/internal/storage"
)

// DueSource lists interactions whose follow-up has come due.
type DueSource interface {
	DueInteractions(by time.Time) ([]storage.Interaction, error)
	GetInteractionView(id int64) (storage.InteractionView, bool, error)
}

// Digest sends the due list to a Notifier on a cron schedule.
type Digest struct {
	source   DueSource
	notifier Notifier
	schedule string
	now      func() time.Time
	logger   *slog.Logger
}

// NewDigest validates schedule (standard five-field cron syntax, descriptors
// such as "@daily" allowed) and returns a Digest.
func NewDigest(source DueSource, notifier Notifier, schedule string) (*Digest, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parsing digest schedule %q: %w", schedule, err)
	}
	return &Digest{
		source:   source,
		notifier: notifier,
		schedule: schedule,
		now:      time.Now,
		logger:   slog.Default(),
	}, nil
}

// WithClock replaces the digest's time source.
func (d *Digest) WithClock(now func() time.Time) *Digest {
	if now != nil {
		d.now = now
	}
	return d
}

// WithLogger replaces the digest's logger.
func (d *Digest) WithLogger(logger *slog.Logger) *Digest {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// RunOnce collects everything due now and notifies. An empty due list sends
// nothing. It returns the number of due interactions.
func (d *Digest) RunOnce(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.source.DueInteractions(now)
	if err != nil {
		return 0, fmt.Errorf("listing due interactions: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	views := make([]storage.InteractionView, 0, len(due))
	for _, i := range due {
		v, found, err := d.source.GetInteractionView(i.ID)
		if err != nil {
			return 0, fmt.Errorf("loading interaction %d: %w", i.ID, err)
		}
		if found {
			views = append(views, v)
		}
	}

	if err := d.notifier.Digest(ctx, views, now); err != nil {
		return 0, fmt.Errorf("sending digest: %w", err)
	}
	return len(views), nil
}

// Run fires RunOnce on the schedule until ctx is cancelled, then waits for
// a running digest to finish.
func (d *Digest) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(d.schedule, func() {
		n, err := d.RunOnce(ctx)
		if err != nil {
			d.logger.Error("digest failed", "error", err)
			return
		}
		d.logger.Debug("digest sent", "due", n)
	})
	if err != nil {
		return fmt.Errorf("scheduling digest: %w", err)
	}

	c.Start()
	d.logger.Info("digest scheduled", "schedule", d.schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
