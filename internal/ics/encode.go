// Package ics renders Events as an iCalendar document for calendar apps.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/kalambet/prospect/internal/storage"
)

const defaultProductID = "-//prospect//events//EN"

// Options controls calendar-level fields.
type Options struct {
	// Now is written as DTSTAMP. Zero means time.Now.
	Now time.Time
	// ProductID overrides PRODID.
	ProductID string
}

// UID returns the stable iCalendar UID of an event.
func UID(id int64) string {
	return fmt.Sprintf("event-%d@prospect", id)
}

// Encode writes events as a VCALENDAR with one VEVENT each. Times are
// written in UTC.
func Encode(w io.Writer, events []storage.Event, opts Options) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	prodID := opts.ProductID
	if prodID == "" {
		prodID = defaultProductID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, e := range events {
		ve := cal.AddEvent(UID(e.ID))
		ve.SetDtStampTime(now.UTC())
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		ve.SetStartAt(e.StartTime.UTC())
		if e.EndTime != nil {
			ve.SetEndAt(e.EndTime.UTC())
		}
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	return nil
}
