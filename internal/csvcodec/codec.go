// Package csvcodec converts Events to and from CSV text.
//
// Two header layouts are understood on input:
//
//	id,title,description,location,start,end
//	id,title,description,location,start,end,archived
//
// Output always uses the first. Dates are written as "yyyy-MM-dd HH:mm" in the
// codec's location, so seconds are not preserved.
package csvcodec

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/prospect/internal/storage"
)

// DateLayout is the fixed local-time pattern used for start and end columns.
const DateLayout = "2006-01-02 15:04"

// minColumns is the number of columns a data row needs to be imported.
const minColumns = 6

var (
	currentHeader = []string{"id", "title", "description", "location", "start", "end"}
	legacyHeader  = []string{"id", "title", "description", "location", "start", "end", "archived"}
)

// ErrMalformedRow marks a data row that was skipped during decoding.
var ErrMalformedRow = errors.New("malformed row")

// RowError describes a skipped row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result holds the events decoded from a CSV document and the rows that
// could not be used.
type Result struct {
	Events  []storage.Event
	Skipped []RowError
}

// Codec encodes and decodes Events with dates in a fixed location.
type Codec struct {
	loc *time.Location
}

// New returns a Codec for loc. A nil loc means time.Local.
func New(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.Local
	}
	return &Codec{loc: loc}
}

// Location returns the time zone dates are rendered and parsed in.
func (c *Codec) Location() *time.Location {
	return c.loc
}

// EventsToCSV encodes events with dates in the system time zone.
func EventsToCSV(events []storage.Event) string {
	return New(time.Local).Encode(events)
}

// CSVToEvents decodes text with dates in the system time zone, dropping
// malformed rows.
func CSVToEvents(text string) []storage.Event {
	return New(time.Local).Decode(text).Events
}

// Encode renders events under the current six-column header.
func (c *Codec) Encode(events []storage.Event) string {
	var b strings.Builder
	b.WriteString(strings.Join(currentHeader, ","))
	b.WriteByte('\n')
	for _, e := range events {
		end := ""
		if e.EndTime != nil {
			end = c.formatTime(*e.EndTime)
		}
		b.WriteString(strconv.FormatInt(e.ID, 10))
		for _, f := range []string{escape(e.Title), escape(e.Description), escape(e.Location), c.formatTime(e.StartTime), end} {
			b.WriteByte(',')
			b.WriteString(f)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Write encodes events to w.
func (c *Codec) Write(w io.Writer, events []storage.Event) error {
	if _, err := io.WriteString(w, c.Encode(events)); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// Read decodes everything from r. Only I/O failures are returned as errors;
// unusable rows are reported in Result.Skipped.
func (c *Codec) Read(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("reading csv: %w", err)
	}
	return c.Decode(string(data)), nil
}

// Decode parses text. When the first row is not one of the known headers
// (compared case- and whitespace-insensitively) every row is treated as data.
// The archived column is honoured unless the document carries the current
// six-column header.
func (c *Codec) Decode(text string) Result {
	res := Result{Events: []storage.Event{}}

	records := parseRecords(text)
	withArchived := true
	if len(records) > 0 {
		switch {
		case matchesHeader(records[0].fields, currentHeader):
			withArchived = false
			records = records[1:]
		case matchesHeader(records[0].fields, legacyHeader):
			records = records[1:]
		}
	}

	for _, rec := range records {
		e, err := c.decodeRow(rec.fields, withArchived)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: rec.line, Err: err})
			continue
		}
		res.Events = append(res.Events, e)
	}
	return res
}

func (c *Codec) decodeRow(fields []string, withArchived bool) (storage.Event, error) {
	if len(fields) < minColumns {
		return storage.Event{}, fmt.Errorf("%w: %d columns, need %d", ErrMalformedRow, len(fields), minColumns)
	}

	start, ok := c.parseTime(fields[4])
	if !ok {
		return storage.Event{}, fmt.Errorf("%w: unparsable start %q", ErrMalformedRow, fields[4])
	}

	e := storage.Event{
		Title:       fields[1],
		Description: fields[2],
		Location:    fields[3],
		StartTime:   start,
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64); err == nil {
		e.ID = id
	}
	if end, ok := c.parseTime(fields[5]); ok {
		e.EndTime = &end
	}
	if withArchived && len(fields) > 6 {
		if v, err := strconv.ParseBool(strings.TrimSpace(fields[6])); err == nil {
			e.Archived = v
		}
	}
	return e, nil
}

func (c *Codec) formatTime(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// parseTime tries, in order: epoch milliseconds, DateLayout, ISO-8601 local
// date-time, ISO-8601 with offset. Blank input never parses.
func (c *Codec) parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(c.loc), true
	}
	for _, layout := range []string{DateLayout, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func matchesHeader(fields, header []string) bool {
	if len(fields) != len(header) {
		return false
	}
	for i, f := range fields {
		if normalize(f) != header[i] {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
