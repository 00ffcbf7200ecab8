package csvcodec

import "strings"

// record is one parsed CSV row and the 1-based line it started on.
type record struct {
	line   int
	fields []string
}

// parseRecords splits text into records. Quoted fields may contain commas,
// doubled quotes and line breaks. A record ends at "\n", "\r\n" or a lone
// "\r" outside quotes. Blank lines produce no record.
func parseRecords(text string) []record {
	var (
		records []record
		fields  []string
		field   strings.Builder
		inQuote bool
		quoted  bool // current field opened with a quote
		line    = 1
		start   = 1
	)

	endField := func() {
		fields = append(fields, field.String())
		field.Reset()
		quoted = false
	}
	endRecord := func() {
		endField()
		if len(fields) == 1 && fields[0] == "" {
			fields = nil
			return
		}
		records = append(records, record{line: start, fields: fields})
		fields = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuote {
			switch {
			case c == '"' && i+1 < len(text) && text[i+1] == '"':
				field.WriteByte('"')
				i++
			case c == '"':
				inQuote = false
			default:
				if c == '\n' || (c == '\r' && (i+1 >= len(text) || text[i+1] != '\n')) {
					line++
				}
				field.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			if field.Len() == 0 && !quoted {
				inQuote = true
				quoted = true
			} else {
				field.WriteByte(c)
			}
		case ',':
			endField()
		case '\r', '\n':
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRecord()
			line++
			start = line
		default:
			field.WriteByte(c)
		}
	}

	if field.Len() > 0 || len(fields) > 0 || quoted {
		endRecord()
	}
	return records
}

// needsQuote reports whether s must be wrapped in quotes to survive a
// round trip.
func needsQuote(s string) bool {
	return strings.ContainsAny(s, ",\"\n\r")
}

// escape quotes s only when needsQuote says so.
func escape(s string) string {
	if !needsQuote(s) {
		return s
	}
	return quote(s)
}

// quote unconditionally wraps s in quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
