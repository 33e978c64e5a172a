package httpcore

import "time"

// rfc1123 is the wire format for Date/Last-Modified headers (GMT only).
const rfc1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

// iso8601 accepts and emits only the "+00:00" offset form, per spec.md §6.
const iso8601 = "2006-01-02T15:04:05+00:00"

// FormatRFC822 renders t in GMT using the RFC 1123 wire format.
func FormatRFC822(t time.Time) string {
	return t.UTC().Format(rfc1123)
}

// ParseRFC822 parses the RFC 1123 wire format (GMT).
func ParseRFC822(s string) (time.Time, error) {
	return time.Parse(rfc1123, s)
}

// FormatISO8601 renders t in GMT with the fixed "+00:00" offset.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(iso8601)
}

// ParseISO8601 parses the fixed "+00:00"-offset ISO-8601 form.
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse(iso8601, s)
}
