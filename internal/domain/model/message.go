// Package model contains the core domain entities for the relay.
// These models are independent of the history API and the notification sinks.
package model

import "strconv"

// Message is a single channel message as returned by the history API.
// Timestamp is epoch seconds and may carry sub-second precision.
type Message struct {
	Timestamp float64
	Text      string
}

// FormatTimestamp renders ts as the shortest decimal that round-trips,
// so 12345.0 becomes "12345".
func FormatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// TimestampString is FormatTimestamp(m.Timestamp).
func (m Message) TimestampString() string {
	return FormatTimestamp(m.Timestamp)
}
