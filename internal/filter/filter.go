// Package filter selects the messages that fall inside the recency window and
// puts them in delivery order.
package filter

import (
	"time"

	"github.com/edgard/kakeibo/internal/domain/model"
)

// Window is the trailing span excluded from "now" to form the threshold.
type Window struct {
	Days    int
	Hours   int
	Minutes int
}

// Duration returns the total span covered by the window.
func (w Window) Duration() time.Duration {
	return time.Duration(w.Days)*24*time.Hour +
		time.Duration(w.Hours)*time.Hour +
		time.Duration(w.Minutes)*time.Minute
}

// Threshold returns ref minus the window as whole epoch seconds.
// The sub-second part of ref is dropped.
func (w Window) Threshold(ref time.Time) float64 {
	return float64(ref.Add(-w.Duration()).Unix())
}

// Recent keeps the messages strictly newer than threshold, in input order.
// A message exactly at the threshold is dropped.
func Recent(msgs []model.Message, threshold float64) []model.Message {
	kept := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Timestamp > threshold {
			kept = append(kept, m)
		}
	}
	return kept
}

// Reverse returns a reversed copy of msgs.
func Reverse(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

// Apply filters msgs against threshold and reverses the survivors, turning
// the API's newest-first order into oldest-first.
func Apply(msgs []model.Message, threshold float64) []model.Message {
	return Reverse(Recent(msgs, threshold))
}
