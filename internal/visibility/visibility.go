// Package visibility decides which annotations are shown at a given moment.
package visibility

import (
	"math"

	"github.com/OCAP2/annotator/internal/model/core"
)

const (
	DefaultThreshold = 0.25
	DefaultDuration  = 1.0
)

// Timestamp is either a playback position in seconds or the static
// sentinel used for still images.
type Timestamp struct {
	seconds float64
	static  bool
}

// Static returns the timestamp under which everything is visible.
func Static() Timestamp { return Timestamp{static: true} }

// At returns the playback position t.
func At(t float64) Timestamp { return Timestamp{seconds: t} }

func (ts Timestamp) IsStatic() bool   { return ts.static }
func (ts Timestamp) Seconds() float64 { return ts.seconds }

// Resolver evaluates annotation windows against a timestamp.
type Resolver struct {
	// Threshold is the tolerance around a single-instant time anchor.
	Threshold float64
	// DefaultDuration replaces missing or non-positive window durations.
	DefaultDuration float64
}

// New creates a Resolver, substituting defaults for non-positive values.
func New(threshold, defaultDuration float64) Resolver {
	if !(threshold > 0) {
		threshold = DefaultThreshold
	}
	if !(defaultDuration > 0) {
		defaultDuration = DefaultDuration
	}
	return Resolver{Threshold: threshold, DefaultDuration: defaultDuration}
}

// Visible reports whether a is shown at ts. Windows are half-open so a
// record is hidden exactly at start+duration. Video records carrying
// neither a window nor a time anchor are never shown.
func (r Resolver) Visible(a core.Annotation, ts Timestamp) bool {
	if ts.static {
		return true
	}
	t := ts.seconds
	if a.Window != nil {
		d := a.Window.DurationSeconds
		if !(d > 0) || math.IsInf(d, 0) {
			d = r.DefaultDuration
		}
		return a.Window.StartTime <= t && t < a.Window.StartTime+d
	}
	if a.Time != nil {
		return math.Abs(*a.Time-t) < r.Threshold
	}
	return false
}

// Resolve returns the ids of the records visible at ts.
func (r Resolver) Resolve(records []core.Annotation, ts Timestamp) map[string]struct{} {
	out := make(map[string]struct{}, len(records))
	for _, a := range records {
		if r.Visible(a, ts) {
			out[a.ID] = struct{}{}
		}
	}
	return out
}

// For returns Static for images and At(t) otherwise.
func For(m core.MediaType, t float64) Timestamp {
	if m == core.MediaVideo {
		return At(t)
	}
	return Static()
}
