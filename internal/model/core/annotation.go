// internal/model/core/annotation.go
package core

import "math"

// Window is the half-open interval [StartTime, StartTime+DurationSeconds)
// during which a video annotation is shown.
type Window struct {
	StartTime       float64
	DurationSeconds float64
}

// End returns the exclusive end of the window.
func (w Window) End() float64 {
	return w.StartTime + w.DurationSeconds
}

// NewWindow builds a window starting at the floored session time.
// Negative times clamp to zero.
func NewWindow(t, duration float64) Window {
	start := math.Floor(t)
	if start < 0 || math.IsNaN(start) {
		start = 0
	}
	return Window{StartTime: start, DurationSeconds: duration}
}

// Annotation is one user-drawn mark. Geometry is always in natural units.
type Annotation struct {
	ID       string
	Kind     Kind
	Geometry Geometry

	// Window is set for video annotations only.
	Window *Window

	// Time is the single anchor instant carried by older exports.
	Time *float64
}

// Clone returns a deep copy of a.
func (a Annotation) Clone() Annotation {
	out := a
	out.Geometry = a.Geometry.Clone()
	if a.Window != nil {
		w := *a.Window
		out.Window = &w
	}
	if a.Time != nil {
		t := *a.Time
		out.Time = &t
	}
	return out
}
