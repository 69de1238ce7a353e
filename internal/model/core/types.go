// internal/model/core/types.go
package core

import "strings"

// MediaType identifies what is loaded underneath the annotations.
type MediaType int

const (
	MediaNone MediaType = iota
	MediaImage
	MediaVideo
)

func (m MediaType) String() string {
	switch m {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	default:
		return "none"
	}
}

// ParseMediaType maps "image"/"video" to a MediaType. Anything else is MediaNone.
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return MediaImage
	case "video":
		return MediaVideo
	default:
		return MediaNone
	}
}

// Geometry holds shape attributes. Field names follow the canvas
// attribute names so exported documents stay readable by older tooling.
// Points are flat x,y pairs relative to (X, Y).
type Geometry struct {
	X             float64
	Y             float64
	Width         float64
	Height        float64
	Points        []float64
	StrokeWidth   float64
	FontSize      float64
	PointerLength float64
	PointerWidth  float64
	Stroke        string
	Fill          string
	Text          string
}

// Clone returns a deep copy of g.
func (g Geometry) Clone() Geometry {
	out := g
	if g.Points != nil {
		out.Points = append([]float64(nil), g.Points...)
	}
	return out
}

// PointCount returns the number of complete x,y pairs.
func (g Geometry) PointCount() int {
	return len(g.Points) / 2
}

// Size is a pixel extent.
type Size struct {
	Width  float64
	Height float64
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return !(s.Width > 0) || !(s.Height > 0)
}
