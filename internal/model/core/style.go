// internal/model/core/style.go
package core

import "math"

// Style is the colour and stroke width chosen in the UI, in natural units.
// A zero Width means the kind has no adjustable width.
type Style struct {
	Color string
	Width float64
}

const (
	minFontSize     = 16
	fontPerWidth    = 3
	fontPadding     = 4
	minPointerSize  = 8
	pointerPerWidth = 2
)

// FontSizeFor returns the text size used for a given stroke width.
func FontSizeFor(width float64) float64 {
	return math.Max(minFontSize, fontPerWidth*width+fontPadding)
}

// PointerSizeFor returns the arrow head length and width for a stroke width.
func PointerSizeFor(width float64) float64 {
	return math.Max(minPointerSize, pointerPerWidth*width)
}

// ApplyStyle writes style into the natural-unit geometry of a shape of kind k.
func ApplyStyle(k Kind, g Geometry, s Style) Geometry {
	out := g.Clone()
	switch k {
	case KindArrow:
		out.Stroke = s.Color
		out.Fill = s.Color
		out.StrokeWidth = s.Width
		out.PointerLength = PointerSizeFor(s.Width)
		out.PointerWidth = PointerSizeFor(s.Width)
	case KindPath:
		out.Stroke = s.Color
		out.StrokeWidth = s.Width
	case KindText:
		out.Fill = s.Color
		out.FontSize = FontSizeFor(s.Width)
	case KindRectStroke:
		out.Stroke = s.Color
		out.StrokeWidth = s.Width
	case KindRectFill:
		out.Fill = s.Color
	}
	return out
}

// StyleOf derives the UI style from a shape's natural-unit geometry.
func StyleOf(k Kind, g Geometry) Style {
	switch k {
	case KindArrow, KindPath, KindRectStroke:
		return Style{Color: g.Stroke, Width: g.StrokeWidth}
	case KindText:
		w := math.Round((g.FontSize - fontPadding) / fontPerWidth)
		return Style{Color: g.Fill, Width: math.Max(1, w)}
	case KindRectFill:
		return Style{Color: g.Fill}
	default:
		return Style{}
	}
}
