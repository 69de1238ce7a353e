package geo

import (
	"math"
	"unicode/utf8"

	"github.com/OCAP2/annotator/internal/model/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// HitTolerance is added to half the stroke width when picking lines.
const HitTolerance = 3.0

// textAdvance approximates glyph advance as a fraction of the font size.
const textAdvance = 0.6

// Rect is an axis-aligned box.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Bounds returns the box a shape occupies, including its stroke.
func Bounds(k core.Kind, g core.Geometry) Rect {
	switch k {
	case core.KindArrow, core.KindPath:
		if len(g.Points) < 2 {
			return Rect{X: g.X, Y: g.Y}
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for i := 0; i+1 < len(g.Points); i += 2 {
			minX = math.Min(minX, g.Points[i])
			maxX = math.Max(maxX, g.Points[i])
			minY = math.Min(minY, g.Points[i+1])
			maxY = math.Max(maxY, g.Points[i+1])
		}
		pad := g.StrokeWidth / 2
		if k == core.KindArrow {
			pad = math.Max(pad, g.PointerWidth/2)
		}
		return Rect{
			X:      g.X + minX - pad,
			Y:      g.Y + minY - pad,
			Width:  maxX - minX + 2*pad,
			Height: maxY - minY + 2*pad,
		}
	case core.KindText:
		w := g.Width
		if w <= 0 {
			w = float64(utf8.RuneCountInString(g.Text)) * g.FontSize * textAdvance
		}
		h := g.Height
		if h <= 0 {
			h = g.FontSize
		}
		return Rect{X: g.X, Y: g.Y, Width: w, Height: h}
	case core.KindRectStroke:
		n := Normalize(g)
		pad := n.StrokeWidth / 2
		return Rect{X: n.X - pad, Y: n.Y - pad, Width: n.Width + 2*pad, Height: n.Height + 2*pad}
	case core.KindRectFill:
		n := Normalize(g)
		return Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
	default:
		return Rect{}
	}
}

// Hit reports whether the point (x, y) picks the shape. Lines are picked by
// distance to their segments, everything else by its bounds.
func Hit(k core.Kind, g core.Geometry, x, y float64) bool {
	switch k {
	case core.KindArrow, core.KindPath:
		ls, err := LineString(g)
		if err != nil {
			return false
		}
		pt, err := geom.XY{X: x, Y: y}.AsPoint()
		if err != nil {
			return false
		}
		d, ok := geom.Distance(ls.AsGeometry(), pt.AsGeometry())
		if !ok {
			return false
		}
		return d <= g.StrokeWidth/2+HitTolerance
	case core.KindText, core.KindRectStroke, core.KindRectFill:
		return Bounds(k, g).Contains(x, y)
	default:
		return false
	}
}
