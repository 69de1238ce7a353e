package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/annotator/internal/model/core"
)

// SCALING
// Annotations are stored in natural units (source media pixels). Anything
// drawn on screen lives in render units, which are natural units multiplied
// by the current scale factor. The conversion below is the only place the
// two meet.

// ErrDegenerateScale is returned when a scale factor is zero, negative or not finite.
// Callers treat it as a no-op.
var ErrDegenerateScale = errors.New("degenerate scale factor")

// ErrUnknownKind is returned for geometry of an unrecognised annotation kind.
var ErrUnknownKind = errors.New("unknown annotation kind")

// MinRenderPixel is the smallest stroke width or font size ever drawn.
const MinRenderPixel = 1.0

// ValidScale reports whether s can be used for conversion.
func ValidScale(s float64) bool {
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}

// ScaleFactor returns render/natural width, failing when the natural width is unusable.
func ScaleFactor(naturalWidth, renderWidth float64) (float64, error) {
	if !(naturalWidth > 0) {
		return 0, fmt.Errorf("%w: natural width %v", ErrDegenerateScale, naturalWidth)
	}
	s := renderWidth / naturalWidth
	if !ValidScale(s) {
		return 0, fmt.Errorf("%w: %v", ErrDegenerateScale, s)
	}
	return s, nil
}

// FitScale returns the factor that fits natural dimensions inside the given
// box without ever enlarging, plus the resulting floored render size.
func FitScale(natural, box core.Size) (float64, core.Size, error) {
	if natural.Empty() {
		return 0, core.Size{}, fmt.Errorf("%w: natural size %vx%v", ErrDegenerateScale, natural.Width, natural.Height)
	}
	ratio := math.Min(math.Min(box.Width/natural.Width, box.Height/natural.Height), 1)
	if !ValidScale(ratio) {
		return 0, core.Size{}, fmt.Errorf("%w: box %vx%v", ErrDegenerateScale, box.Width, box.Height)
	}
	render := core.Size{
		Width:  math.Floor(natural.Width * ratio),
		Height: math.Floor(natural.Height * ratio),
	}
	if render.Empty() {
		return 0, core.Size{}, fmt.Errorf("%w: render size %vx%v", ErrDegenerateScale, render.Width, render.Height)
	}
	// The render width is floored, so the effective factor is recomputed from it.
	return render.Width / natural.Width, render, nil
}

// ToRender converts natural geometry to render geometry at scale s.
// Stroke width and font size never drop below MinRenderPixel.
func ToRender(k core.Kind, natural core.Geometry, s float64) (core.Geometry, error) {
	if !ValidScale(s) {
		return core.Geometry{}, fmt.Errorf("%w: %v", ErrDegenerateScale, s)
	}
	out, err := scale(k, natural, s)
	if err != nil {
		return core.Geometry{}, err
	}
	switch k {
	case core.KindArrow, core.KindPath, core.KindRectStroke:
		out.StrokeWidth = math.Max(MinRenderPixel, out.StrokeWidth)
	case core.KindText:
		out.FontSize = math.Max(MinRenderPixel, out.FontSize)
	case core.KindRectFill:
	}
	return out, nil
}

// ToNatural converts render geometry back to natural units at scale s.
func ToNatural(k core.Kind, render core.Geometry, s float64) (core.Geometry, error) {
	if !ValidScale(s) {
		return core.Geometry{}, fmt.Errorf("%w: %v", ErrDegenerateScale, s)
	}
	return scale(k, render, 1/s)
}

func scale(k core.Kind, g core.Geometry, f float64) (core.Geometry, error) {
	out := g.Clone()
	out.X *= f
	out.Y *= f
	switch k {
	case core.KindArrow:
		scalePoints(out.Points, f)
		out.StrokeWidth *= f
		out.PointerLength *= f
		out.PointerWidth *= f
	case core.KindPath:
		scalePoints(out.Points, f)
		out.StrokeWidth *= f
	case core.KindText:
		out.FontSize *= f
		out.Width *= f
		out.Height *= f
	case core.KindRectStroke:
		out.Width *= f
		out.Height *= f
		out.StrokeWidth *= f
	case core.KindRectFill:
		out.Width *= f
		out.Height *= f
	default:
		return core.Geometry{}, fmt.Errorf("%w: %v", ErrUnknownKind, k)
	}
	return out, nil
}

func scalePoints(points []float64, f float64) {
	for i := range points {
		points[i] *= f
	}
}

// Normalize folds a negative rectangle width or height into its position.
func Normalize(g core.Geometry) core.Geometry {
	out := g.Clone()
	if out.Width < 0 {
		out.X += out.Width
		out.Width = -out.Width
	}
	if out.Height < 0 {
		out.Y += out.Height
		out.Height = -out.Height
	}
	return out
}

// Translate moves a shape by (dx, dy).
func Translate(g core.Geometry, dx, dy float64) core.Geometry {
	out := g.Clone()
	out.X += dx
	out.Y += dy
	return out
}

// Resize bakes a transform handle scale (sx, sy) into the geometry,
// anchored at the shape origin. Stroke widths are left untouched. Text
// scales its font by the larger of the two factors.
func Resize(k core.Kind, g core.Geometry, sx, sy float64) (core.Geometry, error) {
	if !ValidScale(sx) || !ValidScale(sy) {
		return core.Geometry{}, fmt.Errorf("%w: %vx%v", ErrDegenerateScale, sx, sy)
	}
	out := g.Clone()
	switch k {
	case core.KindArrow, core.KindPath:
		for i := 0; i+1 < len(out.Points); i += 2 {
			out.Points[i] *= sx
			out.Points[i+1] *= sy
		}
	case core.KindText:
		out.FontSize *= math.Max(sx, sy)
		out.Width *= sx
		out.Height *= sy
	case core.KindRectStroke, core.KindRectFill:
		out.Width *= sx
		out.Height *= sy
	default:
		return core.Geometry{}, fmt.Errorf("%w: %v", ErrUnknownKind, k)
	}
	return out, nil
}
