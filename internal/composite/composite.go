// Package composite flattens a media frame and the visible annotations
// into a single raster at the medium's natural resolution.
package composite

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/OCAP2/annotator/internal/geo"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/surface"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
)

// Compositor renders a scene over a frame.
type Compositor interface {
	// Composite draws scene, given in render units, onto frame scaled to
	// natural. The returned image is natural sized.
	Composite(ctx context.Context, frame image.Image, natural core.Size, scene surface.Scene) (image.Image, error)
}

// CompositeError reports a failed composite. Annotation state is never
// touched by compositing, so callers only need to surface it.
type CompositeError struct {
	Op  string
	Err error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("composite %s: %v", e.Op, e.Err)
}

func (e *CompositeError) Unwrap() error { return e.Err }

// GG is a Compositor backed by the gg software rasterizer.
type GG struct {
	fontOnce sync.Once
	font     *text.FontSource
	fontErr  error
}

// NewGG creates a compositor using the bundled Go Regular font for text.
func NewGG() *GG {
	return &GG{}
}

func (c *GG) fontSource() (*text.FontSource, error) {
	c.fontOnce.Do(func() {
		c.font, c.fontErr = text.NewFontSource(goregular.TTF)
	})
	return c.font, c.fontErr
}

func (c *GG) Composite(ctx context.Context, frame image.Image, natural core.Size, scene surface.Scene) (image.Image, error) {
	if natural.Empty() {
		return nil, &CompositeError{Op: "prepare", Err: fmt.Errorf("natural size %vx%v", natural.Width, natural.Height)}
	}
	if !geo.ValidScale(scene.Scale) {
		return nil, &CompositeError{Op: "prepare", Err: fmt.Errorf("%w: %v", geo.ErrDegenerateScale, scene.Scale)}
	}

	w, h := int(math.Round(natural.Width)), int(math.Round(natural.Height))
	dc := gg.NewContextForImage(fitFrame(frame, w, h))
	defer dc.Close()

	for _, sh := range scene.Shapes {
		if err := ctx.Err(); err != nil {
			return nil, &CompositeError{Op: "draw", Err: err}
		}
		if !sh.Visible {
			continue
		}
		g, err := geo.ToNatural(sh.Kind, sh.Geometry, scene.Scale)
		if err != nil {
			return nil, &CompositeError{Op: "draw " + sh.ID, Err: err}
		}
		if err := c.drawShape(dc, sh.Kind, g); err != nil {
			return nil, &CompositeError{Op: "draw " + sh.ID, Err: err}
		}
	}

	if err := dc.FlushGPU(); err != nil {
		return nil, &CompositeError{Op: "flush", Err: err}
	}
	return dc.Image(), nil
}

// fitFrame returns an RGBA copy of frame at w x h. A nil frame yields a
// transparent canvas.
func fitFrame(frame image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if frame == nil {
		return dst
	}
	b := frame.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), frame, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), frame, b, draw.Src, nil)
	return dst
}

func (c *GG) drawShape(dc *gg.Context, k core.Kind, g core.Geometry) error {
	switch k {
	case core.KindArrow:
		return drawArrow(dc, g)
	case core.KindPath:
		return strokePolyline(dc, g)
	case core.KindRectStroke:
		dc.SetHexColor(g.Stroke)
		dc.SetLineWidth(g.StrokeWidth)
		dc.SetLineJoin(gg.LineJoinMiter)
		dc.DrawRectangle(g.X, g.Y, g.Width, g.Height)
		return dc.Stroke()
	case core.KindRectFill:
		dc.SetHexColor(g.Fill)
		dc.DrawRectangle(g.X, g.Y, g.Width, g.Height)
		return dc.Fill()
	case core.KindText:
		return c.drawText(dc, g)
	default:
		return fmt.Errorf("unknown kind %v", k)
	}
}

func strokePolyline(dc *gg.Context, g core.Geometry) error {
	if g.PointCount() < 2 {
		return nil
	}
	dc.SetHexColor(g.Stroke)
	dc.SetLineWidth(g.StrokeWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.MoveTo(g.X+g.Points[0], g.Y+g.Points[1])
	for i := 2; i+1 < len(g.Points); i += 2 {
		dc.LineTo(g.X+g.Points[i], g.Y+g.Points[i+1])
	}
	return dc.Stroke()
}

// drawArrow strokes the shaft and fills a triangular head whose tip is
// the last point.
func drawArrow(dc *gg.Context, g core.Geometry) error {
	if err := strokePolyline(dc, g); err != nil {
		return err
	}
	n := len(g.Points)
	if n < 4 || !(g.PointerLength > 0) {
		return nil
	}
	tipX, tipY := g.X+g.Points[n-2], g.Y+g.Points[n-1]
	fromX, fromY := g.X+g.Points[n-4], g.Y+g.Points[n-3]
	dx, dy := tipX-fromX, tipY-fromY
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}
	ux, uy := dx/length, dy/length
	baseX, baseY := tipX-ux*g.PointerLength, tipY-uy*g.PointerLength
	half := g.PointerWidth / 2

	dc.SetHexColor(g.Stroke)
	dc.MoveTo(tipX, tipY)
	dc.LineTo(baseX-uy*half, baseY+ux*half)
	dc.LineTo(baseX+uy*half, baseY-ux*half)
	dc.ClosePath()
	return dc.Fill()
}

func (c *GG) drawText(dc *gg.Context, g core.Geometry) error {
	if strings.TrimSpace(g.Text) == "" || !(g.FontSize > 0) {
		return nil
	}
	src, err := c.fontSource()
	if err != nil {
		return fmt.Errorf("loading font: %w", err)
	}
	dc.SetFont(src.Face(g.FontSize))
	dc.SetHexColor(g.Fill)
	// (X, Y) is the top-left of the text box; DrawString wants a baseline.
	for i, line := range strings.Split(g.Text, "\n") {
		dc.DrawString(line, g.X, g.Y+g.FontSize*(0.8+float64(i)))
	}
	return nil
}

// WritePNG encodes a composite as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return &CompositeError{Op: "encode", Err: err}
	}
	return nil
}
