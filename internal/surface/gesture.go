package surface

import (
	"math"
	"slices"
	"strings"

	"github.com/OCAP2/annotator/internal/geo"
	"github.com/OCAP2/annotator/internal/model/core"
)

// Keys understood by Key.
const (
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyEscape    = "Escape"
)

func (s *Surface) interactive() bool {
	return s.mode == ModeEdit && s.mounted && s.host != nil
}

func (s *Surface) toolIsSelect() bool {
	return s.host != nil && s.host.Tool() == core.ToolSelect
}

// PointerDown starts a drawing gesture on empty canvas. Pressing on empty
// canvas always clears the selection first.
func (s *Surface) PointerDown(x, y float64) {
	if !s.interactive() || !s.host.Editable() {
		return
	}
	if s.shapeAt(x, y) != "" {
		return
	}
	if s.selected != "" {
		s.clearSelection()
		s.redraw()
	}

	tool := s.host.Tool()
	kind, ok := tool.Kind()
	if !ok || kind == core.KindText {
		return
	}

	var g core.Geometry
	switch kind {
	case core.KindArrow:
		g.Points = []float64{x, y, x, y}
	case core.KindPath:
		g.Points = []float64{x, y}
	case core.KindRectStroke, core.KindRectFill:
		g.X, g.Y = x, y
	}
	s.transient = &Shape{Kind: kind, Geometry: s.withStyle(kind, g), Visible: true}
	s.origin = [2]float64{x, y}
	s.state = StateDrawing
	s.redraw()
}

// PointerMove updates the transient shape while drawing.
func (s *Surface) PointerMove(x, y float64) {
	if s.state != StateDrawing || s.transient == nil {
		return
	}
	g := &s.transient.Geometry
	switch s.transient.Kind {
	case core.KindArrow:
		g.Points = []float64{s.origin[0], s.origin[1], x, y}
	case core.KindPath:
		g.Points = append(g.Points, x, y)
	case core.KindRectStroke, core.KindRectFill:
		g.Width = x - s.origin[0]
		g.Height = y - s.origin[1]
	}
	s.redraw()
}

// PointerUp finishes a gesture: a valid transient shape is committed, an
// undersized one discarded. With the text tool on empty canvas it prompts
// for content instead.
func (s *Surface) PointerUp(x, y float64) {
	wasDrawing := s.state == StateDrawing
	tr := s.transient
	s.transient = nil
	if wasDrawing {
		s.state = StateIdle
	}

	if !s.interactive() {
		return
	}
	if !s.host.Editable() {
		if wasDrawing {
			s.redraw()
		}
		return
	}

	if !wasDrawing {
		if s.host.Tool() == core.ToolText && s.shapeAt(x, y) == "" {
			s.promptText(x, y)
		}
		return
	}
	if tr == nil {
		return
	}

	if !s.validShape(tr) {
		s.log.Debug("discarding undersized shape", "kind", tr.Kind)
		s.redraw()
		return
	}
	g := tr.Geometry
	if tr.Kind == core.KindRectStroke || tr.Kind == core.KindRectFill {
		g = geo.Normalize(g)
	}
	s.commit(tr.Kind, g)
}

func (s *Surface) validShape(sh *Shape) bool {
	g := sh.Geometry
	switch sh.Kind {
	case core.KindArrow:
		if len(g.Points) < 4 {
			return false
		}
		return math.Hypot(g.Points[2]-g.Points[0], g.Points[3]-g.Points[1]) >= s.opts.MinShapeLength
	case core.KindPath:
		return g.PointCount() >= s.opts.MinDrawPoints
	case core.KindRectStroke, core.KindRectFill:
		return math.Abs(g.Width) >= s.opts.MinShapeLength || math.Abs(g.Height) >= s.opts.MinShapeLength
	case core.KindText:
		return strings.TrimSpace(g.Text) != ""
	default:
		return false
	}
}

func (s *Surface) promptText(x, y float64) {
	text, ok := s.host.PromptText()
	if !ok || strings.TrimSpace(text) == "" {
		return
	}
	g := s.withStyle(core.KindText, core.Geometry{X: x, Y: y, Text: text})
	s.commit(core.KindText, g)
}

// commit stores render geometry g, then writes the UI style in natural
// units so the authored width survives exactly.
func (s *Surface) commit(kind core.Kind, g core.Geometry) {
	if s.editor == nil {
		s.log.Warn("dropping shape: no writable store")
		s.redraw()
		return
	}
	id, err := s.editor.Add(kind, g, s.host.SessionTime())
	if err != nil {
		s.log.Warn("failed to add annotation", "kind", kind, "error", err)
		s.redraw()
		return
	}
	if err := s.editor.Restyle(id, s.host.Style()); err != nil {
		s.log.Warn("failed to style annotation", "id", id, "error", err)
	}

	rec, ok := s.editor.Get(id)
	if !ok {
		return
	}
	rg, err := geo.ToRender(rec.Kind, rec.Geometry, s.scale)
	if err != nil {
		s.log.Warn("failed to render annotation", "id", id, "error", err)
		return
	}
	s.links.Bind(id, rec, &Shape{
		ID:       id,
		Kind:     kind,
		Geometry: rg,
		Visible:  s.opts.Resolver.Visible(rec, s.ts),
	})
	s.order = append(s.order, id)
	s.log.Debug("annotation added", "id", id, "kind", kind, "total", len(s.order))
	s.redraw()
}

// withStyle copies the current UI style, converted to render units, onto g.
func (s *Surface) withStyle(kind core.Kind, g core.Geometry) core.Geometry {
	styled, err := geo.ToRender(kind, core.ApplyStyle(kind, core.Geometry{}, s.host.Style()), s.scale)
	if err != nil {
		return g
	}
	g.Stroke = styled.Stroke
	g.Fill = styled.Fill
	switch kind {
	case core.KindArrow:
		g.StrokeWidth = styled.StrokeWidth
		g.PointerLength = styled.PointerLength
		g.PointerWidth = styled.PointerWidth
	case core.KindPath, core.KindRectStroke:
		g.StrokeWidth = styled.StrokeWidth
	case core.KindText:
		g.FontSize = styled.FontSize
	case core.KindRectFill:
	}
	return g
}

// Click selects the topmost visible shape under (x, y) with the select
// tool, or clears the selection on empty canvas.
func (s *Surface) Click(x, y float64) {
	if !s.interactive() || s.host.Tool() != core.ToolSelect {
		return
	}
	id := s.shapeAt(x, y)
	if id == "" {
		if s.selected != "" {
			s.clearSelection()
			s.redraw()
		}
		return
	}
	s.Select(id)
}

// Select attaches the overlay to id and mirrors its style to the host.
func (s *Surface) Select(id string) bool {
	if !s.interactive() {
		return false
	}
	sh, ok := s.links.Shape(id)
	if !ok || !sh.Visible {
		return false
	}
	if prev, ok := s.links.Shape(s.selected); ok && s.selected != id {
		prev.Draggable = false
	}
	s.selected = id
	s.state = StateSelected
	sh.Draggable = s.toolIsSelect()

	rec, _ := s.links.Record(id)
	s.host.SelectionChanged(core.StyleOf(rec.Kind, rec.Geometry))
	s.redraw()
	return true
}

// Deselect clears the selection.
func (s *Surface) Deselect() {
	if s.selected == "" {
		return
	}
	s.clearSelection()
	s.redraw()
}

func (s *Surface) clearSelection() {
	if sh, ok := s.links.Shape(s.selected); ok {
		sh.Draggable = false
	}
	s.selected = ""
	if s.state == StateSelected {
		s.state = StateIdle
	}
}

// Key handles Delete and Backspace, which remove the selected annotation,
// and Escape, which only clears the selection.
func (s *Surface) Key(key string) {
	if !s.interactive() || s.selected == "" {
		return
	}
	switch key {
	case KeyDelete, KeyBackspace:
		s.removeSelected()
	case KeyEscape:
		s.Deselect()
	}
}

func (s *Surface) removeSelected() {
	id := s.selected
	s.clearSelection()
	if s.editor != nil {
		s.editor.Remove(id)
	}
	s.links.Unbind(id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.log.Debug("annotation removed", "id", id, "total", len(s.order))
	s.redraw()
}

// ToolChanged discards an in-progress shape and, when leaving the select
// tool, clears the selection.
func (s *Surface) ToolChanged(tool core.Tool) {
	changed := false
	if s.state == StateDrawing {
		s.discardTransient()
		changed = true
	}
	if tool != core.ToolSelect && s.selected != "" {
		s.clearSelection()
		changed = true
	}
	if sh, ok := s.links.Shape(s.selected); ok {
		sh.Draggable = tool == core.ToolSelect
	}
	if changed {
		s.redraw()
	}
}

func (s *Surface) discardTransient() {
	s.transient = nil
	if s.state == StateDrawing {
		s.state = StateIdle
	}
}

// DragEnd moves the selected shape by (dx, dy) render pixels and writes the
// result back to the store.
func (s *Surface) DragEnd(id string, dx, dy float64) {
	sh, ok := s.editable(id)
	if !ok {
		return
	}
	s.writeBack(id, geo.Translate(sh.Geometry, dx, dy), 1)
}

// TransformEnd bakes a transform-handle scale into the selected shape and
// writes the result back to the store.
func (s *Surface) TransformEnd(id string, sx, sy float64) {
	sh, ok := s.editable(id)
	if !ok {
		return
	}
	g, err := geo.Resize(sh.Kind, sh.Geometry, sx, sy)
	if err != nil {
		s.log.Debug("ignoring transform", "id", id, "error", err)
		return
	}
	s.writeBack(id, g, math.Max(sx, sy))
}

// ApplyStyle restyles the selected annotation. It reports whether there
// was a selection to restyle.
func (s *Surface) ApplyStyle(style core.Style) bool {
	if !s.interactive() || s.selected == "" || s.editor == nil {
		return false
	}
	id := s.selected
	if err := s.editor.Restyle(id, style); err != nil {
		s.log.Warn("failed to restyle annotation", "id", id, "error", err)
		return false
	}
	s.refresh(id)
	s.redraw()
	return true
}

func (s *Surface) editable(id string) (*Shape, bool) {
	if !s.interactive() || s.editor == nil || s.selected != id {
		return nil, false
	}
	return s.links.Shape(id)
}

// writeBack stores an edited render geometry. Stroke and font sizes are
// taken from the stored record rather than the shape, since the shape's
// values may carry the 1px render floor. fontScale is the factor the edit
// applied to the font size.
func (s *Surface) writeBack(id string, g core.Geometry, fontScale float64) {
	if rec, ok := s.editor.Get(id); ok {
		g.StrokeWidth = rec.Geometry.StrokeWidth * s.scale
		g.PointerLength = rec.Geometry.PointerLength * s.scale
		g.PointerWidth = rec.Geometry.PointerWidth * s.scale
		g.FontSize = rec.Geometry.FontSize * fontScale * s.scale
	}
	if err := s.editor.Update(id, g); err != nil {
		s.log.Warn("failed to update annotation", "id", id, "error", err)
		return
	}
	s.refresh(id)
	s.redraw()
}

// refresh re-reads id from the store and re-renders its shape so the
// shape always equals the stored geometry at the current scale.
func (s *Surface) refresh(id string) {
	rec, ok := s.editor.Get(id)
	if !ok {
		return
	}
	sh, ok := s.links.Shape(id)
	if !ok {
		return
	}
	g, err := geo.ToRender(rec.Kind, rec.Geometry, s.scale)
	if err != nil {
		return
	}
	s.links.Rebind(id, rec)
	sh.Geometry = g
}

// shapeAt returns the topmost visible shape hit at (x, y).
func (s *Surface) shapeAt(x, y float64) string {
	for i := len(s.order) - 1; i >= 0; i-- {
		sh, _ := s.links.Shape(s.order[i])
		if sh.Visible && geo.Hit(sh.Kind, sh.Geometry, x, y) {
			return sh.ID
		}
	}
	return ""
}
