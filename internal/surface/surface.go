// Package surface keeps the live, render-space shapes of one drawing canvas
// in sync with an annotation store. A Surface is not safe for concurrent
// use; its owner serialises every call.
package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/OCAP2/annotator/internal/cache"
	"github.com/OCAP2/annotator/internal/dispatcher"
	"github.com/OCAP2/annotator/internal/geo"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage"
	"github.com/OCAP2/annotator/internal/task"
	"github.com/OCAP2/annotator/internal/visibility"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/annotator/internal/surface"

// ErrNotMounted is returned by operations that need a mounted surface.
var ErrNotMounted = errors.New("surface not mounted")

// Mode selects between the interactive main surface and a read-only one.
type Mode int

const (
	ModeEdit Mode = iota
	ModeReadOnly
)

// State is the gesture state of an editable surface.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateSelected:
		return "selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Shape is one live node on the shapes layer. Geometry is in render units.
type Shape struct {
	ID        string
	Kind      core.Kind
	Geometry  core.Geometry
	Visible   bool
	Draggable bool
}

func (s Shape) clone() Shape {
	s.Geometry = s.Geometry.Clone()
	return s
}

// Overlay is the selection/transform layer of the main surface.
type Overlay struct {
	Target  string
	Handles bool
}

// Scene is a render-space copy of what a surface currently shows.
type Scene struct {
	Size   core.Size
	Scale  float64
	Shapes []Shape
}

// Host supplies the session values a surface reads while handling input.
type Host interface {
	// Editable reports whether drawing is allowed right now (media ready
	// and, for video, paused).
	Editable() bool
	Tool() core.Tool
	// Style is the current UI style in natural units.
	Style() core.Style
	SessionTime() float64
	// PromptText asks the user for text content. ok is false on cancel.
	PromptText() (text string, ok bool)
	// SelectionChanged mirrors the style of a newly selected shape.
	SelectionChanged(style core.Style)
}

// Options configures a Surface.
type Options struct {
	Resolver       visibility.Resolver
	MinShapeLength float64
	MinDrawPoints  int

	// Dispatcher receives the input listeners of an editable surface.
	Dispatcher *dispatcher.Dispatcher
	// Exec wraps listener callbacks, usually with the owner's lock.
	Exec   task.Executor
	Logger *slog.Logger
}

// Surface is one drawing canvas: a shapes layer plus, when editable, a
// selection overlay and a gesture state machine.
type Surface struct {
	name string
	mode Mode
	host Host
	opts Options
	log  *slog.Logger

	store  storage.Reader
	editor storage.Store

	size      core.Size
	mounted   bool
	mounts    int
	unmounts  int
	listeners []string

	scale float64
	ts    visibility.Timestamp

	order []string
	links *cache.Link[core.Annotation, *Shape]

	state     State
	transient *Shape
	origin    [2]float64
	selected  string

	draws   int
	redraws metric.Int64Counter
}

// New creates an unmounted surface. host may be nil for read-only surfaces.
func New(name string, mode Mode, host Host, opts Options) *Surface {
	if opts.MinShapeLength <= 0 {
		opts.MinShapeLength = 5
	}
	if opts.MinDrawPoints <= 0 {
		opts.MinDrawPoints = 3
	}
	if opts.Resolver == (visibility.Resolver{}) {
		opts.Resolver = visibility.New(0, 0)
	}
	if opts.Exec == nil {
		opts.Exec = task.Direct
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Surface{
		name:  name,
		mode:  mode,
		host:  host,
		opts:  opts,
		log:   log.With("surface", name),
		scale: 1,
		ts:    visibility.Static(),
		links: cache.NewLink[core.Annotation, *Shape](),
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"surface.redraws",
		metric.WithDescription("Redraws issued per surface"),
	)
	if err == nil {
		s.redraws = counter
	}
	return s
}

// Mount (re)creates the canvas at the given pixel size. A mounted surface
// is torn down first, listeners included.
func (s *Surface) Mount(width, height float64) {
	if s.mounted {
		s.Unmount()
	}
	s.size = core.Size{Width: width, Height: height}
	s.mounted = true
	s.mounts++
	s.state = StateIdle
	if s.mode == ModeEdit && s.opts.Dispatcher != nil {
		s.attachListeners()
	}
	s.log.Debug("mounted", "width", width, "height", height)
}

// Unmount detaches listeners and drops every shape. It is a no-op on an
// unmounted surface.
func (s *Surface) Unmount() {
	if !s.mounted {
		return
	}
	s.detachListeners()
	s.links.Reset()
	s.order = nil
	s.transient = nil
	s.selected = ""
	s.state = StateIdle
	s.mounted = false
	s.unmounts++
	s.log.Debug("unmounted")
}

// Resize changes the canvas size without touching shapes.
func (s *Surface) Resize(width, height float64) {
	s.size = core.Size{Width: width, Height: height}
}

// RebuildFrom drops every shape and recreates one per record of store at
// scale, keeping the selection when its record survives. An invalid scale
// leaves the surface untouched.
func (s *Surface) RebuildFrom(store storage.Reader, scale float64) error {
	if !s.mounted {
		return ErrNotMounted
	}
	if !geo.ValidScale(scale) {
		return fmt.Errorf("rebuilding %s: %w: %v", s.name, geo.ErrDegenerateScale, scale)
	}

	s.store = store
	s.editor = nil
	if st, ok := store.(storage.Store); ok && s.mode == ModeEdit {
		s.editor = st
	}
	s.scale = scale
	s.discardTransient()

	s.links.Reset()
	s.order = s.order[:0]
	for _, rec := range store.All() {
		g, err := geo.ToRender(rec.Kind, rec.Geometry, scale)
		if err != nil {
			s.log.Warn("skipping unrenderable annotation", "id", rec.ID, "error", err)
			continue
		}
		s.links.Bind(rec.ID, rec, &Shape{ID: rec.ID, Kind: rec.Kind, Geometry: g, Visible: true})
		s.order = append(s.order, rec.ID)
	}

	if sh, ok := s.links.Shape(s.selected); ok {
		sh.Draggable = s.toolIsSelect()
	} else {
		s.clearSelection()
	}

	s.refreshVisibility()
	s.redraw()
	return nil
}

// Rescale re-maps every live shape to scale in place, keeping selection and
// visibility.
func (s *Surface) Rescale(scale float64) error {
	if !geo.ValidScale(scale) {
		return fmt.Errorf("rescaling %s: %w: %v", s.name, geo.ErrDegenerateScale, scale)
	}
	if !s.mounted {
		return ErrNotMounted
	}

	if s.transient != nil {
		if nat, err := geo.ToNatural(s.transient.Kind, s.transient.Geometry, s.scale); err == nil {
			if g, err := geo.ToRender(s.transient.Kind, nat, scale); err == nil {
				s.transient.Geometry = g
				s.origin[0] *= scale / s.scale
				s.origin[1] *= scale / s.scale
			}
		}
	}

	for _, id := range s.order {
		rec, _ := s.links.Record(id)
		sh, _ := s.links.Shape(id)
		g, err := geo.ToRender(rec.Kind, rec.Geometry, scale)
		if err != nil {
			return fmt.Errorf("rescaling %s: %w", id, err)
		}
		sh.Geometry = g
	}
	s.scale = scale
	s.redraw()
	return nil
}

// ApplyVisibility records ts as the current timestamp and toggles shape
// visibility to match. It redraws, and reports true, only when at least
// one flag changed. A selected shape that becomes hidden is deselected.
func (s *Surface) ApplyVisibility(ts visibility.Timestamp) bool {
	s.ts = ts
	if !s.mounted {
		return false
	}
	changed := s.refreshVisibility()
	if changed {
		s.redraw()
	}
	return changed
}

func (s *Surface) refreshVisibility() bool {
	records := make([]core.Annotation, 0, len(s.order))
	for _, id := range s.order {
		rec, _ := s.links.Record(id)
		records = append(records, rec)
	}
	visible := s.opts.Resolver.Resolve(records, s.ts)

	changed := false
	for _, id := range s.order {
		sh, _ := s.links.Shape(id)
		_, v := visible[id]
		if sh.Visible != v {
			sh.Visible = v
			changed = true
		}
	}
	if sh, ok := s.links.Shape(s.selected); ok && !sh.Visible {
		s.clearSelection()
		changed = true
	}
	return changed
}

func (s *Surface) redraw() {
	s.draws++
	if s.redraws != nil {
		s.redraws.Add(context.Background(), 1, metric.WithAttributes(attribute.String("surface", s.name)))
	}
}

// Shapes returns copies of the live shapes in store order.
func (s *Surface) Shapes() []Shape {
	out := make([]Shape, 0, len(s.order))
	for _, id := range s.order {
		sh, _ := s.links.Shape(id)
		out = append(out, sh.clone())
	}
	return out
}

// Shape returns a copy of the live shape for id.
func (s *Surface) Shape(id string) (Shape, bool) {
	sh, ok := s.links.Shape(id)
	if !ok {
		return Shape{}, false
	}
	return sh.clone(), true
}

// VisibleIDs lists the ids of visible shapes in store order.
func (s *Surface) VisibleIDs() []string {
	var out []string
	for _, id := range s.order {
		if sh, _ := s.links.Shape(id); sh.Visible {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns the visible shapes in render space for compositing.
func (s *Surface) Snapshot() Scene {
	scene := Scene{Size: s.size, Scale: s.scale}
	for _, id := range s.order {
		if sh, _ := s.links.Shape(id); sh.Visible {
			scene.Shapes = append(scene.Shapes, sh.clone())
		}
	}
	return scene
}

func (s *Surface) Overlay() Overlay {
	return Overlay{Target: s.selected, Handles: s.selected != ""}
}

// Selected returns the selected id, if any.
func (s *Surface) Selected() (string, bool) {
	return s.selected, s.selected != ""
}

// Transient returns a copy of the in-progress shape while drawing.
func (s *Surface) Transient() (Shape, bool) {
	if s.transient == nil {
		return Shape{}, false
	}
	return s.transient.clone(), true
}

func (s *Surface) State() State        { return s.state }
func (s *Surface) Mounted() bool       { return s.mounted }
func (s *Surface) Size() core.Size     { return s.size }
func (s *Surface) Scale() float64      { return s.scale }
func (s *Surface) Draws() int          { return s.draws }
func (s *Surface) Mounts() int         { return s.mounts }
func (s *Surface) Unmounts() int       { return s.unmounts }
func (s *Surface) Listeners() []string { return slices.Clone(s.listeners) }
