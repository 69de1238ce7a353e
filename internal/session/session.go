// Package session owns one annotation session: the loaded media, the
// annotation store, the main drawing surface and an optional preview. All
// mutation is serialised behind a single mutex, so input handlers, resize
// timers and preview ticks never interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/annotator/internal/composite"
	"github.com/OCAP2/annotator/internal/config"
	"github.com/OCAP2/annotator/internal/dispatcher"
	"github.com/OCAP2/annotator/internal/media"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage/memory"
	"github.com/OCAP2/annotator/internal/surface"
	"github.com/OCAP2/annotator/internal/task"
	"github.com/OCAP2/annotator/internal/visibility"
)

var (
	ErrNotReady  = errors.New("no media loaded")
	ErrNotVideo  = errors.New("media is not a video")
	ErrPlaying   = errors.New("pause the video first")
	ErrNoPreview = errors.New("preview not open")
)

// Lifecycle is the media loading state of a session.
type Lifecycle int

const (
	LifecycleNone Lifecycle = iota
	LifecycleLoading
	LifecycleReady
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleNone:
		return "none"
	case LifecycleLoading:
		return "loading"
	case LifecycleReady:
		return "ready"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// UI is the outer caller: toolbar, prompts and notifications. Its methods
// are called with the session locked and must not call back into it.
type UI interface {
	// PromptText asks for the content of a new text annotation.
	PromptText() (text string, ok bool)
	// StyleChanged mirrors the style of the selected annotation.
	StyleChanged(style core.Style)
	// Notify reports a failure the user should see.
	Notify(msg string)
}

// Options configures a Controller.
type Options struct {
	Config config.AnnotatorConfig
	Export config.ExportConfig

	Dispatcher *dispatcher.Dispatcher
	Compositor composite.Compositor
	Logger     *slog.Logger

	// Post receives debounced resizes, already wrapped with the session
	// lock. Nil runs them on the timer goroutine.
	Post task.Executor

	// NewID and Now are overridable for tests.
	NewID func() string
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	c := &o.Config
	if c.InitialColor == "" {
		c.InitialColor = "#FF0000"
	}
	if c.InitialWidth <= 0 {
		c.InitialWidth = 4
	}
	if c.DefaultDurationSeconds <= 0 {
		c.DefaultDurationSeconds = visibility.DefaultDuration
	}
	if c.TimeThreshold <= 0 {
		c.TimeThreshold = visibility.DefaultThreshold
	}
	if c.ResizeDebounce <= 0 {
		c.ResizeDebounce = 150 * time.Millisecond
	}
	if c.PreviewTick <= 0 {
		c.PreviewTick = 16 * time.Millisecond
	}
	if c.ContainerPadding < 0 {
		c.ContainerPadding = 0
	}
	if o.Compositor == nil {
		o.Compositor = composite.NewGG()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller is one annotation session.
type Controller struct {
	mu   sync.Mutex
	opts Options
	ui   UI
	log  *slog.Logger

	lifecycle Lifecycle
	media     *media.Context
	source    media.Source
	store     *memory.Store
	main      *surface.Surface
	container core.Size
	playing   bool

	tool        core.Tool
	defaultTool core.Tool
	style       core.Style

	resizer *task.Debouncer
	preview *Preview

	// logTool mirrors tool for LogContext, which must not take mu.
	logTool atomic.Value
}

// New creates a session with nothing loaded.
func New(ui UI, opts Options) *Controller {
	opts = opts.withDefaults()
	tool, ok := core.ParseTool(opts.Config.DefaultTool)
	if !ok {
		tool = core.ToolSelect
	}

	c := &Controller{
		opts:        opts,
		ui:          ui,
		log:         opts.Logger,
		media:       media.NewContext(),
		tool:        tool,
		defaultTool: tool,
		style:       core.Style{Color: opts.Config.InitialColor, Width: opts.Config.InitialWidth},
	}
	c.store = memory.New(c.media, memory.Options{
		DefaultDuration: opts.Config.DefaultDurationSeconds,
		NewID:           opts.NewID,
	})
	c.main = surface.New("main", surface.ModeEdit, host{c}, c.surfaceOptions(opts.Dispatcher))
	post := task.Executor(c.locked)
	if opts.Post != nil {
		post = func(fn func()) { opts.Post(func() { c.locked(fn) }) }
	}
	c.resizer = task.NewDebouncer(opts.Config.ResizeDebounce, c.applyResize, post)
	c.publish()
	return c
}

func (c *Controller) surfaceOptions(d *dispatcher.Dispatcher) surface.Options {
	return surface.Options{
		Resolver:       visibility.New(c.opts.Config.TimeThreshold, c.opts.Config.DefaultDurationSeconds),
		MinShapeLength: c.opts.Config.MinShapeLength,
		MinDrawPoints:  c.opts.Config.MinDrawPoints,
		Dispatcher:     d,
		Exec:           c.locked,
		Logger:         c.log,
	}
}

// locked runs fn with the session mutex held.
func (c *Controller) locked(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// publish refreshes the log context. Callers hold mu.
func (c *Controller) publish() {
	c.logTool.Store(string(c.tool))
}

// LogContext returns the live session attributes for logging.LiveHandler.
// It never takes the session lock; media and store guard themselves.
func (c *Controller) LogContext() []slog.Attr {
	tool, _ := c.logTool.Load().(string)
	return []slog.Attr{
		slog.String("mediaType", c.media.Type().String()),
		slog.String("tool", tool),
		slog.Int("annotations", c.store.Len()),
	}
}

// Open loads the media file at path.
func (c *Controller) Open(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	c.setLifecycle(LifecycleLoading)
	src, err := media.Open(ctx, path)
	if err != nil {
		c.failLoad(err)
		return err
	}
	return c.loadLocked(src)
}

// Load replaces the current media with src. Annotations of the previous
// media are discarded.
func (c *Controller) Load(src media.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	c.setLifecycle(LifecycleLoading)
	return c.loadLocked(src)
}

func (c *Controller) loadLocked(src media.Source) error {
	info := src.Info()
	if info.Type == core.MediaNone || info.Natural.Empty() {
		_ = src.Close()
		err := &media.MediaError{Op: "metadata", Path: info.Name, Err: errors.New("media dimensions are zero")}
		c.failLoad(err)
		return err
	}

	c.source = src
	c.media.Load(info)
	if err := c.fitLocked(); err != nil {
		merr := &media.MediaError{Op: "fit", Path: info.Name, Err: err}
		c.failLoad(merr)
		return merr
	}

	render := c.media.Render()
	c.main.Mount(render.Width, render.Height)
	if err := c.main.RebuildFrom(c.store, c.media.Scale()); err != nil {
		merr := &media.MediaError{Op: "mount", Path: info.Name, Err: err}
		c.failLoad(merr)
		return merr
	}
	c.main.ToolChanged(c.tool)
	c.main.ApplyVisibility(c.timestamp())

	c.setLifecycle(LifecycleReady)
	c.publish()
	c.log.Info("media loaded",
		"name", info.Name,
		"type", info.Type.String(),
		"width", info.Natural.Width,
		"height", info.Natural.Height,
		"duration", info.Duration,
		"scale", c.media.Scale(),
	)
	return nil
}

// failLoad resets the session and tells the user.
func (c *Controller) failLoad(err error) {
	c.log.Error("failed to load media", "error", err)
	c.resetLocked()
	if c.ui != nil {
		c.ui.Notify(fmt.Sprintf("Error loading media: %v", err))
	}
}

func (c *Controller) setLifecycle(l Lifecycle) {
	if c.lifecycle == l {
		return
	}
	c.log.Debug("lifecycle", "from", c.lifecycle.String(), "to", l.String())
	c.lifecycle = l
}

// fitLocked maps the natural size onto the container less padding. Without
// a container the media is shown 1:1.
func (c *Controller) fitLocked() error {
	box := c.media.Natural()
	if !c.container.Empty() {
		pad := c.opts.Config.ContainerPadding
		box = core.Size{Width: c.container.Width - pad, Height: c.container.Height - pad}
	}
	_, _, err := c.media.Fit(box)
	return err
}

func (c *Controller) timestamp() visibility.Timestamp {
	return visibility.For(c.media.Type(), c.media.Position())
}

// Reset discards media, annotations, surfaces and preview.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.closePreviewLocked()
	c.resizer.Cancel()
	c.main.Unmount()
	c.store.Clear()
	if c.source != nil {
		if err := c.source.Close(); err != nil {
			c.log.Warn("closing media", "error", err)
		}
		c.source = nil
	}
	c.media.Reset()
	c.playing = false
	c.tool = c.defaultTool
	c.setLifecycle(LifecycleNone)
	c.publish()
}

// Close releases the session. It is Reset under another name for callers
// that hold it as an io.Closer.
func (c *Controller) Close() error {
	c.Reset()
	return nil
}

// Resize records the container size and schedules a debounced re-fit.
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.container = core.Size{Width: width, Height: height}
	if c.lifecycle == LifecycleReady {
		c.resizer.Trigger()
	}
}

// FlushResize hands a pending resize to the executor now instead of waiting
// for the quiet period. It reports whether one was pending.
func (c *Controller) FlushResize() bool {
	return c.resizer.Flush()
}

// applyResize runs under mu via the debouncer's executor.
func (c *Controller) applyResize() {
	if c.lifecycle != LifecycleReady {
		return
	}
	if err := c.fitLocked(); err != nil {
		c.log.Warn("ignoring resize", "width", c.container.Width, "height", c.container.Height, "error", err)
		return
	}
	render := c.media.Render()
	if !c.main.Mounted() {
		c.main.Mount(render.Width, render.Height)
		if err := c.main.RebuildFrom(c.store, c.media.Scale()); err != nil {
			c.log.Warn("rebuilding after resize", "error", err)
		}
		return
	}
	c.main.Resize(render.Width, render.Height)
	if err := c.main.Rescale(c.media.Scale()); err != nil {
		c.log.Warn("rescaling after resize", "error", err)
		return
	}
	c.log.Debug("resized", "width", render.Width, "height", render.Height, "scale", c.media.Scale())
}

// SetTool switches the active tool. Unknown names are rejected.
func (c *Controller) SetTool(name string) error {
	tool, ok := core.ParseTool(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tool = tool
	c.main.ToolChanged(tool)
	c.publish()
	return nil
}

// SetStyle changes the drawing style and restyles the selection, if any.
// A non-positive width keeps the current width.
func (c *Controller) SetStyle(color string, width float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if color != "" {
		c.style.Color = color
	}
	if width > 0 {
		c.style.Width = width
	}
	if _, ok := c.main.Selected(); ok {
		c.main.ApplyStyle(c.style)
	}
}

func (c *Controller) Tool() core.Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

func (c *Controller) Style() core.Style {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style
}

func (c *Controller) Lifecycle() Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle
}

// Media returns the media mapping shared with the store.
func (c *Controller) Media() *media.Context {
	return c.media
}

// Inspect runs fn with the main surface while holding the session lock.
func (c *Controller) Inspect(fn func(main *surface.Surface)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.main)
}

// Annotations returns a copy of the stored records.
func (c *Controller) Annotations() []core.Annotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All()
}

// host adapts the controller to surface.Host. The surface only calls it
// while the controller's lock is held, so it reads fields directly.
type host struct{ c *Controller }

func (h host) Editable() bool {
	c := h.c
	if c.lifecycle != LifecycleReady {
		return false
	}
	return !(c.media.Type() == core.MediaVideo && c.playing)
}

func (h host) Tool() core.Tool      { return h.c.tool }
func (h host) Style() core.Style    { return h.c.style }
func (h host) SessionTime() float64 { return h.c.media.Position() }

func (h host) PromptText() (string, bool) {
	if h.c.ui == nil {
		return "", false
	}
	return h.c.ui.PromptText()
}

func (h host) SelectionChanged(style core.Style) {
	c := h.c
	if style.Color != "" {
		c.style.Color = style.Color
	}
	if style.Width > 0 {
		c.style.Width = style.Width
	}
	c.publish()
	if c.ui != nil {
		c.ui.StyleChanged(c.style)
	}
}
