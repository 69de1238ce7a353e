package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OCAP2/annotator/internal/composite"
	"github.com/OCAP2/annotator/internal/config"
	"github.com/OCAP2/annotator/internal/dispatcher"
	"github.com/OCAP2/annotator/internal/media"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage"
	"github.com/OCAP2/annotator/internal/surface"
	"github.com/OCAP2/annotator/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)

type fakeSource struct {
	info     media.Info
	frame    image.Image
	frameErr error
	closed   int
}

func (s *fakeSource) Info() media.Info { return s.info }
func (s *fakeSource) Frame(_ context.Context, _ float64) (image.Image, error) {
	return s.frame, s.frameErr
}
func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

func videoSource() *fakeSource {
	return &fakeSource{info: media.Info{Name: "clip.mp4", Type: core.MediaVideo, Natural: core.Size{Width: 1920, Height: 1080}, Duration: 10}}
}

func imageSource() *fakeSource {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return &fakeSource{info: media.Info{Name: "board.png", Type: core.MediaImage, Natural: core.Size{Width: 800, Height: 600}}, frame: img}
}

type fakeUI struct {
	prompt   string
	promptOK bool
	styles   []core.Style
	notes    []string
}

func (u *fakeUI) PromptText() (string, bool) { return u.prompt, u.promptOK }
func (u *fakeUI) StyleChanged(s core.Style)  { u.styles = append(u.styles, s) }
func (u *fakeUI) Notify(msg string)          { u.notes = append(u.notes, msg) }

type failingCompositor struct{}

func (failingCompositor) Composite(context.Context, image.Image, core.Size, surface.Scene) (image.Image, error) {
	return nil, &composite.CompositeError{Op: "draw", Err: errors.New("boom")}
}

type harness struct {
	c    *Controller
	ui   *fakeUI
	disp *dispatcher.Dispatcher
	now  *atomic.Int64
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	d, err := dispatcher.New(nil)
	require.NoError(t, err)

	now := &atomic.Int64{}
	now.Store(baseTime.UnixNano())
	n := 0
	opts := Options{
		Config: config.AnnotatorConfig{
			MinShapeLength: 5,
			MinDrawPoints:  3,
			ResizeDebounce: time.Hour,
			PreviewTick:    5 * time.Millisecond,
		},
		Export:     config.ExportConfig{OutputDir: t.TempDir(), Format: "json"},
		Dispatcher: d,
		NewID: func() string {
			n++
			return fmt.Sprintf("ann-%d", n)
		},
		Now: func() time.Time { return time.Unix(0, now.Load()).UTC() },
	}
	for _, m := range mutate {
		m(&opts)
	}
	ui := &fakeUI{}
	c := New(ui, opts)
	t.Cleanup(c.Reset)
	return &harness{c: c, ui: ui, disp: d, now: now}
}

func (h *harness) dispatch(t *testing.T, cmd string, args ...string) any {
	t.Helper()
	out, err := h.disp.Dispatch(dispatcher.Event{Command: cmd, Args: args})
	require.NoError(t, err, cmd)
	return out
}

func (h *harness) draw(t *testing.T, tool core.Tool, pts ...[2]float64) {
	t.Helper()
	require.NoError(t, h.c.SetTool(string(tool)))
	f := func(v float64) string { return fmt.Sprint(v) }
	h.dispatch(t, surface.CmdPointerDown, f(pts[0][0]), f(pts[0][1]))
	for _, p := range pts[1:] {
		h.dispatch(t, surface.CmdPointerMove, f(p[0]), f(p[1]))
	}
	last := pts[len(pts)-1]
	h.dispatch(t, surface.CmdPointerUp, f(last[0]), f(last[1]))
}

func (h *harness) mainShapes() []surface.Shape {
	var out []surface.Shape
	h.c.Inspect(func(m *surface.Surface) { out = m.Shapes() })
	return out
}

func (h *harness) visibleIDs() []string {
	var out []string
	h.c.Inspect(func(m *surface.Surface) { out = m.VisibleIDs() })
	return out
}

func TestLoad_FitsContainer(t *testing.T) {
	h := newHarness(t)
	h.c.Resize(960, 1000)
	assert.False(t, h.c.FlushResize(), "no resize is scheduled before media is ready")

	require.NoError(t, h.c.Load(videoSource()))

	assert.Equal(t, LifecycleReady, h.c.Lifecycle())
	assert.InDelta(t, 0.5, h.c.Media().Scale(), 1e-9)
	assert.Equal(t, core.Size{Width: 960, Height: 540}, h.c.Media().Render())
	h.c.Inspect(func(m *surface.Surface) {
		assert.True(t, m.Mounted())
		assert.Len(t, m.Listeners(), 7)
	})
	assert.True(t, h.disp.HasHandler(surface.CmdPointerDown))
}

func TestLoad_ContainerPadding(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Config.ContainerPadding = 32 })
	h.c.Resize(832, 2000)
	require.NoError(t, h.c.Load(imageSource()))
	assert.Equal(t, core.Size{Width: 800, Height: 600}, h.c.Media().Render(), "never enlarged past 1:1")

	h.c.Resize(432, 2000)
	require.True(t, h.c.FlushResize())
	assert.InDelta(t, 0.5, h.c.Media().Scale(), 1e-9)
}

func TestLoad_ZeroDimensions(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{info: media.Info{Name: "broken.mp4", Type: core.MediaVideo}}

	err := h.c.Load(src)

	var merr *media.MediaError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, LifecycleNone, h.c.Lifecycle())
	assert.Equal(t, 1, src.closed)
	require.Len(t, h.ui.notes, 1)
	assert.Contains(t, h.ui.notes[0], "Error loading media")
}

func TestOpen_UnsupportedResetsSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))

	err := h.c.Open(context.Background(), "notes.txt")

	var merr *media.MediaError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, LifecycleNone, h.c.Lifecycle())
	assert.False(t, h.disp.HasHandler(surface.CmdPointerDown))
	assert.Len(t, h.ui.notes, 1)
}

func TestScenario_DrawSeekRescale(t *testing.T) {
	h := newHarness(t)
	h.c.Resize(960, 540)
	require.NoError(t, h.c.Load(videoSource()))
	require.NoError(t, h.c.Seek(2.7))

	h.draw(t, core.ToolArrow, [2]float64{100, 100}, [2]float64{200, 100})

	anns := h.c.Annotations()
	require.Len(t, anns, 1)
	a := anns[0]
	assert.Equal(t, core.KindArrow, a.Kind)
	assert.Equal(t, []float64{200, 200, 400, 200}, a.Geometry.Points)
	assert.Equal(t, 4.0, a.Geometry.StrokeWidth, "authored width stored exactly")
	require.NotNil(t, a.Window)
	assert.Equal(t, 2.0, a.Window.StartTime)
	assert.Equal(t, 1.0, a.Window.DurationSeconds)
	assert.Equal(t, []string{"ann-1"}, h.visibleIDs())

	h.c.Resize(480, 270)
	require.True(t, h.c.FlushResize())
	shapes := h.mainShapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, []float64{50, 50, 100, 50}, shapes[0].Geometry.Points)
	assert.Equal(t, 1.0, shapes[0].Geometry.StrokeWidth)

	require.NoError(t, h.c.Seek(3.0))
	assert.Empty(t, h.visibleIDs(), "window is half-open")

	after := h.c.Annotations()
	assert.Equal(t, a.Geometry, after[0].Geometry, "resizing never touches natural geometry")
}

func TestPlaying_DisablesDrawing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(videoSource()))
	require.NoError(t, h.c.Play())
	assert.True(t, h.c.Playing())

	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})
	assert.Empty(t, h.c.Annotations())

	require.NoError(t, h.c.Pause())
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})
	assert.Len(t, h.c.Annotations(), 1)
}

func TestPlayback_Errors(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.c.Play(), ErrNotReady)

	require.NoError(t, h.c.Load(imageSource()))
	assert.ErrorIs(t, h.c.Seek(1), ErrNotVideo)
	assert.ErrorIs(t, h.c.Play(), ErrNotVideo)
}

func TestSeek_ClampsAndEnded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(videoSource()))

	require.NoError(t, h.c.Seek(99))
	assert.Equal(t, 10.0, h.c.Position())
	require.NoError(t, h.c.Seek(-3))
	assert.Equal(t, 0.0, h.c.Position())

	require.NoError(t, h.c.Seek(4))
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})
	require.NoError(t, h.c.Play())
	require.NoError(t, h.c.Tick(6))
	assert.Empty(t, h.visibleIDs())

	require.NoError(t, h.c.Ended())
	assert.False(t, h.c.Playing())
	assert.Equal(t, 0.0, h.c.Position())
}

func TestSelection_SyncsAndAppliesStyle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))
	h.draw(t, core.ToolRectStroke, [2]float64{10, 10}, [2]float64{60, 40})
	require.Len(t, h.c.Annotations(), 1)

	h.c.SetStyle("#00FF00", 8)
	assert.Equal(t, "#FF0000", h.c.Annotations()[0].Geometry.Stroke, "no selection, record untouched")

	require.NoError(t, h.c.SetTool("select"))
	h.dispatch(t, surface.CmdClick, "30", "25")
	require.Len(t, h.ui.styles, 1)
	assert.Equal(t, core.Style{Color: "#FF0000", Width: 4}, h.ui.styles[0])
	assert.Equal(t, core.Style{Color: "#FF0000", Width: 4}, h.c.Style())

	h.c.SetStyle("#0000FF", 2)
	rec := h.c.Annotations()[0]
	assert.Equal(t, "#0000FF", rec.Geometry.Stroke)
	assert.Equal(t, 2.0, rec.Geometry.StrokeWidth)

	h.dispatch(t, surface.CmdKey, surface.KeyDelete)
	assert.Empty(t, h.c.Annotations())
}

func TestTextPrompt(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))
	h.ui.prompt, h.ui.promptOK = "Hello", true

	require.NoError(t, h.c.SetTool("text"))
	h.dispatch(t, surface.CmdPointerUp, "50", "60")

	anns := h.c.Annotations()
	require.Len(t, anns, 1)
	assert.Equal(t, core.KindText, anns[0].Kind)
	assert.Equal(t, "Hello", anns[0].Geometry.Text)
	assert.Equal(t, core.FontSizeFor(4), anns[0].Geometry.FontSize)
	assert.Nil(t, anns[0].Window, "images have no window")
}

func TestSetTool_Unknown(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.c.SetTool("lasso"))
	assert.Equal(t, core.ToolSelect, h.c.Tool())
}

const importDoc = `{
  "naturalWidth": 640, "naturalHeight": 480, "mediaType": "image",
  "annotations": [
    {"id": "a", "type": "rect-fill", "geometry": {"x": 0, "y": 0, "width": 10, "height": 10, "fill": "#000000"}},
    {"id": "b", "type": "blob", "geometry": {}},
    {"id": "c", "type": "freehand-path", "geometry": {"points": [0, 0, 5, 5], "stroke": "#FF0000", "strokeWidth": 2}}
  ]
}`

func TestImport_AdoptsDimensionsWithoutMedia(t *testing.T) {
	h := newHarness(t)

	err := h.c.Import([]byte(importDoc))

	var verr *storage.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []int{1}, verr.Indices())
	assert.Len(t, h.c.Annotations(), 2)
	assert.Equal(t, core.Size{Width: 640, Height: 480}, h.c.Media().Natural())
	assert.Empty(t, h.ui.notes, "dropped records are not a failure")
}

func TestImport_MediaDimensionsWin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))

	_ = h.c.Import([]byte(importDoc))

	assert.Equal(t, core.Size{Width: 800, Height: 600}, h.c.Media().Natural())
	assert.Len(t, h.mainShapes(), 2)
}

func TestImport_MalformedKeepsAnnotations(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})

	err := h.c.Import([]byte("{"))

	require.Error(t, err)
	assert.Len(t, h.c.Annotations(), 1)
	assert.Len(t, h.mainShapes(), 1)
	assert.Equal(t, []string{"Failed to load annotations."}, h.ui.notes)
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(videoSource()))
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})

	doc := h.c.ExportDocument()
	assert.Equal(t, "video", doc.MediaType)
	assert.Equal(t, 1920.0, doc.NaturalWidth)
	require.Len(t, doc.Annotations, 1)

	data, err := h.c.ExportJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"naturalHeight": 1080`)

	yml, err := h.c.Encode("yaml")
	require.NoError(t, err)
	assert.Contains(t, string(yml), "mediaType: video")

	path, err := h.c.ExportFile()
	require.NoError(t, err)
	assert.Equal(t, "clip_20240115_143045.json", filepath.Base(path))
	assert.FileExists(t, path)
}

func TestExportFile_NotReady(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.ExportFile()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestClearAllAndReset(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Config.DefaultTool = "arrow" })
	src := imageSource()
	require.NoError(t, h.c.Load(src))
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})

	h.c.ClearAll()
	assert.Empty(t, h.c.Annotations())
	assert.Empty(t, h.mainShapes())

	h.draw(t, core.ToolRectFill, [2]float64{10, 10}, [2]float64{100, 100})
	h.c.Reset()
	assert.Equal(t, LifecycleNone, h.c.Lifecycle())
	assert.Empty(t, h.c.Annotations())
	assert.Equal(t, 1, src.closed)
	assert.Equal(t, core.ToolArrow, h.c.Tool(), "tool returns to the configured default")
	assert.False(t, h.disp.HasHandler(surface.CmdPointerDown))
	h.c.Inspect(func(m *surface.Surface) {
		assert.False(t, m.Mounted())
		assert.Equal(t, m.Mounts(), m.Unmounts())
	})
}

func TestSnapshot_BurnsInAnnotations(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))
	h.c.Resize(400, 300)
	require.True(t, h.c.FlushResize())
	h.c.SetStyle("#FF0000", 4)
	h.draw(t, core.ToolRectFill, [2]float64{50, 50}, [2]float64{100, 100})

	var buf bytes.Buffer
	require.NoError(t, h.c.SaveSnapshot(context.Background(), &buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds(), "snapshot is at natural size")
	r, g, b, _ := img.At(150, 150).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Less(t, g, uint32(0x0a00))
	assert.Less(t, b, uint32(0x0a00))
	r, g, b, _ = img.At(20, 20).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})

	assert.Equal(t, "annotated_image.png", h.c.SnapshotName())
}

func TestSnapshot_Errors(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Compositor = failingCompositor{} })
	_, err := h.c.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)

	src := videoSource()
	src.frame = image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	require.NoError(t, h.c.Load(src))
	require.NoError(t, h.c.Seek(2.5))
	assert.Equal(t, "annotated_snapshot_2.5s.png", h.c.SnapshotName())

	require.NoError(t, h.c.Play())
	_, err = h.c.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrPlaying)
	require.NoError(t, h.c.Pause())

	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})
	_, err = h.c.Snapshot(context.Background())
	var cerr *composite.CompositeError
	require.ErrorAs(t, err, &cerr)
	assert.Len(t, h.c.Annotations(), 1, "annotations untouched")
	require.Len(t, h.ui.notes, 1)
	assert.True(t, strings.HasPrefix(h.ui.notes[0], "Failed to capture annotations"))

	src.frameErr = errors.New("decoder gone")
	_, err = h.c.Snapshot(context.Background())
	assert.Error(t, err)
	assert.Len(t, h.ui.notes, 2)
}

func TestPreview_IsolatedAndDrivenByClock(t *testing.T) {
	h := newHarness(t)
	h.c.Resize(960, 540)
	require.NoError(t, h.c.Load(videoSource()))
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})
	require.NoError(t, h.c.Seek(5))
	h.draw(t, core.ToolArrow, [2]float64{10, 200}, [2]float64{100, 200})
	require.NoError(t, h.c.Seek(0))

	require.NoError(t, h.c.OpenPreview(core.Size{Width: 480, Height: 270}))
	assert.True(t, h.c.PreviewOpen())

	scene, at, err := h.c.PreviewScene()
	require.NoError(t, err)
	assert.Equal(t, 0.0, at)
	assert.InDelta(t, 0.25, scene.Scale, 1e-9)
	require.Len(t, scene.Shapes, 1)
	assert.Equal(t, "ann-1", scene.Shapes[0].ID)
	assert.Equal(t, []float64{5, 5, 50, 5}, scene.Shapes[0].Geometry.Points)

	h.draw(t, core.ToolArrow, [2]float64{10, 400}, [2]float64{100, 400})
	assert.Len(t, h.c.Annotations(), 3)

	h.now.Add(int64(5500 * time.Millisecond))
	require.Eventually(t, func() bool {
		_, at, _ := h.c.PreviewScene()
		return at == 5.5
	}, 2*time.Second, 5*time.Millisecond)

	scene, _, err = h.c.PreviewScene()
	require.NoError(t, err)
	require.Len(t, scene.Shapes, 1)
	assert.Equal(t, "ann-2", scene.Shapes[0].ID, "edits after opening never reach the preview")

	require.NoError(t, h.c.AdvancePreview(0.5))
	scene, _, _ = h.c.PreviewScene()
	require.Len(t, scene.Shapes, 1)
	assert.Equal(t, "ann-1", scene.Shapes[0].ID)

	h.c.ClosePreview()
	assert.False(t, h.c.PreviewOpen())
	assert.ErrorIs(t, h.c.AdvancePreview(1), ErrNoPreview)
	h.c.ClosePreview()
}

func TestPreview_Preconditions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(imageSource()))
	assert.ErrorIs(t, h.c.OpenPreview(core.Size{Width: 100, Height: 100}), ErrNotVideo)

	require.NoError(t, h.c.Load(videoSource()))
	require.NoError(t, h.c.Play())
	assert.ErrorIs(t, h.c.OpenPreview(core.Size{Width: 100, Height: 100}), ErrPlaying)
	require.NoError(t, h.c.Pause())
	assert.Error(t, h.c.OpenPreview(core.Size{}))
	assert.False(t, h.c.PreviewOpen())

	require.NoError(t, h.c.OpenPreview(core.Size{Width: 100, Height: 100}))
	h.c.Reset()
	assert.False(t, h.c.PreviewOpen(), "reset closes the preview")
}

func TestResize_Debounced(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Config.ResizeDebounce = 10 * time.Millisecond })
	require.NoError(t, h.c.Load(imageSource()))

	h.c.Resize(100, 100)
	h.c.Resize(300, 300)
	h.c.Resize(400, 400)

	require.Eventually(t, func() bool {
		return h.c.Media().Scale() == 0.5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, core.Size{Width: 400, Height: 300}, h.c.Media().Render())
}

func TestResize_PostedToMailbox(t *testing.T) {
	mb := task.NewMailbox()
	h := newHarness(t, func(o *Options) { o.Post = mb.Post })
	require.NoError(t, h.c.Load(imageSource()))

	h.c.Resize(400, 400)
	require.True(t, h.c.FlushResize())
	assert.Equal(t, 1.0, h.c.Media().Scale(), "nothing runs before the owner drains")

	assert.Equal(t, 1, mb.Drain())
	assert.Equal(t, 0.5, h.c.Media().Scale())
}

func TestLogContext(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Load(videoSource()))
	require.NoError(t, h.c.SetTool("arrow"))
	h.draw(t, core.ToolArrow, [2]float64{10, 10}, [2]float64{100, 10})

	attrs := map[string]string{}
	for _, a := range h.c.LogContext() {
		attrs[a.Key] = a.Value.String()
	}
	assert.Equal(t, "video", attrs["mediaType"])
	assert.Equal(t, "arrow", attrs["tool"])
	assert.Equal(t, "1", attrs["annotations"])
}

func TestRegisterHandlers(t *testing.T) {
	h := newHarness(t)
	h.c.RegisterHandlers(context.Background(), h.disp)
	require.NoError(t, h.c.Load(videoSource()))

	h.dispatch(t, CmdResize, "960", "540")
	h.c.FlushResize()
	h.dispatch(t, CmdSeek, "2")
	h.dispatch(t, CmdTool, "rect-stroke")
	h.dispatch(t, CmdStyle, "#00FF00", "6")
	assert.Equal(t, core.Style{Color: "#00FF00", Width: 6}, h.c.Style())

	h.dispatch(t, surface.CmdPointerDown, "10", "10")
	h.dispatch(t, surface.CmdPointerMove, "50", "50")
	h.dispatch(t, surface.CmdPointerUp, "50", "50")
	require.Len(t, h.c.Annotations(), 1)
	assert.Equal(t, 6.0, h.c.Annotations()[0].Geometry.StrokeWidth)

	out := h.dispatch(t, CmdExport)
	assert.Contains(t, out.(string), `"rect-stroke"`)
	path := h.dispatch(t, CmdExport, "file").(string)
	assert.FileExists(t, path)

	h.dispatch(t, CmdClear)
	assert.Empty(t, h.c.Annotations())
	h.dispatch(t, CmdImport, path)
	assert.Len(t, h.c.Annotations(), 1)

	h.dispatch(t, CmdPlay)
	assert.True(t, h.c.Playing())
	h.dispatch(t, CmdTick, "2.5")
	h.dispatch(t, CmdPause)
	h.dispatch(t, CmdEnded)
	assert.Equal(t, 0.0, h.c.Position())

	h.dispatch(t, CmdPreviewOpen, "480", "270")
	assert.True(t, h.c.PreviewOpen())
	h.dispatch(t, CmdPreviewClose)
	assert.False(t, h.c.PreviewOpen())

	_, err := h.disp.Dispatch(dispatcher.Event{Command: CmdPreviewOpen, Args: []string{"wide"}})
	assert.Error(t, err)
	_, err = h.disp.Dispatch(dispatcher.Event{Command: CmdTool, Args: []string{"lasso"}})
	assert.Error(t, err)
	_, err = h.disp.Dispatch(dispatcher.Event{Command: CmdSeek})
	assert.Error(t, err)

	h.dispatch(t, CmdReset)
	assert.Equal(t, LifecycleNone, h.c.Lifecycle())
}

func TestRegisterHandlers_SnapshotAndLoad(t *testing.T) {
	h := newHarness(t)
	h.c.RegisterHandlers(context.Background(), h.disp)

	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	still := filepath.Join(dir, "still.png")
	require.NoError(t, os.WriteFile(still, buf.Bytes(), 0644))

	h.dispatch(t, CmdLoad, still)
	assert.Equal(t, LifecycleReady, h.c.Lifecycle())
	assert.Equal(t, core.Size{Width: 40, Height: 30}, h.c.Media().Natural())

	out := filepath.Join(dir, "snap.png")
	assert.Equal(t, out, h.dispatch(t, CmdSnapshot, out))
	assert.FileExists(t, out)
}

func TestLifecycleString(t *testing.T) {
	assert.Equal(t, "none", LifecycleNone.String())
	assert.Equal(t, "loading", LifecycleLoading.String())
	assert.Equal(t, "ready", LifecycleReady.String())
	assert.Equal(t, "lifecycle(9)", Lifecycle(9).String())
}
