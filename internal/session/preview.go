package session

import (
	"context"
	"math"
	"time"

	"github.com/OCAP2/annotator/internal/media"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage/memory"
	"github.com/OCAP2/annotator/internal/surface"
	"github.com/OCAP2/annotator/internal/task"
	"github.com/OCAP2/annotator/internal/visibility"
)

// Preview plays the video from the paused position with a read-only copy
// of the annotations. Edits made on the main surface while it is open do
// not reach it.
type Preview struct {
	media   *media.Context
	store   *memory.Store
	surface *surface.Surface
	ticker  *task.Ticker

	start    float64
	started  time.Time
	duration float64
	clocked  float64
	last     float64
}

// OpenPreview opens a preview sized to fit viewport. The main video must be
// paused. An open preview is replaced.
func (c *Controller) OpenPreview(viewport core.Size) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireVideo(); err != nil {
		return err
	}
	if c.playing {
		return ErrPlaying
	}
	c.closePreviewLocked()

	pm := media.NewContext()
	pm.Load(c.media.Info())
	if _, _, err := pm.Fit(viewport); err != nil {
		return err
	}

	p := &Preview{
		media:    pm,
		store:    c.store.Clone(pm),
		start:    c.media.Position(),
		started:  c.opts.Now(),
		duration: c.media.Info().Duration,
		clocked:  c.media.Position(),
		last:     -1,
	}
	render := pm.Render()
	p.surface = surface.New("preview", surface.ModeReadOnly, nil, surface.Options{
		Resolver: visibility.New(c.opts.Config.TimeThreshold, c.opts.Config.DefaultDurationSeconds),
		Logger:   c.log,
	})
	p.surface.Mount(render.Width, render.Height)
	if err := p.surface.RebuildFrom(p.store, pm.Scale()); err != nil {
		p.surface.Unmount()
		return err
	}
	p.advance(p.start)

	c.preview = p
	p.ticker = task.StartTicker(context.Background(), c.opts.Config.PreviewTick, func(context.Context) {
		c.locked(func() { c.tickPreview(p) })
	})
	c.log.Info("preview opened", "start", p.start, "annotations", p.store.Len())
	return nil
}

// tickPreview runs under mu. A tick that races with close sees a different
// preview and does nothing.
func (c *Controller) tickPreview(p *Preview) {
	if c.preview != p {
		return
	}
	t := p.clock(c.opts.Now())
	if t == p.clocked {
		return
	}
	p.clocked = t
	p.advance(t)
}

// clock maps wall time to the preview playhead.
func (p *Preview) clock(now time.Time) float64 {
	t := p.start + now.Sub(p.started).Seconds()
	if p.duration > 0 {
		t = math.Min(t, p.duration)
	}
	return t
}

// advance re-resolves visibility when the playhead moved.
func (p *Preview) advance(t float64) {
	if t == p.last {
		return
	}
	p.last = t
	p.media.SetPosition(t)
	p.surface.ApplyVisibility(visibility.At(t))
}

// ClosePreview stops the preview clock and releases the preview surface.
func (c *Controller) ClosePreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closePreviewLocked()
}

func (c *Controller) closePreviewLocked() {
	p := c.preview
	if p == nil {
		return
	}
	c.preview = nil
	p.ticker.Stop()
	p.surface.Unmount()
	p.store.Clear()
	p.media.Reset()
	c.log.Info("preview closed", "ticks", p.ticker.Ticks())
}

// PreviewOpen reports whether a preview is open.
func (c *Controller) PreviewOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview != nil
}

// PreviewScene returns the preview's visible shapes and playhead.
func (c *Controller) PreviewScene() (surface.Scene, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return surface.Scene{}, 0, ErrNoPreview
	}
	return c.preview.surface.Snapshot(), c.preview.last, nil
}

// AdvancePreview drives the preview clock by hand, for callers that replay
// a session without real time passing.
func (c *Controller) AdvancePreview(t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return ErrNoPreview
	}
	c.preview.advance(t)
	return nil
}
