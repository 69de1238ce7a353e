package session

import (
	"math"

	"github.com/OCAP2/annotator/internal/model/core"
)

// Play starts video playback. Drawing is disabled while playing.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireVideo(); err != nil {
		return err
	}
	c.playing = true
	c.main.ToolChanged(c.tool)
	c.log.Debug("playing", "position", c.media.Position())
	return nil
}

// Pause stops video playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireVideo(); err != nil {
		return err
	}
	c.playing = false
	c.log.Debug("paused", "position", c.media.Position())
	return nil
}

// Playing reports whether the video is playing.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Seek moves the playhead to t, clamped to the media duration, and
// re-resolves visibility.
func (c *Controller) Seek(t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireVideo(); err != nil {
		return err
	}
	c.seekLocked(t)
	return nil
}

// Tick reports the playhead position during playback.
func (c *Controller) Tick(t float64) error {
	return c.Seek(t)
}

// Ended rewinds a finished video to the start.
func (c *Controller) Ended() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireVideo(); err != nil {
		return err
	}
	c.playing = false
	c.seekLocked(0)
	return nil
}

// Position returns the playhead in seconds.
func (c *Controller) Position() float64 {
	return c.media.Position()
}

func (c *Controller) seekLocked(t float64) {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if d := c.media.Info().Duration; d > 0 && t > d {
		t = d
	}
	c.media.SetPosition(t)
	c.main.ApplyVisibility(c.timestamp())
}

func (c *Controller) requireVideo() error {
	if c.lifecycle != LifecycleReady {
		return ErrNotReady
	}
	if c.media.Type() != core.MediaVideo {
		return ErrNotVideo
	}
	return nil
}
