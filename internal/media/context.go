package media

import (
	"sync"

	"github.com/OCAP2/annotator/internal/geo"
	"github.com/OCAP2/annotator/internal/model/core"
)

// Context holds the loaded medium and its current render mapping
type Context struct {
	mu       sync.RWMutex
	info     Info
	render   core.Size
	scale    float64
	position float64
}

// NewContext creates a new Context with nothing loaded
func NewContext() *Context {
	return &Context{scale: 1}
}

// Type returns the loaded media type
func (mc *Context) Type() core.MediaType {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.info.Type
}

// Natural returns the source pixel dimensions
func (mc *Context) Natural() core.Size {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.info.Natural
}

// Render returns the on-screen pixel dimensions
func (mc *Context) Render() core.Size {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.render
}

// Scale returns renderWidth / naturalWidth
func (mc *Context) Scale() float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.scale
}

// Info returns the description of the loaded medium
func (mc *Context) Info() Info {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.info
}

// Ready reports whether a medium with usable dimensions is loaded
func (mc *Context) Ready() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.info.Type != core.MediaNone && !mc.info.Natural.Empty()
}

// Load sets the current medium. The render mapping is reset to 1:1 until Fit.
func (mc *Context) Load(info Info) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.info = info
	mc.render = info.Natural
	mc.scale = 1
	mc.position = 0
}

// SetNatural overrides the natural size, used when an import supplies
// dimensions before any medium reported its own.
func (mc *Context) SetNatural(n core.Size) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.info.Natural = n
}

// Fit recomputes render size and scale so the medium fits box without
// being enlarged. On error the previous mapping is kept.
func (mc *Context) Fit(box core.Size) (float64, core.Size, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	s, render, err := geo.FitScale(mc.info.Natural, box)
	if err != nil {
		return 0, core.Size{}, err
	}
	mc.scale = s
	mc.render = render
	return s, render, nil
}

// Position returns the playback position in seconds
func (mc *Context) Position() float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.position
}

// SetPosition records the playback position
func (mc *Context) SetPosition(t float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.position = t
}

// Reset forgets the loaded medium
func (mc *Context) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.info = Info{}
	mc.render = core.Size{}
	mc.scale = 1
	mc.position = 0
}
