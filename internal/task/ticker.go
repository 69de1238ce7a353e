package task

import (
	"context"
	"sync"
	"time"
)

// Ticker calls fn on every tick until it is stopped or its parent context
// is cancelled. Stop cancels exactly once no matter how often it is called.
type Ticker struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu    sync.Mutex
	ticks int
}

// StartTicker launches the tick loop. fn receives the ticker's context; no
// new tick starts once Stop has been called.
func StartTicker(ctx context.Context, interval time.Duration, fn func(context.Context)) *Ticker {
	ctx, cancel := context.WithCancel(ctx)
	t := &Ticker{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
				t.mu.Lock()
				t.ticks++
				t.mu.Unlock()
			}
		}
	}()
	return t
}

// Stop cancels the tick loop. It does not wait; use Done for that.
func (t *Ticker) Stop() {
	t.once.Do(t.cancel)
}

// Done is closed once the tick loop has exited.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// Ticks returns how many ticks have completed.
func (t *Ticker) Ticks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}
