// Package dispatcher routes host input events to the handlers the session
// and the drawing surface register for them.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a single registration.
type Option func(*registration)

type registration struct {
	logged bool
}

// Logged traces each call of the handler at debug level and its failures
// at error level.
func Logged() Option {
	return func(r *registration) { r.logged = true }
}

// Dispatcher routes events to registered handlers. Handlers run on the
// caller's goroutine; registering or unregistering from inside a handler
// is allowed.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  *instruments
}

type instruments struct {
	processed metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a meter provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
	ins, err := d.instrument(otel.Meter("github.com/OCAP2/annotator/internal/dispatcher"))
	if err != nil {
		return nil, err
	}
	d.metrics = ins
	return d, nil
}

func (d *Dispatcher) instrument(m metric.Meter) (*instruments, error) {
	_, err := m.Int64ObservableGauge("dispatcher.handlers.registered",
		metric.WithDescription("Handlers currently registered"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(d.Len()))
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handler gauge: %w", err)
	}

	ins := &instruments{}
	if ins.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events routed to a handler")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if ins.failed, err = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Events whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	return ins, nil
}

// Register installs h for command, replacing any earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.logged && d.logger != nil {
		h = d.traced(command, h)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[command] = h
}

// Unregister removes the handler for command and reports whether one existed.
func (d *Dispatcher) Unregister(command string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[command]; !ok {
		return false
	}
	delete(d.handlers, command)
	return true
}

// Dispatch runs the handler registered for e.Command. The lock is not
// held while the handler runs.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}

	result, err := h(e)

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("command", e.Command))
	d.metrics.processed.Add(ctx, 1, attrs)
	if err != nil {
		d.metrics.failed.Add(ctx, 1, attrs)
	}
	return result, err
}

func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Len returns the number of registered handlers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

func (d *Dispatcher) traced(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)
		elapsed := time.Since(start)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", elapsed, "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "command", command, "duration", elapsed)
		return result, nil
	}
}
