package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// Fanout delivers each record to every sink that accepts its level. It
// pairs the text log with the OTel bridge.
type Fanout []slog.Handler

// NewFanout drops nil sinks.
func NewFanout(sinks ...slog.Handler) Fanout {
	return slices.DeleteFunc(slices.Clone(sinks), func(h slog.Handler) bool { return h == nil })
}

func (f Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle keeps delivering after a sink fails and returns every failure.
func (f Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = errors.Join(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errs
}

func (f Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f Fanout) derive(fn func(slog.Handler) slog.Handler) Fanout {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// ContextProvider returns attributes describing the live session.
type ContextProvider func() []slog.Attr

// LiveHandler asks its provider for the session attributes on every record,
// so a log line shows the media, tool and annotation count at the moment
// it was written. Empty string attributes, such as the tool before one is
// chosen, are left out.
type LiveHandler struct {
	next slog.Handler
	live ContextProvider
}

func NewLiveHandler(next slog.Handler, live ContextProvider) *LiveHandler {
	return &LiveHandler{next: next, live: live}
}

func (h *LiveHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *LiveHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.live == nil {
		return h.next.Handle(ctx, r)
	}
	for _, a := range h.live() {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			continue
		}
		r.AddAttrs(a)
	}
	return h.next.Handle(ctx, r)
}

func (h *LiveHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewLiveHandler(h.next.WithAttrs(attrs), h.live)
}

func (h *LiveHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewLiveHandler(h.next.WithGroup(name), h.live)
}
