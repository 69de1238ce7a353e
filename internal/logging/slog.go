package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager owns the session logger. Records go to a text sink and,
// when a provider is given, through the otelslog bridge as well.
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider

	// console is the text sink used when Setup gets no file. Stdout is
	// reserved for command results.
	console io.Writer
}

func NewSlogManager() *SlogManager {
	return &SlogManager{console: os.Stderr}
}

// levelFromName maps a config level name to a slog level. Unknown names
// fall back to info.
func levelFromName(name string) slog.Level {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "warning" {
		name = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record times as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup replaces the logger. A nil file logs to the console, a nil
// provider leaves OTel out.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	sink := file
	if sink == nil {
		sink = m.console
	}
	text := slog.NewTextHandler(sink, &slog.HandlerOptions{
		Level:       levelFromName(level),
		ReplaceAttr: utcTime,
	})

	m.provider = provider
	if provider == nil {
		m.logger = slog.New(text)
	} else {
		bridge := otelslog.NewHandler("annotator", otelslog.WithLoggerProvider(provider))
		m.logger = slog.New(NewFanout(text, bridge))
	}
	m.logger.Info("logging initialized", "level", level)
}

// WithContext stamps every later record with the attributes provider
// returns at the moment of logging.
func (m *SlogManager) WithContext(provider ContextProvider) {
	m.logger = slog.New(NewLiveHandler(m.Logger().Handler(), provider))
}

// Logger falls back to slog.Default until Setup runs.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With("component", name)
}

// Flush pushes buffered OTel records out. A no-op without a provider.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
