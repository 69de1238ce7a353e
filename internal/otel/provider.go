// Package otel wires the OpenTelemetry log pipeline that mirrors session
// logs to a file and, optionally, to an OTLP collector.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OCAP2/annotator/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNoSink is returned when telemetry is enabled with nowhere to send it.
var ErrNoSink = errors.New("otel enabled but neither a log writer nor an endpoint is set")

// Config selects the log sinks.
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	// LogWriter receives pretty-printed records. Optional when Endpoint is set.
	LogWriter io.Writer
	// Endpoint is an OTLP/HTTP collector address such as "localhost:4318".
	Endpoint string
	Insecure bool
}

// FromSettings builds a Config from the loaded otel settings.
func FromSettings(s config.OTelConfig, logWriter io.Writer) Config {
	return Config{
		Enabled:      s.Enabled,
		ServiceName:  s.ServiceName,
		BatchTimeout: s.BatchTimeout,
		LogWriter:    logWriter,
		Endpoint:     s.Endpoint,
		Insecure:     s.Insecure,
	}
}

// Provider owns the log pipeline. A disabled Provider is valid and does
// nothing.
type Provider struct {
	cfg   Config
	logs  *sdklog.LoggerProvider
	sinks int
}

// New builds the pipeline described by cfg.
func New(cfg Config) (*Provider, error) {
	p := &Provider{cfg: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	exporters, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(exporters) == 0 {
		return nil, ErrNoSink
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)),
		))
	}
	p.logs = sdklog.NewLoggerProvider(opts...)
	p.sinks = len(exporters)
	return p, nil
}

func newExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating file log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}
	return out, nil
}

// LoggerProvider is handed to the otelslog bridge. Nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a meter from the global provider. Instruments are no-ops
// unless the host installs a meter provider.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Sinks reports how many exporters are attached.
func (p *Provider) Sinks() int {
	return p.sinks
}

// Flush exports buffered records. The CLI calls it before exiting so the
// log trail is complete.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flushing otel logs: %w", err)
	}
	return nil
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("stopping otel logs: %w", err)
	}
	return nil
}

func (p *Provider) Enabled() bool {
	return p.cfg.Enabled
}
