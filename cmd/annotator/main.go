package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/OCAP2/annotator/internal/config"
	"github.com/OCAP2/annotator/internal/dispatcher"
	"github.com/OCAP2/annotator/internal/logging"
	"github.com/OCAP2/annotator/internal/otel"
	"github.com/OCAP2/annotator/internal/session"
	"github.com/OCAP2/annotator/internal/task"
	"github.com/spf13/pflag"
)

const appName = "annotator"

// Build information. Populated at build-time.
var (
	BuildVersion string = "dev"
	BuildDate    string
)

const usage = `usage: annotator [flags] <command> [args]

commands:
  replay <script>     run a command script against one session
  render <media>      burn annotations into snapshots (--doc, --at)
  validate <doc>...   check annotation documents
  version             print the build version

flags:
`

// app carries what every command needs.
type app struct {
	stdout io.Writer
	stderr io.Writer
	slogs  *logging.SlogManager
	log    *slog.Logger
	disp   *logging.DispatcherLogger

	doc     string
	at      []float64
	outDir  string
	workers int
	strict  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	a := &app{stdout: stdout, stderr: stderr}
	configDir := fs.String("config", ".", "directory containing "+config.ConfigName)
	fs.String("logLevel", "info", "log level: debug, info, warn, error")
	fs.String("logsDir", "./annotatorlogs", `log directory, "-" logs to stderr`)
	fs.String("export.outputDir", "./exports", "directory export files are written to")
	fs.String("export.format", "json", "export format: json, yaml or toml")
	fs.Bool("export.compressOutput", false, "gzip export files")
	fs.Float64("annotator.containerPadding", 32, "padding subtracted from the container before fitting")
	fs.StringVar(&a.doc, "doc", "", "annotation document to render")
	fs.Float64SliceVar(&a.at, "at", nil, "video positions to render, in seconds")
	fs.StringVar(&a.outDir, "out", ".", "directory snapshots are written to")
	fs.IntVar(&a.workers, "workers", runtime.NumCPU(), "parallel renders")
	fs.BoolVar(&a.strict, "strict", false, "stop a replay at the first failing line")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	configErr := config.Load(*configDir)
	if err := config.BindFlags(fs); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}

	cleanup, err := a.setupLogging(time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}
	defer cleanup()
	if configErr != nil {
		a.log.Warn("no config file, using defaults", "dir", *configDir, "error", configErr)
	}
	a.log.Info("starting", "version", BuildVersion, "buildDate", BuildDate, "command", fs.Arg(0))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "replay":
		if len(rest) != 1 {
			fs.Usage()
			return 2
		}
		err = a.replay(ctx, rest[0])
	case "render":
		if len(rest) != 1 || a.doc == "" {
			fs.Usage()
			return 2
		}
		err = a.render(ctx, rest[0])
	case "validate":
		if len(rest) == 0 {
			fs.Usage()
			return 2
		}
		err = a.validate(rest)
	case "version":
		fmt.Fprintf(stdout, "%s %s %s\n", appName, BuildVersion, BuildDate)
	default:
		fmt.Fprintf(stderr, "%s: unknown command %q\n", appName, cmd)
		fs.Usage()
		return 2
	}

	if err != nil {
		a.log.Error("command failed", "command", cmd, "error", err)
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

// setupLogging opens the session log, the optional OTel pipeline and the
// dispatcher's JSON log. The returned func flushes and closes them.
func (a *app) setupLogging(start time.Time) (func(), error) {
	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")

	var (
		logFile  io.Writer
		otelFile io.Writer
		closers  []io.Closer
	)
	if logsDir != "-" {
		f, err := logging.OpenLogFile(logsDir, appName, start)
		if err != nil {
			return nil, err
		}
		logFile = f
		closers = append(closers, f)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && logsDir != "-" {
		f, err := logging.OpenLogFile(logsDir, appName+".otel", start)
		if err != nil {
			return nil, err
		}
		otelFile = f
		closers = append(closers, f)
	}
	provider, err := otel.New(otel.FromSettings(otelCfg, otelFile))
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	a.slogs = logging.NewSlogManager()
	if logFile == nil {
		a.slogs.Setup(a.stderr, level, provider.LoggerProvider())
		a.disp = logging.NewDispatcherLoggerTo(a.stderr, level)
	} else {
		a.slogs.Setup(logFile, level, provider.LoggerProvider())
		a.disp = logging.NewDispatcherLoggerTo(logFile, level)
	}
	a.log = a.slogs.Component("cli")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Flush(ctx); err != nil {
			fmt.Fprintf(a.stderr, "%s: %v\n", appName, err)
		}
		if err := provider.Shutdown(ctx); err != nil {
			fmt.Fprintf(a.stderr, "%s: %v\n", appName, err)
		}
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

func (a *app) newSession(ui session.UI, d *dispatcher.Dispatcher, post task.Executor, log *slog.Logger) *session.Controller {
	return session.New(ui, session.Options{
		Config:     config.GetAnnotatorConfig(),
		Export:     config.GetExportConfig(),
		Dispatcher: d,
		Logger:     log,
		Post:       post,
	})
}
