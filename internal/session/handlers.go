package session

import (
	"context"
	"fmt"
	"os"

	"github.com/OCAP2/annotator/internal/dispatcher"
	"github.com/OCAP2/annotator/internal/model/core"
)

// Session commands. Pointer and key commands belong to the main surface
// and are registered while it is mounted.
const (
	CmdLoad         = ":LOAD:"
	CmdReset        = ":RESET:"
	CmdTool         = ":TOOL:"
	CmdStyle        = ":STYLE:"
	CmdSeek         = ":SEEK:"
	CmdTick         = ":TICK:"
	CmdPlay         = ":PLAY:"
	CmdPause        = ":PAUSE:"
	CmdEnded        = ":ENDED:"
	CmdResize       = ":RESIZE:"
	CmdClear        = ":CLEAR:"
	CmdExport       = ":EXPORT:"
	CmdImport       = ":IMPORT:"
	CmdSnapshot     = ":SNAPSHOT:"
	CmdPreviewOpen  = ":PREVIEW:OPEN:"
	CmdPreviewClose = ":PREVIEW:CLOSE:"
)

// RegisterHandlers registers the session commands with d.
func (c *Controller) RegisterHandlers(ctx context.Context, d *dispatcher.Dispatcher) {
	d.Register(CmdLoad, func(e dispatcher.Event) (any, error) {
		return nil, c.Open(ctx, e.Arg(0))
	}, dispatcher.Logged())

	d.Register(CmdReset, func(e dispatcher.Event) (any, error) {
		c.Reset()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdTool, func(e dispatcher.Event) (any, error) {
		return nil, c.SetTool(e.Arg(0))
	}, dispatcher.Logged())

	d.Register(CmdStyle, c.handleStyle, dispatcher.Logged())

	d.Register(CmdSeek, c.timeHandler(c.Seek), dispatcher.Logged())
	// Ticks arrive several times a second; not logged.
	d.Register(CmdTick, c.timeHandler(c.Tick))

	d.Register(CmdPlay, func(e dispatcher.Event) (any, error) {
		return nil, c.Play()
	}, dispatcher.Logged())

	d.Register(CmdPause, func(e dispatcher.Event) (any, error) {
		return nil, c.Pause()
	}, dispatcher.Logged())

	d.Register(CmdEnded, func(e dispatcher.Event) (any, error) {
		return nil, c.Ended()
	}, dispatcher.Logged())

	d.Register(CmdResize, func(e dispatcher.Event) (any, error) {
		wh, err := e.Floats(2)
		if err != nil {
			return nil, err
		}
		c.Resize(wh[0], wh[1])
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdClear, func(e dispatcher.Event) (any, error) {
		c.ClearAll()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdExport, c.handleExport, dispatcher.Logged())

	d.Register(CmdImport, func(e dispatcher.Event) (any, error) {
		return nil, c.ImportFile(e.Arg(0))
	}, dispatcher.Logged())

	d.Register(CmdSnapshot, func(e dispatcher.Event) (any, error) {
		return c.writeSnapshot(ctx, e.Arg(0))
	}, dispatcher.Logged())

	d.Register(CmdPreviewOpen, func(e dispatcher.Event) (any, error) {
		wh, err := e.Floats(2)
		if err != nil {
			return nil, err
		}
		return nil, c.OpenPreview(core.Size{Width: wh[0], Height: wh[1]})
	}, dispatcher.Logged())

	d.Register(CmdPreviewClose, func(e dispatcher.Event) (any, error) {
		c.ClosePreview()
		return nil, nil
	}, dispatcher.Logged())
}

// handleStyle takes "color" and an optional "width".
func (c *Controller) handleStyle(e dispatcher.Event) (any, error) {
	var width float64
	if len(e.Args) > 1 {
		w, err := e.Float(1)
		if err != nil {
			return nil, err
		}
		width = w
	}
	c.SetStyle(e.Arg(0), width)
	return nil, nil
}

func (c *Controller) timeHandler(fn func(float64) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		t, err := e.Float(0)
		if err != nil {
			return nil, err
		}
		return nil, fn(t)
	}
}

// handleExport returns the JSON document, or with a "file" argument writes
// it to the output directory and returns the path.
func (c *Controller) handleExport(e dispatcher.Event) (any, error) {
	if e.Arg(0) == "file" {
		return c.ExportFile()
	}
	data, err := c.ExportJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// writeSnapshot writes a PNG to path, or to SnapshotName when path is empty.
func (c *Controller) writeSnapshot(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = c.SnapshotName()
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	if err := c.SaveSnapshot(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	return path, nil
}
