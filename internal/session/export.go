package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/OCAP2/annotator/internal/composite"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage"
)

// ExportDocument returns the export document for the current annotations.
func (c *Controller) ExportDocument() storage.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Serialize()
}

// ExportJSON returns the export document as indented JSON.
func (c *Controller) ExportJSON() ([]byte, error) {
	return c.Encode("json")
}

// Encode returns the export document in format ("json", "yaml" or "toml").
func (c *Controller) Encode(format string) ([]byte, error) {
	codec, err := storage.NewCodec(format)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Encode(codec)
}

// ExportFile writes the export document into the configured output
// directory and returns its path.
func (c *Controller) ExportFile() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle != LifecycleReady {
		return "", ErrNotReady
	}
	path, err := c.store.Export(c.opts.Export, c.media.Info().Name, c.opts.Now())
	if err != nil {
		return "", fmt.Errorf("exporting annotations: %w", err)
	}
	c.log.Info("annotations exported", "path", path, "count", c.store.Len())
	return path, nil
}

// Import replaces the annotations with the records of an export document.
// A document that cannot be read at all leaves the annotations untouched
// and is reported to the user. Individually invalid records are dropped and
// reported through a *storage.ValidationError alongside the import.
func (c *Controller) Import(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, err := c.store.Import(data)
	var verr *storage.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr) && verr.Reason == "":
		c.log.Warn("dropped invalid annotations", "dropped", verr.Indices(), "kept", c.store.Len())
	default:
		c.log.Error("failed to load annotations", "error", err)
		if c.ui != nil {
			c.ui.Notify("Failed to load annotations.")
		}
		return err
	}

	c.reconcile(meta)
	if c.main.Mounted() {
		if rerr := c.main.RebuildFrom(c.store, c.media.Scale()); rerr != nil {
			c.log.Warn("rebuilding after import", "error", rerr)
		}
		c.main.ApplyVisibility(c.timestamp())
	}
	c.log.Info("annotations imported", "count", c.store.Len())
	return err
}

// reconcile compares the document's natural size with the loaded media.
// Without media the document's size is adopted; with media, media wins.
func (c *Controller) reconcile(meta storage.Meta) {
	if meta.Natural.Empty() {
		return
	}
	if c.lifecycle != LifecycleReady {
		c.media.SetNatural(meta.Natural)
		c.log.Info("using dimensions from document", "width", meta.Natural.Width, "height", meta.Natural.Height)
		return
	}
	if n := c.media.Natural(); n.Width != meta.Natural.Width || n.Height != meta.Natural.Height {
		c.log.Warn("document dimensions differ from media",
			"documentWidth", meta.Natural.Width,
			"documentHeight", meta.Natural.Height,
			"mediaWidth", n.Width,
			"mediaHeight", n.Height,
		)
	}
}

// ImportFile reads path and imports it.
func (c *Controller) ImportFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return c.Import(data)
}

// ClearAll removes every annotation.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
	if c.main.Mounted() {
		if err := c.main.RebuildFrom(c.store, c.media.Scale()); err != nil {
			c.log.Warn("rebuilding after clear", "error", err)
		}
	}
	c.log.Info("all annotations cleared")
}

// Snapshot burns the visible annotations into the current frame at natural
// resolution. A video must be paused. Failures leave annotations untouched.
func (c *Controller) Snapshot(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle != LifecycleReady || c.source == nil {
		return nil, ErrNotReady
	}
	if c.media.Type() == core.MediaVideo && c.playing {
		return nil, ErrPlaying
	}

	c.main.ApplyVisibility(c.timestamp())
	frame, err := c.source.Frame(ctx, c.media.Position())
	if err != nil {
		c.notify("Could not draw %s: %v", c.media.Type(), err)
		return nil, err
	}
	img, err := c.opts.Compositor.Composite(ctx, frame, c.media.Natural(), c.main.Snapshot())
	if err != nil {
		c.notify("Failed to capture annotations: %v", err)
		return nil, err
	}
	return img, nil
}

// SaveSnapshot writes Snapshot as PNG to w.
func (c *Controller) SaveSnapshot(ctx context.Context, w io.Writer) error {
	img, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	return composite.WritePNG(w, img)
}

// SnapshotName is the suggested file name for the next snapshot.
func (c *Controller) SnapshotName() string {
	if c.media.Type() == core.MediaVideo {
		return fmt.Sprintf("annotated_snapshot_%.1fs.png", c.media.Position())
	}
	return "annotated_image.png"
}

func (c *Controller) notify(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Error(msg)
	if c.ui != nil {
		c.ui.Notify(msg)
	}
}
