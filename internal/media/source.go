// Package media loads the raster or video underneath the annotations and
// tracks how it is currently mapped onto the screen.
package media

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/OCAP2/annotator/internal/model/core"
)

// Info describes a loaded medium.
type Info struct {
	Name     string
	Type     core.MediaType
	Natural  core.Size
	Duration float64
}

// Source supplies frames of a medium at its natural resolution.
type Source interface {
	Info() Info
	// Frame returns the frame shown at t seconds. Still images ignore t.
	Frame(ctx context.Context, t float64) (image.Image, error)
	Close() error
}

// MediaError reports a failure to load or decode media.
type MediaError struct {
	Op   string
	Path string
	Err  error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

var (
	imageExts = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
	}
)

// Open picks a Source for path by its extension.
func Open(ctx context.Context, path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return OpenImage(path)
	case videoExts[ext]:
		return OpenVideo(ctx, path, VideoOptions{})
	case ext == ".pdf":
		return OpenPDF(path)
	default:
		return nil, &MediaError{Op: "open", Path: path, Err: fmt.Errorf("unsupported file type %q", ext)}
	}
}
