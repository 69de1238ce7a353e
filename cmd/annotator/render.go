package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OCAP2/annotator/internal/media"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage"
	"golang.org/x/sync/errgroup"
)

// logUI is the UI of a headless session: nothing is prompted and
// notifications go to the log.
type logUI struct {
	log *slog.Logger
}

func (u logUI) PromptText() (string, bool) { return "", false }

func (u logUI) StyleChanged(core.Style) {}

func (u logUI) Notify(msg string) {
	u.log.Warn(msg)
}

// render writes one snapshot per --at position of the annotated media.
// Each position gets its own session, so renders run in parallel.
func (a *app) render(ctx context.Context, mediaPath string) error {
	doc, err := os.ReadFile(a.doc)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	if err := os.MkdirAll(a.outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	positions, err := a.positions(ctx, mediaPath)
	if err != nil {
		return err
	}

	paths := make([]string, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.workers))
	for i, t := range positions {
		g.Go(func() error {
			path, err := a.renderAt(gctx, mediaPath, doc, t)
			if err != nil {
				return fmt.Errorf("rendering at %.2fs: %w", t, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintln(a.stdout, p)
	}
	a.log.Info("render finished", "media", mediaPath, "snapshots", len(paths))
	return nil
}

// positions returns the requested positions for a video, or a single
// position for a still image.
func (a *app) positions(ctx context.Context, mediaPath string) ([]float64, error) {
	src, err := media.Open(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	info := src.Info()
	if err := src.Close(); err != nil {
		a.log.Warn("closing media", "error", err)
	}
	if info.Type != core.MediaVideo || len(a.at) == 0 {
		return []float64{0}, nil
	}
	return a.at, nil
}

func (a *app) renderAt(ctx context.Context, mediaPath string, doc []byte, t float64) (string, error) {
	log := a.slogs.Component("render").With("position", t)
	ctrl := a.newSession(logUI{log: log}, nil, nil, log)
	defer ctrl.Close()

	if err := ctrl.Open(ctx, mediaPath); err != nil {
		return "", err
	}
	if err := ctrl.Import(doc); err != nil {
		var verr *storage.ValidationError
		if !errors.As(err, &verr) || verr.Reason != "" {
			return "", err
		}
	}
	if ctrl.Media().Type() == core.MediaVideo {
		if err := ctrl.Seek(t); err != nil {
			return "", err
		}
	}

	path := filepath.Join(a.outDir, ctrl.SnapshotName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	if err := ctrl.SaveSnapshot(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	return path, nil
}
