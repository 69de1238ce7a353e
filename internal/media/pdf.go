package media

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"sync"

	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/gen2brain/go-fitz"
)

// pdfDPI renders pages at their point size so natural pixels equal points.
const pdfDPI = 72.0

// PDFSource presents a PDF as media. A single page is a still image; a
// multi-page document plays as a video showing each page for one second.
type PDFSource struct {
	path string
	info Info

	mu  sync.Mutex
	doc *fitz.Document
}

// OpenPDF opens the document at path.
func OpenPDF(path string) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &MediaError{Op: "open", Path: path, Err: err}
	}
	pages := doc.NumPage()
	if pages == 0 {
		doc.Close()
		return nil, &MediaError{Op: "open", Path: path, Err: fmt.Errorf("document has no pages")}
	}
	rect, err := doc.Bound(0)
	if err != nil {
		doc.Close()
		return nil, &MediaError{Op: "open", Path: path, Err: err}
	}

	info := Info{
		Name:    filepath.Base(path),
		Type:    core.MediaImage,
		Natural: core.Size{Width: float64(rect.Dx()), Height: float64(rect.Dy())},
	}
	if pages > 1 {
		info.Type = core.MediaVideo
		info.Duration = float64(pages)
	}
	return &PDFSource{path: path, info: info, doc: doc}, nil
}

func (s *PDFSource) Info() Info { return s.info }

// Page returns the zero-based page shown at t.
func (s *PDFSource) Page(t float64) int {
	if s.info.Type != core.MediaVideo || !(t > 0) {
		return 0
	}
	return min(int(math.Floor(t)), int(s.info.Duration)-1)
}

func (s *PDFSource) Frame(ctx context.Context, t float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, &MediaError{Op: "frame", Path: s.path, Err: fmt.Errorf("document closed")}
	}
	img, err := s.doc.ImageDPI(s.Page(t), pdfDPI)
	if err != nil {
		return nil, &MediaError{Op: "frame", Path: s.path, Err: err}
	}
	return img, nil
}

func (s *PDFSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}
