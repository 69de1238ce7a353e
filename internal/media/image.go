package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/OCAP2/annotator/internal/model/core"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSource is a decoded still image.
type ImageSource struct {
	info Info
	img  image.Image
}

// OpenImage decodes the image at path.
func OpenImage(path string) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MediaError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return DecodeImage(filepath.Base(path), f)
}

// DecodeImage decodes r as a still image named name.
func DecodeImage(name string, r io.Reader) (*ImageSource, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, &MediaError{Op: "decode", Path: name, Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &MediaError{Op: "decode", Path: name, Err: fmt.Errorf("%s image has no pixels", format)}
	}
	return &ImageSource{
		info: Info{
			Name:    name,
			Type:    core.MediaImage,
			Natural: core.Size{Width: float64(b.Dx()), Height: float64(b.Dy())},
		},
		img: img,
	}, nil
}

func (s *ImageSource) Info() Info { return s.info }

func (s *ImageSource) Frame(ctx context.Context, _ float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *ImageSource) Close() error { return nil }
