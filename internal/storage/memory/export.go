// internal/storage/memory/export.go
package memory

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/annotator/internal/config"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Serialize builds the export document in insertion order
func (s *Store) Serialize() storage.Document {
	doc := storage.Document{Annotations: make([]storage.AnnotationJSON, 0)}
	if s.media != nil {
		n := s.media.Natural()
		doc.NaturalWidth = n.Width
		doc.NaturalHeight = n.Height
		doc.MediaType = s.media.Type().String()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.records {
		doc.Annotations = append(doc.Annotations, storage.EncodeAnnotation(*a))
	}
	return doc
}

// Import decodes data and replaces the collection with the valid records.
// A document that cannot be read at all leaves the store untouched.
// Dropped records are reported through a *storage.ValidationError.
func (s *Store) Import(data []byte) (storage.Meta, error) {
	target := core.MediaNone
	if s.media != nil {
		target = s.media.Type()
	}
	meta, records, err := storage.Decode(data, storage.DecodeOptions{
		Target:          target,
		DefaultDuration: s.opts.DefaultDuration,
	})
	var verr *storage.ValidationError
	if err != nil && (!errors.As(err, &verr) || verr.Reason != "") {
		return meta, err
	}

	s.Replace(records)
	if verr != nil {
		dropped, cerr := otel.Meter(instrumentationName).Int64Counter(
			"store.import.dropped",
			metric.WithDescription("Annotation records dropped on import"),
		)
		if cerr == nil {
			dropped.Add(context.Background(), int64(len(verr.Dropped)))
		}
	}
	return meta, err
}

// Encode writes the export document with codec
func (s *Store) Encode(codec storage.Codec) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, s.Serialize()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export writes the document to cfg.OutputDir, named after the media and
// the time of export, and returns the written path.
func (s *Store) Export(cfg config.ExportConfig, mediaName string, at time.Time) (string, error) {
	codec, err := storage.NewCodec(cfg.Format)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(mediaName), filepath.Ext(mediaName))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.ReplaceAll(base, ":", "_")
	if base == "" || base == "." {
		base = "annotations"
	}
	timestamp := at.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s%s", base, timestamp, codec.Ext())
	if cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(cfg.OutputDir, filename)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if cfg.CompressOutput {
		err = s.writeGzip(outputPath, codec)
	} else {
		err = s.writePlain(outputPath, codec)
	}
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.lastExportPath = outputPath
	s.mu.Unlock()
	return outputPath, nil
}

// LastExportPath returns the path of the most recent Export
func (s *Store) LastExportPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastExportPath
}

func (s *Store) writePlain(path string, codec storage.Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return codec.Encode(f, s.Serialize())
}

func (s *Store) writeGzip(path string, codec storage.Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	return codec.Encode(gzWriter, s.Serialize())
}
