package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/OCAP2/annotator/internal/config"
	"github.com/OCAP2/annotator/internal/storage"
)

// validate decodes each document and reports what an import would keep.
// Dropped records are reported but only unreadable documents fail.
func (a *app) validate(paths []string) error {
	opts := storage.DecodeOptions{
		DefaultDuration: config.GetAnnotatorConfig().DefaultDurationSeconds,
	}

	var bad int
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			bad++
			fmt.Fprintf(a.stdout, "%s: %v\n", path, err)
			continue
		}

		meta, records, err := storage.Decode(data, opts)
		var (
			verr    *storage.ValidationError
			dropped int
		)
		switch {
		case err == nil:
		case errors.As(err, &verr) && verr.Reason == "":
			dropped = len(verr.Dropped)
			for _, d := range verr.Dropped {
				fmt.Fprintf(a.stdout, "%s: annotation #%d dropped: %s\n", path, d.Index, d.Reason)
			}
		default:
			bad++
			fmt.Fprintf(a.stdout, "%s: %v\n", path, err)
			continue
		}

		fmt.Fprintf(a.stdout, "%s: ok, %d annotations, %s %gx%g\n",
			path, len(records), meta.MediaType, meta.Natural.Width, meta.Natural.Height)
		a.log.Info("document validated", "path", path, "kept", len(records), "dropped", dropped)
	}

	if bad > 0 {
		return fmt.Errorf("%d of %d documents unreadable", bad, len(paths))
	}
	return nil
}
