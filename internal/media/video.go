package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/OCAP2/annotator/internal/model/core"
)

// Runner executes an external tool and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s error: %v, output: %s", name, err, stderr.String())
	}
	return out, nil
}

// VideoOptions configures the ffprobe/ffmpeg binaries.
type VideoOptions struct {
	FFprobe string
	FFmpeg  string
	Run     Runner
}

func (o VideoOptions) withDefaults() VideoOptions {
	if o.FFprobe == "" {
		o.FFprobe = "ffprobe"
	}
	if o.FFmpeg == "" {
		o.FFmpeg = "ffmpeg"
	}
	if o.Run == nil {
		o.Run = execRunner
	}
	return o
}

// VideoSource reads video metadata with ffprobe and extracts frames with ffmpeg.
type VideoSource struct {
	path string
	info Info
	opts VideoOptions
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// OpenVideo probes path for its dimensions and duration.
func OpenVideo(ctx context.Context, path string, opts VideoOptions) (*VideoSource, error) {
	opts = opts.withDefaults()
	out, err := opts.Run(ctx, opts.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, &MediaError{Op: "probe", Path: path, Err: err}
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, &MediaError{Op: "probe", Path: path, Err: fmt.Errorf("parsing ffprobe output: %w", err)}
	}
	if len(probe.Streams) == 0 || probe.Streams[0].Width <= 0 || probe.Streams[0].Height <= 0 {
		return nil, &MediaError{Op: "probe", Path: path, Err: fmt.Errorf("no video stream with dimensions")}
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || duration < 0 || math.IsNaN(duration) {
		duration = 0
	}

	return &VideoSource{
		path: path,
		opts: opts,
		info: Info{
			Name:     filepath.Base(path),
			Type:     core.MediaVideo,
			Natural:  core.Size{Width: float64(probe.Streams[0].Width), Height: float64(probe.Streams[0].Height)},
			Duration: duration,
		},
	}, nil
}

func (s *VideoSource) Info() Info { return s.info }

// Frame extracts the frame at t as a PNG through ffmpeg.
func (s *VideoSource) Frame(ctx context.Context, t float64) (image.Image, error) {
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	out, err := s.opts.Run(ctx, s.opts.FFmpeg,
		"-v", "error",
		"-ss", strconv.FormatFloat(t, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, &MediaError{Op: "frame", Path: s.path, Err: err}
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, &MediaError{Op: "frame", Path: s.path, Err: fmt.Errorf("decoding frame: %w", err)}
	}
	return img, nil
}

func (s *VideoSource) Close() error { return nil }
