// internal/storage/document.go
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/OCAP2/annotator/internal/geo"
	"github.com/OCAP2/annotator/internal/model/core"
)

// Document is the root export structure
type Document struct {
	NaturalWidth  float64          `json:"naturalWidth" yaml:"naturalWidth" toml:"naturalWidth"`
	NaturalHeight float64          `json:"naturalHeight" yaml:"naturalHeight" toml:"naturalHeight"`
	MediaType     string           `json:"mediaType" yaml:"mediaType" toml:"mediaType"`
	Annotations   []AnnotationJSON `json:"annotations" yaml:"annotations" toml:"annotations"`
}

// AnnotationJSON is one exported record
type AnnotationJSON struct {
	ID              string       `json:"id" yaml:"id" toml:"id"`
	Type            string       `json:"type" yaml:"type" toml:"type"`
	Geometry        GeometryJSON `json:"geometry" yaml:"geometry" toml:"geometry"`
	StartTime       *float64     `json:"startTime,omitempty" yaml:"startTime,omitempty" toml:"startTime,omitempty"`
	DurationSeconds *float64     `json:"durationSeconds,omitempty" yaml:"durationSeconds,omitempty" toml:"durationSeconds,omitempty"`
	Time            *float64     `json:"time,omitempty" yaml:"time,omitempty" toml:"time,omitempty"`
}

// GeometryJSON carries only the fields that belong to the record's kind.
// Pointers keep legitimate zero values in the output.
type GeometryJSON struct {
	X             *float64  `json:"x,omitempty" yaml:"x,omitempty" toml:"x,omitempty"`
	Y             *float64  `json:"y,omitempty" yaml:"y,omitempty" toml:"y,omitempty"`
	Width         *float64  `json:"width,omitempty" yaml:"width,omitempty" toml:"width,omitempty"`
	Height        *float64  `json:"height,omitempty" yaml:"height,omitempty" toml:"height,omitempty"`
	Points        []float64 `json:"points,omitempty" yaml:"points,omitempty,flow" toml:"points,omitempty"`
	StrokeWidth   *float64  `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty" toml:"strokeWidth,omitempty"`
	FontSize      *float64  `json:"fontSize,omitempty" yaml:"fontSize,omitempty" toml:"fontSize,omitempty"`
	PointerLength *float64  `json:"pointerLength,omitempty" yaml:"pointerLength,omitempty" toml:"pointerLength,omitempty"`
	PointerWidth  *float64  `json:"pointerWidth,omitempty" yaml:"pointerWidth,omitempty" toml:"pointerWidth,omitempty"`
	Stroke        *string   `json:"stroke,omitempty" yaml:"stroke,omitempty" toml:"stroke,omitempty"`
	Fill          *string   `json:"fill,omitempty" yaml:"fill,omitempty" toml:"fill,omitempty"`
	Text          *string   `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`
}

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

// EncodeAnnotation converts a record to its export form.
func EncodeAnnotation(a core.Annotation) AnnotationJSON {
	out := AnnotationJSON{
		ID:       a.ID,
		Type:     a.Kind.String(),
		Geometry: encodeGeometry(a.Kind, a.Geometry),
	}
	if a.Window != nil {
		out.StartTime = f64(a.Window.StartTime)
		out.DurationSeconds = f64(a.Window.DurationSeconds)
	}
	if a.Time != nil {
		out.Time = f64(*a.Time)
	}
	return out
}

func encodeGeometry(k core.Kind, g core.Geometry) GeometryJSON {
	out := GeometryJSON{X: f64(g.X), Y: f64(g.Y)}
	switch k {
	case core.KindArrow:
		out.Points = append([]float64(nil), g.Points...)
		out.StrokeWidth = f64(g.StrokeWidth)
		out.PointerLength = f64(g.PointerLength)
		out.PointerWidth = f64(g.PointerWidth)
		out.Stroke = str(g.Stroke)
		out.Fill = str(g.Fill)
	case core.KindPath:
		out.Points = append([]float64(nil), g.Points...)
		out.StrokeWidth = f64(g.StrokeWidth)
		out.Stroke = str(g.Stroke)
	case core.KindText:
		out.Text = str(g.Text)
		out.FontSize = f64(g.FontSize)
		out.Fill = str(g.Fill)
		if g.Width > 0 {
			out.Width = f64(g.Width)
		}
		if g.Height > 0 {
			out.Height = f64(g.Height)
		}
	case core.KindRectStroke:
		out.Width = f64(g.Width)
		out.Height = f64(g.Height)
		out.StrokeWidth = f64(g.StrokeWidth)
		out.Stroke = str(g.Stroke)
	case core.KindRectFill:
		out.Width = f64(g.Width)
		out.Height = f64(g.Height)
		out.Fill = str(g.Fill)
	}
	return out
}

// Dropped describes one record rejected on import.
type Dropped struct {
	Index  int
	Reason string
}

// ValidationError reports a malformed document, or the records dropped from
// an otherwise usable one. When Reason is set nothing was imported.
type ValidationError struct {
	Reason  string
	Dropped []Dropped
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return "invalid annotation document: " + e.Reason
	}
	parts := make([]string, len(e.Dropped))
	for i, d := range e.Dropped {
		parts[i] = fmt.Sprintf("#%d (%s)", d.Index, d.Reason)
	}
	return fmt.Sprintf("dropped %d invalid annotation(s): %s", len(e.Dropped), strings.Join(parts, ", "))
}

// Indices lists the positions of dropped records.
func (e *ValidationError) Indices() []int {
	out := make([]int, len(e.Dropped))
	for i, d := range e.Dropped {
		out[i] = d.Index
	}
	return out
}

// Meta is the document-level information of an import.
type Meta struct {
	Natural   core.Size
	MediaType core.MediaType
}

// DecodeOptions controls temporal coercion on import.
type DecodeOptions struct {
	// Target is the media type records are imported for. MediaNone means
	// "whatever the document says".
	Target          core.MediaType
	DefaultDuration float64
}

type importDocument struct {
	NaturalWidth  float64           `json:"naturalWidth"`
	NaturalHeight float64           `json:"naturalHeight"`
	MediaType     string            `json:"mediaType"`
	Annotations   []json.RawMessage `json:"annotations"`
}

type importRecord struct {
	ID              string          `json:"id"`
	KonvaID         string          `json:"konvaId"`
	Type            string          `json:"type"`
	Geometry        json.RawMessage `json:"geometry"`
	Data            json.RawMessage `json:"data"`
	StartTime       *float64        `json:"startTime"`
	DurationSeconds *float64        `json:"durationSeconds"`
	Time            *float64        `json:"time"`
}

type importGeometry struct {
	X             *float64        `json:"x"`
	Y             *float64        `json:"y"`
	Width         *float64        `json:"width"`
	Height        *float64        `json:"height"`
	Points        json.RawMessage `json:"points"`
	StrokeWidth   *float64        `json:"strokeWidth"`
	FontSize      *float64        `json:"fontSize"`
	PointerLength *float64        `json:"pointerLength"`
	PointerWidth  *float64        `json:"pointerWidth"`
	Stroke        *string         `json:"stroke"`
	Fill          *string         `json:"fill"`
	Text          *string         `json:"text"`
	Attrs         json.RawMessage `json:"attrs"`
}

// Decode parses and validates an export document. Invalid records are
// dropped one by one; when any were dropped the returned error is a
// *ValidationError and the surviving records are still returned.
func Decode(data []byte, opts DecodeOptions) (Meta, []core.Annotation, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Meta{}, nil, &ValidationError{Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	if doc.Annotations == nil {
		return Meta{}, nil, &ValidationError{Reason: "missing annotations array"}
	}

	meta := Meta{
		Natural:   core.Size{Width: doc.NaturalWidth, Height: doc.NaturalHeight},
		MediaType: core.ParseMediaType(doc.MediaType),
	}
	target := opts.Target
	if target == core.MediaNone {
		target = meta.MediaType
	}

	records := make([]core.Annotation, 0, len(doc.Annotations))
	seen := make(map[string]struct{}, len(doc.Annotations))
	var dropped []Dropped
	for i, raw := range doc.Annotations {
		a, err := decodeRecord(raw, target, opts.DefaultDuration)
		if err == nil {
			if _, dup := seen[a.ID]; dup {
				err = fmt.Errorf("duplicate id %q", a.ID)
			}
		}
		if err != nil {
			dropped = append(dropped, Dropped{Index: i, Reason: err.Error()})
			continue
		}
		seen[a.ID] = struct{}{}
		records = append(records, a)
	}

	if len(dropped) > 0 {
		return meta, records, &ValidationError{Dropped: dropped}
	}
	return meta, records, nil
}

func decodeRecord(raw json.RawMessage, target core.MediaType, defaultDuration float64) (core.Annotation, error) {
	var rec importRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.Annotation{}, fmt.Errorf("malformed record: %v", err)
	}

	id := rec.ID
	if id == "" {
		id = rec.KonvaID
	}
	if strings.TrimSpace(id) == "" {
		return core.Annotation{}, fmt.Errorf("missing id")
	}

	kind, ok := core.ParseKind(rec.Type)
	if !ok {
		return core.Annotation{}, fmt.Errorf("unknown type %q", rec.Type)
	}

	rawGeom, err := geometrySource(rec)
	if err != nil {
		return core.Annotation{}, err
	}
	g, err := decodeGeometry(kind, rawGeom)
	if err != nil {
		return core.Annotation{}, err
	}

	a := core.Annotation{ID: id, Kind: kind, Geometry: g}
	if rec.Time != nil && finite(*rec.Time) {
		t := *rec.Time
		a.Time = &t
	}
	if target == core.MediaVideo && !(a.Time != nil && rec.StartTime == nil) {
		start := 0.0
		if rec.StartTime != nil && finite(*rec.StartTime) {
			start = *rec.StartTime
		}
		duration := defaultDuration
		if rec.DurationSeconds != nil && finite(*rec.DurationSeconds) && *rec.DurationSeconds > 0 {
			duration = *rec.DurationSeconds
		}
		w := core.NewWindow(start, duration)
		a.Window = &w
	}
	return a, nil
}

// geometrySource picks the geometry object, accepting the older
// {"data": {"attrs": {...}}} layout.
func geometrySource(rec importRecord) (importGeometry, error) {
	raw := rec.Geometry
	if isEmptyJSON(raw) {
		raw = rec.Data
	}
	if isEmptyJSON(raw) {
		return importGeometry{}, fmt.Errorf("missing geometry")
	}
	var g importGeometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return importGeometry{}, fmt.Errorf("malformed geometry: %v", err)
	}
	if !isEmptyJSON(g.Attrs) {
		var attrs importGeometry
		if err := json.Unmarshal(g.Attrs, &attrs); err != nil {
			return importGeometry{}, fmt.Errorf("malformed geometry attrs: %v", err)
		}
		return attrs, nil
	}
	return g, nil
}

func decodeGeometry(k core.Kind, in importGeometry) (core.Geometry, error) {
	g := core.Geometry{
		X:             deref(in.X),
		Y:             deref(in.Y),
		Width:         deref(in.Width),
		Height:        deref(in.Height),
		StrokeWidth:   deref(in.StrokeWidth),
		FontSize:      deref(in.FontSize),
		PointerLength: deref(in.PointerLength),
		PointerWidth:  deref(in.PointerWidth),
	}
	if in.Stroke != nil {
		g.Stroke = *in.Stroke
	}
	if in.Fill != nil {
		g.Fill = *in.Fill
	}
	if in.Text != nil {
		g.Text = *in.Text
	}
	for _, v := range []float64{g.X, g.Y, g.Width, g.Height, g.StrokeWidth, g.FontSize, g.PointerLength, g.PointerWidth} {
		if !finite(v) {
			return core.Geometry{}, fmt.Errorf("non-finite geometry value")
		}
	}

	switch k {
	case core.KindArrow, core.KindPath:
		if isEmptyJSON(in.Points) {
			return core.Geometry{}, fmt.Errorf("%s missing points", k)
		}
		pts, err := geo.ParsePoints(in.Points)
		if err != nil {
			return core.Geometry{}, fmt.Errorf("%s points: %v", k, err)
		}
		if len(pts)/2 < 2 {
			return core.Geometry{}, fmt.Errorf("%s needs at least 2 points, got %d", k, len(pts)/2)
		}
		g.Points = pts
	case core.KindText:
		if strings.TrimSpace(g.Text) == "" {
			return core.Geometry{}, fmt.Errorf("text missing content")
		}
		if g.FontSize <= 0 {
			g.FontSize = core.FontSizeFor(0)
		}
	case core.KindRectStroke, core.KindRectFill:
		if in.Width == nil || in.Height == nil {
			return core.Geometry{}, fmt.Errorf("%s missing width or height", k)
		}
		g = geo.Normalize(g)
	}
	return g, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
