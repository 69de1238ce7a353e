package geo

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/annotator/internal/model/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParsePoints decodes a point sequence into flat x,y pairs.
// Input format: "[x1,y1,x2,y2,...]" or "[[x1,y1],[x2,y2],...]"
func ParsePoints(input json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(input, &flat); err == nil {
		if len(flat)%2 != 0 {
			return nil, fmt.Errorf("point sequence has odd length %d", len(flat))
		}
		return flat, nil
	}

	var coords [][]float64
	if err := json.Unmarshal(input, &coords); err != nil {
		return nil, fmt.Errorf("failed to parse point sequence: %w", err)
	}

	flat = make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flat = append(flat, coord[0], coord[1])
	}
	return flat, nil
}

// LineString builds the absolute line of an arrow or path, offsetting
// its relative points by the shape origin.
func LineString(g core.Geometry) (geom.LineString, error) {
	if g.PointCount() < 2 {
		return geom.LineString{}, fmt.Errorf("line must have at least 2 points, got %d", g.PointCount())
	}

	flatCoords := make([]float64, 0, g.PointCount()*2)
	for i := 0; i+1 < len(g.Points); i += 2 {
		flatCoords = append(flatCoords, g.X+g.Points[i], g.Y+g.Points[i+1])
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq)
}

// Length returns the total length of a line shape.
func Length(g core.Geometry) float64 {
	ls, err := LineString(g)
	if err != nil {
		return 0
	}
	return ls.Length()
}
