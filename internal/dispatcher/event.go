package dispatcher

import (
	"fmt"
	"strconv"
	"time"
)

// Event is one input notification from the host: a pointer or key event,
// a playback tick, a resize, or a session command.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// Arg returns the i-th argument or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// Float parses the i-th argument as a float.
func (e Event) Float(i int) (float64, error) {
	if i < 0 || i >= len(e.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", e.Command, i)
	}
	v, err := strconv.ParseFloat(e.Args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", e.Command, i, err)
	}
	return v, nil
}

// Floats parses the first n arguments as floats.
func (e Event) Floats(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := e.Float(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
