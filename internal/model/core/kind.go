// internal/model/core/kind.go
package core

import (
	"fmt"
	"strings"
)

// Kind is the closed set of annotation shapes.
type Kind int

const (
	KindArrow Kind = iota + 1
	KindPath
	KindText
	KindRectStroke
	KindRectFill
)

// Kinds lists every annotation kind in export order.
var Kinds = []Kind{KindArrow, KindPath, KindText, KindRectStroke, KindRectFill}

// String returns the canonical wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindArrow:
		return "arrow"
	case KindPath:
		return "freehand-path"
	case KindText:
		return "text"
	case KindRectStroke:
		return "rect-stroke"
	case KindRectFill:
		return "rect-fill"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindArrow, KindPath, KindText, KindRectStroke, KindRectFill:
		return true
	default:
		return false
	}
}

// ParseKind maps a wire name (or one of the older aliases) to a Kind.
// "draw" and "line" come from exports where freehand paths were stored
// under the tool name, "rect-border" from the first rectangle release.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arrow":
		return KindArrow, true
	case "freehand-path", "path", "draw", "line":
		return KindPath, true
	case "text":
		return KindText, true
	case "rect-stroke", "rect-border":
		return KindRectStroke, true
	case "rect-fill":
		return KindRectFill, true
	default:
		return 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown annotation kind: %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown annotation kind: %q", string(b))
	}
	*k = parsed
	return nil
}

// Tool is a drawing tool selectable by the UI.
type Tool string

const (
	ToolSelect     Tool = "select"
	ToolArrow      Tool = "arrow"
	ToolDraw       Tool = "draw"
	ToolText       Tool = "text"
	ToolRectStroke Tool = "rect-stroke"
	ToolRectFill   Tool = "rect-fill"
)

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, bool) {
	switch t := Tool(strings.ToLower(strings.TrimSpace(s))); t {
	case ToolSelect, ToolArrow, ToolDraw, ToolText, ToolRectStroke, ToolRectFill:
		return t, true
	case "rect-border":
		return ToolRectStroke, true
	default:
		return "", false
	}
}

// Kind returns the annotation kind produced by the tool.
// The select tool produces nothing and returns false.
func (t Tool) Kind() (Kind, bool) {
	switch t {
	case ToolArrow:
		return KindArrow, true
	case ToolDraw:
		return KindPath, true
	case ToolText:
		return KindText, true
	case ToolRectStroke:
		return KindRectStroke, true
	case ToolRectFill:
		return KindRectFill, true
	default:
		return 0, false
	}
}
