// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/OCAP2/annotator/internal/model/core"
)

// ErrNoMedia is returned when a record is added before any media is loaded.
var ErrNoMedia = errors.New("no media loaded")

// Media is the view of the loaded medium a store converts against.
type Media interface {
	Type() core.MediaType
	Natural() core.Size
	Scale() float64
}

// Reader is the read side of a store, enough to realize shapes from it.
type Reader interface {
	Get(id string) (core.Annotation, bool)
	All() []core.Annotation
	Len() int
}

// Store is the interface annotation stores must satisfy. Geometry passed in
// is in render units and converted with the media's current scale; geometry
// handed out is always natural.
type Store interface {
	Reader

	// Add converts render geometry to natural units, assigns a fresh id and
	// appends the record. Video records get a window starting at the floored
	// session time.
	Add(kind core.Kind, render core.Geometry, sessionTime float64) (string, error)

	// Update replaces the natural geometry of id. A missing id is a no-op.
	Update(id string, render core.Geometry) error

	// Restyle writes style fields in natural units. A missing id is a no-op.
	Restyle(id string, style core.Style) error

	// Remove deletes id. Removing a missing id is a no-op.
	Remove(id string)

	Clear()

	// Replace swaps the whole collection, keeping the given order.
	Replace(records []core.Annotation)

	Serialize() Document
}
