// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/OCAP2/annotator/internal/geo"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/annotator/internal/storage/memory"

// Options configures a Store
type Options struct {
	DefaultDuration float64

	// NewID overrides id generation, mainly for tests.
	NewID func() string
}

// NewAnnotationID returns a fresh annotation id.
func NewAnnotationID() string {
	return "ann-" + uuid.NewString()
}

// Store keeps annotations in memory in insertion order
type Store struct {
	media storage.Media
	opts  Options

	records []*core.Annotation
	byID    map[string]*core.Annotation

	lastExportPath string

	mutations metric.Int64Counter
	mu        sync.RWMutex
}

var _ storage.Store = (*Store)(nil)

// New creates a new memory store converting against media
func New(media storage.Media, opts Options) *Store {
	if opts.NewID == nil {
		opts.NewID = NewAnnotationID
	}
	s := &Store{
		media: media,
		opts:  opts,
		byID:  make(map[string]*core.Annotation),
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"store.mutations",
		metric.WithDescription("Annotation store mutations by operation"),
	)
	if err == nil {
		s.mutations = counter
	}
	return s
}

func (s *Store) count(op string) {
	if s.mutations != nil {
		s.mutations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// Add records a finished shape
func (s *Store) Add(kind core.Kind, render core.Geometry, sessionTime float64) (string, error) {
	if s.media == nil || s.media.Type() == core.MediaNone {
		return "", storage.ErrNoMedia
	}
	natural, err := geo.ToNatural(kind, render, s.media.Scale())
	if err != nil {
		return "", fmt.Errorf("adding %s: %w", kind, err)
	}

	a := &core.Annotation{
		ID:       s.opts.NewID(),
		Kind:     kind,
		Geometry: natural,
	}
	if s.media.Type() == core.MediaVideo {
		w := core.NewWindow(sessionTime, s.opts.DefaultDuration)
		a.Window = &w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[a.ID]; exists {
		return "", fmt.Errorf("duplicate annotation id %q", a.ID)
	}
	s.records = append(s.records, a)
	s.byID[a.ID] = a
	s.count("add")
	return a.ID, nil
}

// Update replaces the stored geometry of id from render geometry
func (s *Store) Update(id string, render core.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil
	}
	if s.media == nil {
		return storage.ErrNoMedia
	}
	natural, err := geo.ToNatural(a.Kind, render, s.media.Scale())
	if err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	a.Geometry = natural
	s.count("update")
	return nil
}

// Restyle applies a UI style to id in natural units
func (s *Store) Restyle(id string, style core.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil
	}
	a.Geometry = core.ApplyStyle(a.Kind, a.Geometry, style)
	s.count("restyle")
	return nil
}

// Remove deletes id
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, a := range s.records {
		if a.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	s.count("remove")
}

// Clear empties the store
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.byID = make(map[string]*core.Annotation)
	s.count("clear")
}

// Replace swaps in a new collection. Later duplicates of an id are ignored.
func (s *Store) Replace(records []core.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]*core.Annotation, 0, len(records))
	s.byID = make(map[string]*core.Annotation, len(records))
	for _, r := range records {
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		a := r.Clone()
		s.records = append(s.records, &a)
		s.byID[a.ID] = &a
	}
	s.count("replace")
}

// Get returns a copy of the record for id
func (s *Store) Get(id string) (core.Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return core.Annotation{}, false
	}
	return a.Clone(), true
}

// All returns copies of every record in insertion order
func (s *Store) All() []core.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Annotation, len(s.records))
	for i, a := range s.records {
		out[i] = a.Clone()
	}
	return out
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clone returns an independent deep copy bound to another media view,
// used to give the preview its own snapshot.
func (s *Store) Clone(media storage.Media) *Store {
	c := New(media, s.opts)
	c.Replace(s.All())
	return c
}
