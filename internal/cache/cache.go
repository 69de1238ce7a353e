// Package cache holds the id index shared by a surface's records and shapes.
package cache

import "sync"

// Link binds an annotation id to both its store record and its live shape.
// The two sides are always added and removed together so a shape can never
// outlive its record in the index, or the other way round.
type Link[R, S any] struct {
	m       sync.Mutex
	records map[string]R
	shapes  map[string]S
}

func NewLink[R, S any]() *Link[R, S] {
	return &Link[R, S]{
		records: make(map[string]R),
		shapes:  make(map[string]S),
	}
}

// Bind stores both sides for id, replacing any previous binding.
func (c *Link[R, S]) Bind(id string, record R, shape S) {
	c.m.Lock()
	defer c.m.Unlock()
	c.records[id] = record
	c.shapes[id] = shape
}

// Rebind replaces the record side of an existing binding.
// It returns false when id is not bound.
func (c *Link[R, S]) Rebind(id string, record R) bool {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.shapes[id]; !ok {
		return false
	}
	c.records[id] = record
	return true
}

func (c *Link[R, S]) Record(id string) (R, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	r, ok := c.records[id]
	return r, ok
}

func (c *Link[R, S]) Shape(id string) (S, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	s, ok := c.shapes[id]
	return s, ok
}

// Unbind drops both sides for id.
func (c *Link[R, S]) Unbind(id string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.records, id)
	delete(c.shapes, id)
}

func (c *Link[R, S]) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.shapes)
}

func (c *Link[R, S]) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.records = make(map[string]R)
	c.shapes = make(map[string]S)
}
