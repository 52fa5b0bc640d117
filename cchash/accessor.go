package cchash

import "github.com/scaletable/cchash/cchash/internal/epoch"

// Accessor is a handle onto a single live entry, returned by Insert,
// Upsert and Get (spec.md §5 "Accessor"). It holds its cell's exclusive
// lock until Close or Erase is called, so callers should keep its lifetime
// short - read or update the value, then release it.
type Accessor[K any, V any] struct {
	m *Map[K, V]
	a *array[K, V]
	c *cell[K, V]
	s slot[K, V]
	g *epoch.Guard

	cellIdx int
	done    bool
}

// Key returns the entry's key.
func (acc *Accessor[K, V]) Key() K {
	return acc.c.keyAt(acc.s)
}

// Value returns a copy of the entry's value. Modifying the copy does not
// change the stored entry; use Set for an in-place update.
func (acc *Accessor[K, V]) Value() V {
	return *acc.c.valPtr(acc.s)
}

// Set overwrites the entry's value, releasing the previous one if it
// implements Disposable.
func (acc *Accessor[K, V]) Set(v V) {
	release(*acc.c.valPtr(acc.s))
	*acc.c.valPtr(acc.s) = v
}

// Erase removes the entry this Accessor refers to, releasing its value,
// and releases the cell lock (spec.md §5 "Accessor.Erase"). The Accessor
// must not be used again afterward.
//
// If the cell lies in the resize-sampling range and becomes empty, this
// also attempts a shrinking resize (spec.md §4.4.3 "Erase side effect").
func (acc *Accessor[K, V]) Erase() {
	if acc.done {
		return
	}
	acc.c.remove(acc.s)
	emptied := acc.c.empty()
	acc.c.unlock()
	acc.g.Unpin()
	acc.done = true

	if emptied && inSampleRange(acc.cellIdx) {
		acc.m.tryResize(acc.a, false)
	}
}

// Close releases the cell lock without removing the entry. Every Accessor
// must eventually have either Close or Erase called on it exactly once.
func (acc *Accessor[K, V]) Close() {
	if acc.done {
		return
	}
	acc.c.unlock()
	acc.g.Unpin()
	acc.done = true
}
