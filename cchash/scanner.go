package cchash

import (
	"iter"

	"github.com/scaletable/cchash/cchash/internal/epoch"
)

// Scanner iterates every live entry in a Map at the time it was created
// (spec.md §5 "Iter"). It holds the lock of at most one cell at a time,
// moving on as soon as the caller advances past the last entry in it, so a
// long-lived Scanner does not starve writers the way holding every cell's
// lock for the whole traversal would.
type Scanner[K any, V any] struct {
	m   *Map[K, V]
	a   *array[K, V]
	old *array[K, V]
	g   *epoch.Guard

	inOld   bool
	cellIdx int
	c       *cell[K, V]
	s       slot[K, V]
	valid   bool
	closed  bool
}

// Iter starts a Scanner over the Map's current array (spec.md §5 Iter).
// Entries inserted or removed after Iter is called may or may not be
// observed, per spec.md §6's "weak" iteration guarantee.
func (m *Map[K, V]) Iter() *Scanner[K, V] {
	a, g := m.snapshot()
	old := a.old.Load()
	return &Scanner[K, V]{m: m, a: a, old: old, g: g, inOld: old != nil, cellIdx: -1}
}

// Next advances the Scanner to the next live entry, returning false once
// every cell has been exhausted. If the array being scanned is mid-resize,
// Next walks the predecessor array's own cells by its own cell count
// first, then the current array's, the way original_source/src/map.rs's
// Scanner::next does (spec.md §4.4.4) - deriving old-cell indices from the
// new array's index space instead would, on a shrink, reach only one old
// cell per old/new size ratio and silently skip the rest. A cell still
// live in the old array at the time Next visits it, but migrated away
// before Next later reaches its counterpart in the current array, is
// observed once; one migrated out from under a cell Next already passed
// and then populated ahead of Next's current-array cursor is observed
// twice - both acceptable under the weak iteration guarantee.
func (sc *Scanner[K, V]) Next() bool {
	if sc.closed {
		return false
	}

	if sc.valid {
		if s, ok := sc.c.next(sc.s); ok {
			sc.s = s
			return true
		}
		sc.c.unlock()
		sc.valid = false
	}

	for {
		sc.cellIdx++
		cells := sc.a.cells
		if sc.inOld {
			cells = sc.old.cells
		}
		if sc.cellIdx >= len(cells) {
			if sc.inOld {
				sc.inOld = false
				sc.cellIdx = -1
				continue
			}
			sc.Close()
			return false
		}

		c := &cells[sc.cellIdx]
		c.lockExclusive()
		if s, ok := c.first(); ok {
			sc.c = c
			sc.s = s
			sc.valid = true
			return true
		}
		c.unlock()
	}
}

// Key returns the current entry's key. Valid only after Next returns true.
func (sc *Scanner[K, V]) Key() K { return sc.c.keyAt(sc.s) }

// Value returns the current entry's value. Valid only after Next returns
// true.
func (sc *Scanner[K, V]) Value() V { return *sc.c.valPtr(sc.s) }

// Close releases any cell lock the Scanner still holds and unpins its
// epoch guard. Safe to call multiple times; Next calls it automatically
// once exhausted.
func (sc *Scanner[K, V]) Close() {
	if sc.closed {
		return
	}
	if sc.valid {
		sc.c.unlock()
		sc.valid = false
	}
	sc.g.Unpin()
	sc.closed = true
}

// All returns a range-over-func iterator over the Map's entries, built on
// top of Scanner, for use with Go 1.23+ range-over-func syntax:
//
//	for k, v := range m.All() { ... }
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		sc := m.Iter()
		defer sc.Close()
		for sc.Next() {
			if !yield(sc.Key(), sc.Value()) {
				return
			}
		}
	}
}
