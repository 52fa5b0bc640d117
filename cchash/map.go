package cchash

import (
	"sync/atomic"

	"github.com/scaletable/cchash/cchash/internal/epoch"
)

// defaultNumCells is the cell count of a freshly constructed Map with no
// capacity hint (spec.md §5: "a map starts with a small default capacity").
const defaultNumCells = 16

// maxEnlargeFactor is log2 of the largest factor by which a single growth
// step may multiply the current cell count, so one extremely bursty insert
// run cannot jump straight from a tiny map to a huge one in a single
// migration (spec.md §4.1 "Growth"). Ordinary growth doubles, well under
// the bound; the bound only binds when the sampled cells hold far more
// entries than their primary slots, i.e. when many inserts have spilled
// into overflow chains before a resize could run.
const maxEnlargeFactor = 6

// Map is a scalable concurrent hash map (spec.md §1, §2). The zero Map is
// not usable; construct one with New or NewComparable.
type Map[K any, V any] struct {
	cur    atomic.Pointer[array[K, V]]
	hash   func(K) uint64
	equal  func(K, K) bool
	domain *epoch.Domain

	resizing atomic.Bool // spec.md §3: "one advisory resize flag"
	minCells uint64      // floor a shrinking resize will not go below
	logger   Logger
}

// New constructs a Map using the given hash and equality functions, which
// need not agree with K's native comparison (spec.md §5 New). Options
// configure logging and an initial capacity hint.
func New[K any, V any](hash func(K) uint64, equal func(K, K) bool, opts ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:   hash,
		equal:  equal,
		domain: epoch.NewDomain(),
		logger: nopLogger{},
	}
	numCells := uint64(defaultNumCells)
	cfg := &config[K, V]{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger != nil {
		m.logger = cfg.logger
	}
	if cfg.minCapacity > 0 {
		numCells = cellsForCapacity(cfg.minCapacity)
	}
	m.minCells = numCells
	m.cur.Store(newArray[K, V](numCells, nil))
	return m
}

// NewComparable constructs a Map for a comparable key type, deriving both
// the hash and equality functions automatically via hash/maphash (spec.md
// §5, generalizing the teacher's hash/map.go assumption that keys are
// always directly comparable).
func NewComparable[K comparable, V any](opts ...Option[K, V]) *Map[K, V] {
	return New[K, V](newSeededHasher[K](), func(a, b K) bool { return a == b }, opts...)
}

func cellsForCapacity(minCapacity int) uint64 {
	// Each cell holds cellSize primary slots before spilling to overflow;
	// size for roughly one primary slot per expected entry.
	n := uint64(1)
	want := uint64(minCapacity+cellSize-1) / cellSize
	for n < want {
		n <<= 1
	}
	if n < 1 {
		n = 1
	}
	return n
}

// snapshot returns the current array, pinning the reclamation epoch so that
// any array this operation observes (current or mid-migration old) is not
// logically retired out from under it (spec.md §4.1 "Acquire protocol").
func (m *Map[K, V]) snapshot() (*array[K, V], *epoch.Guard) {
	g := m.domain.Pin()
	return m.cur.Load(), g
}

// ensureMigrated drains the single old cell covering h, if a.old is
// non-nil, so a subsequent search/insert against h's new cell no longer
// needs to consult the old array (spec.md §4.1 "Acquire protocol":
// "opportunistically migrate via old array if present"). It makes
// progress on at most one cell per call - a.old may remain set for other,
// still-undrained cells, which is fine: whichever operation next touches
// one of those drains it in turn.
func (m *Map[K, V]) ensureMigrated(a *array[K, V], h uint64) {
	if a.migrating() {
		a.partialRehash(h, m.hash, m.equal)
	}
}

// Insert adds key with the result of makeValue() if key is absent, or
// reports the existing entry if present (spec.md §5 Insert). The returned
// Accessor holds the cell lock until Close/Erase is called.
func (m *Map[K, V]) Insert(key K, makeValue func() V) (acc *Accessor[K, V], inserted bool) {
	h, partial := hashOf(m.hash, key)
	resizeTried := false
	for {
		a, g := m.snapshot()
		m.ensureMigrated(a, h)
		c := a.cellAt(h)
		c.lockExclusive()

		if a != m.cur.Load() {
			c.unlock()
			g.Unpin()
			continue
		}

		idx := int(cellIndex(h, a.numCells))

		if s, found := c.search(key, partial, m.equal); found {
			acc = &Accessor[K, V]{m: m, a: a, c: c, s: s, g: g, cellIdx: idx}
			return acc, false
		}

		// A full sampling-range cell requests a resize and retries the
		// acquire instead of inserting, so the entry lands in a freshly
		// resized array rather than growing this cell's overflow chain
		// further (spec.md §4.4.2 insert()). Retried at most once: if the
		// sampled estimate still doesn't clear tryResize's threshold after
		// that, inserting here is better than looping forever.
		if !resizeTried && inSampleRange(idx) && c.full() {
			c.unlock()
			g.Unpin()
			m.tryResize(a, true)
			resizeTried = true
			continue
		}

		s := c.insert(key, partial, makeValue())
		acc = &Accessor[K, V]{m: m, a: a, c: c, s: s, g: g, cellIdx: idx}
		return acc, true
	}
}

// Upsert inserts or overwrites key's value, releasing the previous value if
// it implements Disposable (spec.md §5 Upsert).
func (m *Map[K, V]) Upsert(key K, makeValue func() V) *Accessor[K, V] {
	h, partial := hashOf(m.hash, key)
	resizeTried := false
	for {
		a, g := m.snapshot()
		m.ensureMigrated(a, h)
		c := a.cellAt(h)
		c.lockExclusive()

		if a != m.cur.Load() {
			c.unlock()
			g.Unpin()
			continue
		}

		idx := int(cellIndex(h, a.numCells))

		if s, found := c.search(key, partial, m.equal); found {
			release(*c.valPtr(s))
			*c.valPtr(s) = makeValue()
			return &Accessor[K, V]{m: m, a: a, c: c, s: s, g: g, cellIdx: idx}
		}

		// See Insert: a full sampling-range cell retries, once, after
		// requesting a resize instead of inserting (spec.md §4.4.2
		// upsert()).
		if !resizeTried && inSampleRange(idx) && c.full() {
			c.unlock()
			g.Unpin()
			m.tryResize(a, true)
			resizeTried = true
			continue
		}

		s := c.insert(key, partial, makeValue())
		return &Accessor[K, V]{m: m, a: a, c: c, s: s, g: g, cellIdx: idx}
	}
}

// Get looks up key, returning an Accessor holding the cell lock if present
// (spec.md §5 Get).
func (m *Map[K, V]) Get(key K) (*Accessor[K, V], bool) {
	h, partial := hashOf(m.hash, key)
	for {
		a, g := m.snapshot()
		m.ensureMigrated(a, h)
		c := a.cellAt(h)
		c.lockExclusive()

		if a != m.cur.Load() {
			c.unlock()
			g.Unpin()
			continue
		}

		s, found := c.search(key, partial, m.equal)
		if !found {
			c.unlock()
			g.Unpin()
			return nil, false
		}
		idx := int(cellIndex(h, a.numCells))
		return &Accessor[K, V]{m: m, a: a, c: c, s: s, g: g, cellIdx: idx}, true
	}
}

// Read looks up key and, if present, invokes fn with its value without
// ever handing out a held lock (spec.md §5 Read). It is a package-level
// generic function, not a method, because it needs its own result type
// parameter R independent of Map's V.
func Read[K any, V any, R any](m *Map[K, V], key K, fn func(V) R) (result R, found bool) {
	acc, ok := m.Get(key)
	if !ok {
		return result, false
	}
	defer acc.Close()
	return fn(acc.Value()), true
}

// Remove deletes key if present, releasing its value (spec.md §5 Remove).
func (m *Map[K, V]) Remove(key K) bool {
	h, partial := hashOf(m.hash, key)
	for {
		a, g := m.snapshot()
		m.ensureMigrated(a, h)
		c := a.cellAt(h)
		c.lockExclusive()

		if a != m.cur.Load() {
			c.unlock()
			g.Unpin()
			continue
		}

		s, found := c.search(key, partial, m.equal)
		emptied := false
		if found {
			c.remove(s)
			emptied = c.empty()
		}
		idx := int(cellIndex(h, a.numCells))
		c.unlock()
		g.Unpin()
		if found && emptied && inSampleRange(idx) {
			m.tryResize(a, false)
		}
		return found
	}
}

// Retain removes every entry for which keep returns false, releasing each
// removed value (spec.md §5 Retain). It walks a predecessor array's own
// cells directly, by its own cell count, before the current array's - the
// same explicit old-array phase Scanner.Next uses and for the same reason
// (see scanner.go): a shrink can leave many old cells unreachable by
// deriving their indices from the new array's (smaller) index space.
func (m *Map[K, V]) Retain(keep func(K, V) bool) {
	a, g := m.snapshot()

	var kept, removed int
	retain := func(cells []cell[K, V]) {
		for i := range cells {
			c := &cells[i]
			c.lockExclusive()
			for s, ok := c.first(); ok; {
				next, hasNext := c.next(s)
				if keep(c.keyAt(s), *c.valPtr(s)) {
					kept++
				} else {
					c.remove(s)
					removed++
				}
				s, ok = next, hasNext
			}
			c.unlock()
		}
	}

	if old := a.old.Load(); old != nil {
		retain(old.cells)
	}
	retain(a.cells)
	g.Unpin()

	// spec.md §4.4.2 retain(): request a shrink once the traversal removed
	// more than it kept and what remains is small relative to capacity.
	if removed > kept && uint64(kept) <= a.numCells*cellSize/8 {
		m.tryResize(a, false)
	}
}

// Clear removes every entry, releasing each value (spec.md §5 Clear).
func (m *Map[K, V]) Clear() {
	m.Retain(func(K, V) bool { return false })
}

// Len estimates the number of entries currently stored by sampling rather
// than walking every cell (spec.md §4.4.2 len(f), §6): sample is called
// with the current array's capacity and proposes how many slots to sample;
// the result is clamped to [1, capacity] and rounded up to a power of two,
// translated to a cell count, and the summed occupancy of that many cells
// (the same prefix resize.go's sampleEstimate consults) is scaled linearly
// across the whole array. Passing `func(capacity int) int { return
// capacity }` samples every cell for an exact count, except while a shrink
// is still draining: then only the first old cell of each group that folds
// into a sampled cell is migrated first, and entries still in the other
// old cells are not counted. Before sampling, the
// sampled cells are each opportunistically migrated one step further if a
// predecessor array still covers them, mirroring the original's len()
// driving partial_rehash ahead of the cells it is about to read.
func (m *Map[K, V]) Len(sample func(capacity int) int) int {
	a, g := m.snapshot()
	defer g.Unpin()

	capacity := int(a.numCells) * cellSize
	want := sample(capacity)
	if want > capacity {
		want = capacity
	}
	if want < 0 {
		want = 0
	}
	numSamples := nextPow2(uint64(want))

	k := numSamples / cellSize
	if k < 1 {
		k = 1
	}
	if k > a.numCells {
		k = a.numCells
	}

	return int(m.sampleOccupancy(a, k))
}

// Capacity reports the number of primary (non-overflow) slots currently
// allocated (spec.md §5 Capacity).
func (m *Map[K, V]) Capacity() int {
	a := m.cur.Load()
	return int(a.numCells) * cellSize
}

// bits64Len returns the bit position of numCells' single set bit, i.e.
// log2(numCells) for the power-of-two cell counts this package always
// allocates.
func bits64Len(numCells uint64) uint {
	n := uint(0)
	for numCells > 1 {
		numCells >>= 1
		n++
	}
	return n
}

// cellIndexHash reconstructs a representative mixed hash whose top
// log2(numCells) bits equal cellIdx, the inverse of cellIndex. Used by
// sampleOccupancy to opportunistically nudge migration forward for the
// specific prefix of cells it is about to sample, without actually hashing
// a key. Unlike a full-coverage walk, an approximate sampling estimator
// tolerates this only ever reaching the first old cell of a shrunken
// group: the resulting estimate is allowed to be off either way.
func cellIndexHash(cellIdx, numCells uint64) uint64 {
	return cellIdx << (64 - bits64Len(numCells))
}
