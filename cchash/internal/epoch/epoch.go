// Package epoch implements the deferred-reclamation collaborator that
// spec.md treats as an external black box (crossbeam_epoch in the source
// this module was distilled from). No published Go package in the
// surrounding corpus fills that role, so it is implemented here.
//
// Go's garbage collector already makes plain memory reclamation safe: a
// goroutine can never dereference memory another goroutine has freed,
// because nothing is ever explicitly freed. What a Domain actually
// sequences is *logical* disposal - running a value's Disposable.Release
// exactly once, no earlier than the point at which no pin taken before
// the retirement could still be observing the retired generation. That is
// domain logic, not a library concern, which is why this lives under
// internal rather than reaching for a third-party package.
package epoch

import "sync"

// numGenerations bounds how many retirement bags are live at once: the
// current generation, and the two most recent previous ones. Three is
// enough to let Unpin drain a generation without racing a Pin that is
// still observing it.
const numGenerations = 3

// Domain is a deferred-reclamation domain. Callers Pin before touching
// epoch-protected state and Unpin when done; garbage retired via
// Guard.Defer runs only after every pin active at the time of retirement
// has unpinned.
type Domain struct {
	mu      sync.Mutex
	epoch   uint64
	active  [numGenerations]int
	garbage [numGenerations][]func()
}

// NewDomain creates an empty reclamation domain.
func NewDomain() *Domain {
	return &Domain{}
}

// Guard is a single pin of a Domain's current generation.
type Guard struct {
	d   *Domain
	gen uint64
}

// Pin marks the calling goroutine as observing the domain's current
// generation and returns a Guard that must be Unpinned when the goroutine
// is done dereferencing epoch-protected pointers.
func (d *Domain) Pin() *Guard {
	d.mu.Lock()
	gen := d.epoch
	d.active[gen%numGenerations]++
	d.mu.Unlock()
	return &Guard{d: d, gen: gen}
}

// Defer schedules fn to run once every pin taken no later than g's pin
// point has unpinned. fn is typically a Disposable.Release call or a
// release of backing storage for an array retired during migration.
func (g *Guard) Defer(fn func()) {
	d := g.d
	d.mu.Lock()
	d.garbage[g.gen%numGenerations] = append(d.garbage[g.gen%numGenerations], fn)
	d.mu.Unlock()
}

// Unpin releases the guard's pin. If this was the last active pin in its
// generation, Unpin opportunistically advances the domain and flushes any
// garbage that has become provably unreachable.
func (g *Guard) Unpin() {
	d := g.d

	d.mu.Lock()
	d.active[g.gen%numGenerations]--
	flushed := d.tryAdvanceLocked()
	d.mu.Unlock()

	for _, fn := range flushed {
		fn()
	}
}

// tryAdvanceLocked advances the domain's generation counter by one step if
// the slot about to be recycled has no active pins, flushing its garbage
// bag. It must be called with d.mu held, and returns the flushed callbacks
// so they can run outside the lock. At most one advance happens per call:
// the domain only ever needs to move forward one generation to make
// progress, and a bounded step keeps Unpin from spinning when the domain
// is otherwise idle.
func (d *Domain) tryAdvanceLocked() []func() {
	recycle := (d.epoch + 1) % numGenerations
	if d.active[recycle] != 0 {
		return nil
	}
	flushed := d.garbage[recycle]
	d.garbage[recycle] = nil
	d.epoch++
	return flushed
}
