package cchash

// Disposable is the Go-idiomatic stand-in for the deterministic Drop the
// source (original_source/src/map.rs, a Rust crate) gets for free. Go has
// no scope-based destructors, so a value that needs to react to being
// removed from the map - spec.md §8 scenario 6: "a custom entry type that
// increments an external counter on construction and decrements on drop" -
// must say so explicitly by implementing Release.
//
// Release is called synchronously, exactly once, while the owning cell's
// lock is still held, whenever a value stops being reachable through the
// map: Accessor.Erase, a losing upsert overwrite, Retain/Clear rejecting an
// entry, and a migrated copy discarded because its key is already present
// in the new array. A value that migration moves to its new cell is not
// released.
type Disposable interface {
	Release()
}

// release calls v.Release if v implements Disposable. It is a no-op for
// values that don't opt in.
func release[V any](v V) {
	if d, ok := any(v).(Disposable); ok {
		d.Release()
	}
}
