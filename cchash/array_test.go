package cchash

import "testing"

func TestPartialRehashMovesEntriesAndKillsOldCell(t *testing.T) {
	hash := newSeededHasher[int]()
	equal := func(a, b int) bool { return a == b }

	old := newArray[int, int](4, nil)
	keys := []int{1, 2, 3, 4, 5, 6, 7, 8}
	for _, k := range keys {
		h, partial := hashOf(hash, k)
		c := old.cellAt(h)
		c.insert(k, partial, k*10)
	}

	next := newArray[int, int](8, old)
	if !next.migrating() {
		t.Fatal("expected a fresh array with an old predecessor to report migrating")
	}

	for _, k := range keys {
		h, _ := hashOf(hash, k)
		next.partialRehash(h, hash, equal)
	}
	// The hasher is randomly seeded, so the keys need not cover every old
	// cell; drain each old cell by index too, so empty ones are killed.
	for i := uint64(0); i < old.numCells; i++ {
		next.partialRehash(cellIndexHash(i, old.numCells), hash, equal)
	}

	if next.migrating() {
		t.Fatal("expected old array to be retired once every cell finished migrating")
	}

	for _, k := range keys {
		h, partial := hashOf(hash, k)
		c := next.cellAt(h)
		s, ok := c.search(k, partial, equal)
		if !ok {
			t.Fatalf("key %d missing from new array after migration", k)
		}
		if got := *c.valPtr(s); got != k*10 {
			t.Errorf("key %d: value = %d, want %d", k, got, k*10)
		}
	}

	for i := range old.cells {
		if !old.cells[i].killed() {
			t.Errorf("old cell %d: expected killed after full migration", i)
		}
	}
}

func TestPartialRehashIsIdempotentPerCell(t *testing.T) {
	hash := newSeededHasher[int]()
	equal := func(a, b int) bool { return a == b }

	old := newArray[int, int](2, nil)
	h, partial := hashOf(hash, 42)
	old.cellAt(h).insert(42, partial, 420)

	next := newArray[int, int](4, old)
	next.partialRehash(h, hash, equal)
	next.partialRehash(h, hash, equal) // second call must be a no-op, not a duplicate insert

	c := next.cellAt(h)
	primaryCount, overflowCount := c.size()
	if primaryCount+overflowCount != 1 {
		t.Fatalf("entry count after redundant migration = %d, want 1", primaryCount+overflowCount)
	}
}
