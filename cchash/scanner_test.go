package cchash

import "testing"

func TestScannerVisitsEveryEntry(t *testing.T) {
	const count = 1500
	m := NewComparable[int, int]()
	for i := 0; i < count; i++ {
		m.Upsert(i, func() int { return i }).Close()
	}

	sc := m.Iter()
	defer sc.Close()

	seen := map[int]bool{}
	for sc.Next() {
		seen[sc.Key()] = true
	}
	if len(seen) != count {
		t.Fatalf("scanner visited %d entries, want %d", len(seen), count)
	}
}

func TestScannerCloseIsIdempotent(t *testing.T) {
	m := NewComparable[int, int]()
	m.Upsert(1, func() int { return 1 }).Close()

	sc := m.Iter()
	sc.Next()
	sc.Close()
	sc.Close() // must not panic or double-unlock

	if sc.Next() {
		t.Fatal("Next() after Close() should report no more entries")
	}
}
