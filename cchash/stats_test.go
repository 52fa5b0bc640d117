package cchash

import "testing"

func TestStatisticsMatchesLen(t *testing.T) {
	const count = 4000
	m := NewComparable[int, int]()
	for i := 0; i < count; i++ {
		m.Upsert(i, func() int { return i }).Close()
	}

	st := m.Statistics()
	if got := st.Len(); got != count {
		t.Fatalf("Statistics().Len() = %d, want %d", got, count)
	}
	if got := m.Len(func(capacity int) int { return capacity }); got != st.Len() {
		t.Fatalf("Map.Len() = %d, Statistics().Len() = %d, want equal", got, st.Len())
	}
	if lf := st.LoadFactor(); lf <= 0 || lf > 1 {
		t.Fatalf("LoadFactor() = %f, want in (0, 1]", lf)
	}
}

func TestStatisticsStringDoesNotPanic(t *testing.T) {
	m := NewComparable[int, int]()
	m.Upsert(1, func() int { return 1 }).Close()
	if s := m.Statistics().String(); s == "" {
		t.Fatal("Statistics().String() returned an empty string")
	}
}
