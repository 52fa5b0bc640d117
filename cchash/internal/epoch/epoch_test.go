package epoch

import "testing"

func TestDeferRunsAfterUnpin(t *testing.T) {
	d := NewDomain()

	g1 := d.Pin()
	ran := false
	g1.Defer(func() { ran = true })

	// A second pin taken while g1 is still active must not see its garbage
	// flushed early.
	g2 := d.Pin()
	g2.Unpin()
	if ran {
		t.Fatal("garbage ran while the retiring pin was still active")
	}

	g1.Unpin()

	// Cycling numGenerations more pins through the domain must advance it
	// far enough to make the deferred callback observably run.
	for i := 0; i < numGenerations; i++ {
		g := d.Pin()
		g.Unpin()
	}
	if !ran {
		t.Fatal("deferred callback never ran")
	}
}

func TestDeferHeldByOverlappingPin(t *testing.T) {
	d := NewDomain()

	outer := d.Pin()
	ran := false
	outer.Defer(func() { ran = true })

	// Cycle many short-lived pins through the domain while outer is still
	// pinned; none of them may cause outer's garbage to run.
	for i := 0; i < 10; i++ {
		g := d.Pin()
		g.Unpin()
	}
	if ran {
		t.Fatal("garbage ran while its retiring pin was still active")
	}

	outer.Unpin()
	for i := 0; i < numGenerations; i++ {
		g := d.Pin()
		g.Unpin()
	}
	if !ran {
		t.Fatal("deferred callback never ran after the pin was released")
	}
}
