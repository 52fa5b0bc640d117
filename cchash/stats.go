package cchash

import "fmt"

// Statistics is a point-in-time snapshot of a Map's internal shape,
// computed by a full scan and intended for tests and tuning, not hot
// paths (spec.md §6 "Statistics schema"; wired to Prometheus by package
// ccprom). Capacity, Cells, KilledEntries, EmptyCells,
// MaxConsecutiveEmptyCells, LinkedEntries, CellsHavingLink and
// MaxLinkLength total across both the current array and, while a resize
// is draining, the predecessor array it is migrating away from;
// EffectiveCapacity covers only the current array.
type Statistics struct {
	Capacity          int // total primary-slot capacity, current array plus any draining predecessor
	EffectiveCapacity int // primary-slot capacity of the current array alone
	Cells             int // number of cells, current array plus any draining predecessor
	PrimaryCount      int // live entries stored in primary slots
	OverflowCount     int // live entries stored in overflow chains

	KilledEntries            int // cells already drained by a migration
	EmptyCells               int // cells with no primary entry
	MaxConsecutiveEmptyCells int // longest run of EmptyCells seen during the scan
	LinkedEntries            int // live entries stored in overflow chains (== OverflowCount)
	CellsHavingLink          int // cells with at least one overflow entry
	MaxLinkLength            int // largest per-cell overflow entry count seen

	Migrating bool
}

// Len returns the total number of live entries the snapshot observed.
func (s Statistics) Len() int { return s.PrimaryCount + s.OverflowCount }

// LoadFactor is the fraction of primary slots occupied, ignoring overflow.
func (s Statistics) LoadFactor() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.PrimaryCount) / float64(s.Cells*cellSize)
}

func (s Statistics) String() string {
	return fmt.Sprintf("cchash: capacity=%d effective_capacity=%d cells=%d entries=%d "+
		"killed_entries=%d empty_cells=%d max_consecutive_empty_cells=%d "+
		"linked_entries=%d cells_having_link=%d max_link_length=%d load=%.3f migrating=%v",
		s.Capacity, s.EffectiveCapacity, s.Cells, s.Len(),
		s.KilledEntries, s.EmptyCells, s.MaxConsecutiveEmptyCells,
		s.LinkedEntries, s.CellsHavingLink, s.MaxLinkLength, s.LoadFactor(), s.Migrating)
}

// Statistics computes a Statistics snapshot of m. Like Retain and
// Scanner.Next, it visits a draining predecessor array's own cells
// directly, by its own cell count, before the current array's, rather
// than deriving old-cell indices from the new array's (possibly smaller)
// index space - the same fix for the same reason documented on
// scanner.go's Next (spec.md §4.4.4; original_source/src/map.rs:448-483
// visits old_array then current_array the same way for statistics()).
func (m *Map[K, V]) Statistics() Statistics {
	a, g := m.snapshot()
	defer g.Unpin()

	var st Statistics

	accumulate := func(cells []cell[K, V], countCapacity bool) {
		st.Cells += len(cells)
		st.Capacity += len(cells) * cellSize
		if countCapacity {
			st.EffectiveCapacity = len(cells) * cellSize
		}
		consecutiveEmpty := 0
		for i := range cells {
			c := &cells[i]
			c.lockExclusive()
			p, o := c.size()
			killed := c.killed()
			c.unlock()

			st.PrimaryCount += p
			st.OverflowCount += o

			if p == 0 {
				st.EmptyCells++
				consecutiveEmpty++
			} else {
				if consecutiveEmpty > st.MaxConsecutiveEmptyCells {
					st.MaxConsecutiveEmptyCells = consecutiveEmpty
				}
				consecutiveEmpty = 0
			}
			if o > 0 {
				st.CellsHavingLink++
				if o > st.MaxLinkLength {
					st.MaxLinkLength = o
				}
			}
			if killed {
				st.KilledEntries++
			}
		}
		if consecutiveEmpty > st.MaxConsecutiveEmptyCells {
			st.MaxConsecutiveEmptyCells = consecutiveEmpty
		}
	}

	if old := a.old.Load(); old != nil {
		accumulate(old.cells, false)
	}
	accumulate(a.cells, true)

	st.LinkedEntries = st.OverflowCount
	st.Migrating = a.migrating()
	return st
}
