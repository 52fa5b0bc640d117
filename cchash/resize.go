package cchash

// sampleCells is the fixed-size prefix of a map's cells consulted to decide
// whether a resize is worth attempting, and the only range whose fullness
// or emptiness can trigger one (spec.md §4.4.3, §4.4.5: "the resize-
// sampling range (first 16 cells)"). Confining the trigger - and the cost
// of deciding whether to fire it - to a constant-size prefix keeps every
// insert/erase O(1) regardless of map size.
const sampleCells = 16

// inSampleRange reports whether cell index idx participates in resize
// triggering.
func inSampleRange(idx int) bool {
	return idx < sampleCells
}

// tryResize attempts to install a new, larger (grow=true) or smaller
// (grow=false) array in place of a, following spec.md §4.4.5's resize
// policy: sample the first min(numCells, sampleCells) cells to estimate
// total occupancy, scale linearly to the whole map, and only actually
// reallocate if the scaled estimate clears the 7/8 (grow) or 1/8 (shrink)
// threshold. Only one resize may be in flight at a time, gated by
// m.resizing; everyone else's call here is a no-op.
func (m *Map[K, V]) tryResize(a *array[K, V], grow bool) {
	if a != m.cur.Load() || a.migrating() {
		return
	}
	if !grow && a.numCells <= m.minCells {
		return
	}
	if !m.resizing.CompareAndSwap(false, true) {
		return
	}
	defer m.resizing.Store(false)

	if m.cur.Load() != a {
		return
	}

	curCap := a.numCells * cellSize
	est := m.sampleEstimate(a)

	var newCells uint64
	switch {
	case grow && est*8 >= curCap*7:
		// est counts entries; convert the target capacity to cells.
		newCells = nextPow2(est) * 2 / cellSize
		if maxCells := a.numCells << maxEnlargeFactor; newCells > maxCells {
			newCells = maxCells
		}
		if newCells <= a.numCells {
			newCells = a.numCells * 2
		}
	case !grow && est*8 <= curCap:
		newCells = nextPow2(est) / cellSize
		if newCells < m.minCells {
			newCells = m.minCells
		}
	default:
		return
	}
	if newCells == a.numCells {
		return
	}

	next := newArray[K, V](newCells, a)
	m.cur.Store(next)
	if newCells > a.numCells {
		m.logger.Infof("cchash: grew from %d to %d cells", a.numCells, newCells)
	} else {
		m.logger.Infof("cchash: shrank from %d to %d cells", a.numCells, newCells)
	}
}

// sampleEstimate scales the occupancy of the first min(numCells,
// sampleCells) cells of a up to an estimate of the whole array's entry
// count (spec.md §4.4.5 step 6, §4.4.2 len()).
func (m *Map[K, V]) sampleEstimate(a *array[K, V]) uint64 {
	k := a.numCells
	if k > sampleCells {
		k = sampleCells
	}
	if k == 0 {
		return 0
	}
	return m.sampleOccupancy(a, k)
}

// sampleOccupancy locks and sums the live entries in the first k cells of
// a, opportunistically migrating each one first if a predecessor array
// still covers it, then scales the sum linearly to an estimate for the
// whole array. Shared by sampleEstimate (resize decisions, spec.md
// §4.4.5) and Len (spec.md §4.4.2 len()), the two places that read a
// bounded prefix of cells rather than walking every one.
func (m *Map[K, V]) sampleOccupancy(a *array[K, V], k uint64) uint64 {
	if k == 0 {
		return 0
	}
	var sum uint64
	for i := uint64(0); i < k; i++ {
		m.ensureMigrated(a, cellIndexHash(i, a.numCells))
		c := &a.cells[i]
		c.lockExclusive()
		p, o := c.size()
		c.unlock()
		sum += uint64(p + o)
	}
	return sum * a.numCells / k
}

// nextPow2 returns the smallest power of two >= n, or 1 if n == 0.
func nextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}
