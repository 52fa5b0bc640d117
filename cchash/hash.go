package cchash

import (
	"hash/maphash"
	"math/bits"
)

// cellBits is log2 of cellSize, the number of primary slots in a cell. The
// number of high-order mixed-hash bits that select a cell is log2 of the
// array's cell count instead (see cellIndex).
const cellBits = 4

// cellSize is the number of primary slots in a single cell (spec.md §3:
// "16-slot primary storage").
const cellSize = 1 << cellBits

// mix applies scc's bijective bit-mixing post-function to decorrelate
// structure in a caller-supplied hash (spec.md §4.1). Ported bit for bit
// from original_source/src/map.rs's HashMap::hash so the post-mix contract
// spec.md §1 calls out of scope to respecify has one concrete realization.
func mix(h uint64) uint64 {
	h ^= bits.RotateLeft64(h, -25) ^ bits.RotateLeft64(h, -50)
	h *= 0xA24BAED4963EE407
	h ^= bits.RotateLeft64(h, -24) ^ bits.RotateLeft64(h, -49)
	h *= 0x9FB21C651E98DF25
	h ^= h >> 28
	return h
}

// hashOf computes the mixed 64-bit hash and its 16-bit partial hash for a
// key, given the map's hash function.
func hashOf[K any](hash func(K) uint64, key K) (h uint64, partial uint16) {
	h = mix(hash(key))
	return h, uint16(h & 0xFFFF)
}

// cellIndex extracts the top log2(numCells) bits of a mixed hash to select
// a cell, as spec.md §3's "Cell index computation" requires: this makes an
// old cell's contents map into a contiguous run of new cells when capacity
// changes, because only the number of high bits consulted changes.
func cellIndex(h uint64, numCells uint64) uint64 {
	shift := 64 - bits.Len64(numCells-1)
	return h >> uint(shift)
}

// newSeededHasher builds a func(K) uint64 for comparable K using
// hash/maphash, the generic counterpart of the teacher's hash/map_test.go
// newIntHasher helper (which hand-encodes an int into bytes for a fixed
// maphash.Hash). maphash.Comparable covers any comparable K generically
// without per-type byte-encoding boilerplate.
func newSeededHasher[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(k K) uint64 {
		return maphash.Comparable(seed, k)
	}
}
