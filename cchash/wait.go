package cchash

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
)

// Cell lock bits, packed into the low byte of the metadata word. The
// remaining bytes hold the overflow-length and occupancy fields defined in
// cell.go; all three live in the same atomic.Uint32 so a single CAS can
// move the cell between lock states without disturbing its data (spec.md
// §3: "a single atomic metadata word").
const (
	metaLockBit    uint32 = 1 << 0
	metaKilledBit  uint32 = 1 << 1
	metaWaitingBit uint32 = 1 << 2
)

// maxLockSpins bounds the busy-spin phase of lockExclusive before it parks
// on the wait-set table (spec.md §4.2: "after N spins, set WAITING and
// park").
const maxLockSpins = 32

// waitTableSize is the size of the hashed global wait-set table (spec.md
// §4.2, §9: "a small global wait-set table with hashed keying"; "this
// avoids per-cell OS primitives"). Kept small and power-of-two sized so the
// modulo below compiles down to a mask.
const waitTableSize = 1 << 8

type waitSlot struct {
	mu   sync.Mutex
	cond *sync.Cond
}

var waitTable [waitTableSize]waitSlot

func init() {
	for i := range waitTable {
		waitTable[i].cond = sync.NewCond(&waitTable[i].mu)
	}
}

// slotFor hashes a cell's address into the wait-set table. Using pointer
// identity rather than a per-cell condition variable keeps a cell at its
// spec-mandated size (metadata word + slots + overflow head) without an
// embedded sync.Cond, at the cost of the rare false-wake when two
// contended cells hash to the same slot - harmless, since every waiter
// re-checks the lock bit itself after waking.
func slotFor(addr unsafe.Pointer) *waitSlot {
	h := uintptr(addr)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return &waitTable[uint(h)&(waitTableSize-1)]
}

// newLockBackoff builds the exponential backoff policy used between spin
// attempts, reusing cenkalti/backoff/v4 (the teacher's retry-pacing library
// in gnmireverse/client/client.go) for lock contention instead of network
// retries: the same "wait a little longer each try" shape applies.
func newLockBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Microsecond
	bo.MaxInterval = 50 * time.Microsecond
	bo.Multiplier = 1.5
	bo.RandomizationFactor = 0.25
	bo.MaxElapsedTime = 0 // bounded externally by maxLockSpins, not by elapsed time
	return bo
}

// acquireLock sets the LOCK bit of meta, spinning with exponential backoff
// for maxLockSpins attempts before parking on the wait-set table keyed by
// addr (spec.md §4.2 lock_exclusive).
func acquireLock(addr unsafe.Pointer, meta *atomic.Uint32) {
	for old := meta.Load(); ; old = meta.Load() {
		if old&metaLockBit == 0 {
			if meta.CompareAndSwap(old, old|metaLockBit) {
				return
			}
			continue
		}
		break
	}

	bo := newLockBackoff()
	for spins := 0; spins < maxLockSpins; spins++ {
		time.Sleep(bo.NextBackOff())
		old := meta.Load()
		if old&metaLockBit == 0 && meta.CompareAndSwap(old, old|metaLockBit) {
			return
		}
	}

	park(addr, meta)
}

// park sets WAITING and blocks on the hashed wait-set slot until this
// goroutine wins the lock.
func park(addr unsafe.Pointer, meta *atomic.Uint32) {
	slot := slotFor(addr)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	for {
		old := meta.Load()
		if old&metaLockBit == 0 {
			if meta.CompareAndSwap(old, old|metaLockBit) {
				return
			}
			continue
		}
		if old&metaWaitingBit == 0 && !meta.CompareAndSwap(old, old|metaWaitingBit) {
			// The word changed (possibly an unlock that saw no WAITING bit
			// and so will not broadcast); re-check before sleeping.
			continue
		}
		slot.cond.Wait()
	}
}

// releaseLock clears LOCK (and WAITING, since any parker will re-check the
// bit once woken) and, if a waiter may be parked, wakes every goroutine
// waiting on addr's hashed slot - some of them may be waiting on an
// unrelated cell that happened to hash to the same slot, and will simply
// go back to sleep.
func releaseLock(addr unsafe.Pointer, meta *atomic.Uint32) {
	var old uint32
	for {
		old = meta.Load()
		next := old &^ (metaLockBit | metaWaitingBit)
		if meta.CompareAndSwap(old, next) {
			break
		}
	}
	if old&metaWaitingBit != 0 {
		slot := slotFor(addr)
		slot.mu.Lock()
		slot.cond.Broadcast()
		slot.mu.Unlock()
	}
}
