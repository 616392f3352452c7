package compute

import (
	"sync"

	"github.com/brimdata/zframe"
)

const numLocks = 1024

// stripedLocks guards per-vertex cells with a fixed array of mutexes.
// Distinct vertices may share a slot.
type stripedLocks [numLocks]sync.Mutex

func lockSlot(partition int, lvid int64) int {
	return int(zframe.HashCombine(uint64(partition), uint64(lvid)) % numLocks)
}

func (s *stripedLocks) lock(partition int, lvid int64) *sync.Mutex {
	mu := &s[lockSlot(partition, lvid)]
	mu.Lock()
	return mu
}

// lockPair locks the slots of two vertices in slot order and returns a
// function that unlocks them.
func (s *stripedLocks) lockPair(p1 int, v1 int64, p2 int, v2 int64) func() {
	a, b := lockSlot(p1, v1), lockSlot(p2, v2)
	if a == b {
		s[a].Lock()
		return s[a].Unlock
	}
	if a > b {
		a, b = b, a
	}
	s[a].Lock()
	s[b].Lock()
	return func() {
		s[b].Unlock()
		s[a].Unlock()
	}
}
