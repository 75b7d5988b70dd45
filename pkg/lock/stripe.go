package lock

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// StripeLock spreads keys over a fixed number of RWMutexes (striped locking).
// Tasks that share a key contend on the same stripe exactly as they would on
// a single RWMutex; distinct keys may land on different stripes.
type StripeLock struct {
	locks []sync.RWMutex
	slots uint64
}

var _ Locker = (*StripeLock)(nil)

// NewStripeLock creates a new lock with a given number of slots.
// If slots is 0 or less, it defaults to 2048 slots.
func NewStripeLock(slots int) *StripeLock {
	if slots <= 0 {
		slots = 2048
	}
	return &StripeLock{
		locks: make([]sync.RWMutex, slots),
		slots: uint64(slots),
	}
}

// Slot reports which stripe guards key.
func (sl *StripeLock) Slot(key string) uint64 {
	return xxh3.HashString(key) % sl.slots
}

// RLock locks the stripe for the given key for reading.
func (sl *StripeLock) RLock(key string) {
	sl.locks[sl.Slot(key)].RLock()
}

// RUnlock unlocks the stripe for the given key for reading.
func (sl *StripeLock) RUnlock(key string) {
	sl.locks[sl.Slot(key)].RUnlock()
}

// Lock locks the stripe for the given key for writing.
func (sl *StripeLock) Lock(key string) {
	sl.locks[sl.Slot(key)].Lock()
}

// Unlock unlocks the stripe for the given key for writing.
func (sl *StripeLock) Unlock(key string) {
	sl.locks[sl.Slot(key)].Unlock()
}
