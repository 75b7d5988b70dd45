package lock

import "sync"

// MutexLock is a simple lock that uses a single RWMutex.
//
// sync.RWMutex blocks new readers once a writer is waiting, so writers
// cannot be starved by a steady stream of readers.
type MutexLock struct {
	mu sync.RWMutex
}

var _ Locker = (*MutexLock)(nil)

// NewMutexLock creates a new MutexLock.
func NewMutexLock() *MutexLock {
	return &MutexLock{}
}

func (l *MutexLock) Lock(string)    { l.mu.Lock() }
func (l *MutexLock) Unlock(string)  { l.mu.Unlock() }
func (l *MutexLock) RLock(string)   { l.mu.RLock() }
func (l *MutexLock) RUnlock(string) { l.mu.RUnlock() }
