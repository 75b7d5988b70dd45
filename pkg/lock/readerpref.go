package lock

import "sync"

// ReaderPrefLock is a reader-preferring reader/writer lock.
//
// Readers only wait while a writer actually holds the lock; a writer that is
// merely waiting does not keep new readers out. Under overlapping read
// traffic the reader count never drops to zero and writers starve.
type ReaderPrefLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	readers int
	writer  bool
}

var _ Locker = (*ReaderPrefLock)(nil)

// NewReaderPrefLock creates a new ReaderPrefLock.
func NewReaderPrefLock() *ReaderPrefLock {
	l := &ReaderPrefLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// RLock locks for reading, waiting only for an active writer.
func (l *ReaderPrefLock) RLock(string) {
	l.mu.Lock()
	for l.writer {
		l.cond.Wait()
	}
	l.readers++
	l.mu.Unlock()
}

// RUnlock releases a read lock and wakes waiters once the last reader leaves.
func (l *ReaderPrefLock) RUnlock(string) {
	l.mu.Lock()
	if l.readers <= 0 {
		l.mu.Unlock()
		panic("lock: RUnlock of unlocked ReaderPrefLock")
	}
	l.readers--
	if l.readers == 0 {
		l.cond.Broadcast()
	}
	l.mu.Unlock()
}

// Lock locks for writing once there are no readers and no writer.
func (l *ReaderPrefLock) Lock(string) {
	l.mu.Lock()
	for l.writer || l.readers > 0 {
		l.cond.Wait()
	}
	l.writer = true
	l.mu.Unlock()
}

// Unlock releases the write lock.
func (l *ReaderPrefLock) Unlock(string) {
	l.mu.Lock()
	if !l.writer {
		l.mu.Unlock()
		panic("lock: Unlock of unlocked ReaderPrefLock")
	}
	l.writer = false
	l.cond.Broadcast()
	l.mu.Unlock()
}
