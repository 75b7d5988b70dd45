package lock

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrPoisoned is returned when a lock is acquired after a previous holder
// terminated abnormally while holding it.
var ErrPoisoned = errors.New("lock: poisoned lock")

// Mode is the acquisition mode of a Poisonable lock.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Poisonable guards a single key of a Locker and tracks whether a holder
// ever left its critical section abnormally.
//
// The lock is poisoned when the function passed to Read or Write panics or
// calls runtime.Goexit. Every later acquisition, in either mode, returns an
// error wrapping ErrPoisoned until ClearPoison is called.
type Poisonable struct {
	locker   Locker
	key      string
	poisoned atomic.Bool
}

// NewPoisonable wraps locker. All acquisitions use key.
func NewPoisonable(locker Locker, key string) *Poisonable {
	if locker == nil {
		locker = NewMutexLock()
	}
	return &Poisonable{locker: locker, key: key}
}

// Read runs fn while holding the shared lock.
func (p *Poisonable) Read(fn func()) error {
	return p.with(ModeRead, fn)
}

// Write runs fn while holding the exclusive lock.
func (p *Poisonable) Write(fn func()) error {
	return p.with(ModeWrite, fn)
}

// IsPoisoned reports whether the lock has been poisoned.
func (p *Poisonable) IsPoisoned() bool {
	return p.poisoned.Load()
}

// ClearPoison resets the poisoned state.
func (p *Poisonable) ClearPoison() {
	p.poisoned.Store(false)
}

// Locker returns the wrapped backend.
func (p *Poisonable) Locker() Locker {
	return p.locker
}

func (p *Poisonable) with(mode Mode, fn func()) error {
	p.acquire(mode)
	if p.poisoned.Load() {
		p.release(mode)
		return fmt.Errorf("%w on %s", ErrPoisoned, mode)
	}

	completed := false
	defer func() {
		// Poison before releasing so the next holder observes it.
		if !completed {
			p.poisoned.Store(true)
		}
		p.release(mode)
	}()
	fn()
	completed = true
	return nil
}

func (p *Poisonable) acquire(mode Mode) {
	if mode == ModeWrite {
		p.locker.Lock(p.key)
		return
	}
	p.locker.RLock(p.key)
}

func (p *Poisonable) release(mode Mode) {
	if mode == ModeWrite {
		p.locker.Unlock(p.key)
		return
	}
	p.locker.RUnlock(p.key)
}
