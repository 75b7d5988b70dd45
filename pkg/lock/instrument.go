package lock

import "sync/atomic"

// Occupancy is a snapshot of an Instrumented lock.
type Occupancy struct {
	Readers    int64
	Writers    int64
	MaxReaders int64
	MaxWriters int64
	// Violations counts acquisitions that observed a second writer, or a
	// writer together with readers.
	Violations int64
}

// Instrumented wraps a Locker and counts its holders.
//
// Counters are incremented after the underlying acquire and decremented
// before the underlying release, so a correct backend never reports a
// violation. All holders are assumed to use the same key.
type Instrumented struct {
	locker     Locker
	readers    atomic.Int64
	writers    atomic.Int64
	maxReaders atomic.Int64
	maxWriters atomic.Int64
	violations atomic.Int64
}

var _ Locker = (*Instrumented)(nil)

// NewInstrumented wraps locker.
func NewInstrumented(locker Locker) *Instrumented {
	return &Instrumented{locker: locker}
}

func (i *Instrumented) Lock(key string) {
	i.locker.Lock(key)
	w := i.writers.Add(1)
	storeMax(&i.maxWriters, w)
	if w > 1 || i.readers.Load() > 0 {
		i.violations.Add(1)
	}
}

func (i *Instrumented) Unlock(key string) {
	i.writers.Add(-1)
	i.locker.Unlock(key)
}

func (i *Instrumented) RLock(key string) {
	i.locker.RLock(key)
	r := i.readers.Add(1)
	storeMax(&i.maxReaders, r)
	if i.writers.Load() > 0 {
		i.violations.Add(1)
	}
}

func (i *Instrumented) RUnlock(key string) {
	i.readers.Add(-1)
	i.locker.RUnlock(key)
}

// Occupancy returns the current counters.
func (i *Instrumented) Occupancy() Occupancy {
	return Occupancy{
		Readers:    i.readers.Load(),
		Writers:    i.writers.Load(),
		MaxReaders: i.maxReaders.Load(),
		MaxWriters: i.maxWriters.Load(),
		Violations: i.violations.Load(),
	}
}

func storeMax(dst *atomic.Int64, v int64) {
	for {
		cur := dst.Load()
		if v <= cur || dst.CompareAndSwap(cur, v) {
			return
		}
	}
}
