// Package lock provides the reader/writer lock backends exercised by the probe.
package lock

import "fmt"

// Locker defines the interface for a keyed reader/writer locking mechanism.
// Backends that guard a single lock ignore the key.
type Locker interface {
	Lock(key string)
	Unlock(key string)
	RLock(key string)
	RUnlock(key string)
}

// Backend names accepted by New.
const (
	KindRWMutex    = "rwmutex"
	KindStripe     = "stripe"
	KindReaderPref = "readerpref"
)

// Kinds lists every backend name New understands.
var Kinds = []string{KindRWMutex, KindStripe, KindReaderPref}

// New returns the backend registered under kind.
// An empty kind selects the standard library RWMutex.
func New(kind string) (Locker, error) {
	switch kind {
	case "", KindRWMutex:
		return NewMutexLock(), nil
	case KindStripe:
		return NewStripeLock(0), nil
	case KindReaderPref:
		return NewReaderPrefLock(), nil
	default:
		return nil, fmt.Errorf("lock: unknown backend %q", kind)
	}
}
