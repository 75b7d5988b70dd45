// Package rwprobe measures reader/writer contention on a shared lock.
//
// A Probe spawns reader tasks, and optionally one writer task, that
// repeatedly acquire the shared lock, hold it for a sampled duration and
// report how long they waited for it. The lock backend is pluggable, which
// makes the fairness policy of the backend the variable under test.
package rwprobe

import (
	"fmt"
	"time"
)

// Role identifies the lock mode a task uses.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
)

// TaskID identifies a task within one probe, starting at 1 in spawn order.
type TaskID int

func (id TaskID) String() string {
	return fmt.Sprintf("ThreadId(%d)", int(id))
}

// Sample is the timing of one lock acquisition.
type Sample struct {
	Task TaskID
	Role Role
	// Wait is the time spent blocked on acquisition.
	Wait time.Duration
	// Hold is how long the lock was held. Writers do not measure it.
	Hold       time.Duration
	AcquiredAt time.Time
}

// Reporter receives every sample. Implementations must be safe for
// concurrent use; Report is called from every task goroutine.
type Reporter interface {
	Report(s Sample)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(s Sample)

// Report calls f(s).
func (f ReporterFunc) Report(s Sample) { f(s) }

// Layout selects how a sample is rendered on the console.
type Layout struct {
	// Micros reports reader waits in microseconds instead of milliseconds.
	Micros bool
	// ReadLock names the lock "a read lock" instead of "a lock".
	ReadLock bool
	// ShowTask appends the task id to every line.
	ShowTask bool
}

var (
	// LayoutLock: "Reader waited {N} μs for a lock, held it {M} ms {id}".
	LayoutLock = Layout{Micros: true, ShowTask: true}
	// LayoutReadLockMicros: "Reader waited {N} μs for a read lock, held it {M} ms {id}".
	LayoutReadLockMicros = Layout{Micros: true, ReadLock: true, ShowTask: true}
	// LayoutReadLockMillis: "Reader waited {N} ms for a read lock, held it {M} ms {id}".
	LayoutReadLockMillis = Layout{ReadLock: true, ShowTask: true}
	// LayoutReadLockPlain: "Reader waited {N} ms for a read lock, held it {M} ms".
	LayoutReadLockPlain = Layout{ReadLock: true}
)
