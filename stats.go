package rwprobe

import (
	"sync"
	"time"
)

// RoleStats aggregates the acquisitions of all tasks with one role.
type RoleStats struct {
	Acquisitions int64
	LastWait     time.Duration
	MaxWait      time.Duration
	TotalWait    time.Duration
	// Pending is the age of the oldest wait still in progress at snapshot time.
	Pending time.Duration
}

// MeanWait returns the average wait per acquisition.
func (s RoleStats) MeanWait() time.Duration {
	if s.Acquisitions == 0 {
		return 0
	}
	return s.TotalWait / time.Duration(s.Acquisitions)
}

// WorstWait returns the longer of the last completed wait and the pending one.
// A starving task never completes a wait, so only Pending grows.
func (s RoleStats) WorstWait() time.Duration {
	return max(s.LastWait, s.Pending)
}

// Stats is a snapshot of a probe's acquisitions.
type Stats struct {
	Readers RoleStats
	Writer  RoleStats
}

type waiting struct {
	role  Role
	since time.Time
}

type statsRecorder struct {
	mu      sync.Mutex
	roles   map[Role]*RoleStats
	pending map[TaskID]waiting
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		roles: map[Role]*RoleStats{
			RoleReader: {},
			RoleWriter: {},
		},
		pending: make(map[TaskID]waiting),
	}
}

func (r *statsRecorder) beginWait(id TaskID, role Role, since time.Time) {
	r.mu.Lock()
	r.pending[id] = waiting{role: role, since: since}
	r.mu.Unlock()
}

func (r *statsRecorder) endWait(id TaskID) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *statsRecorder) acquired(id TaskID, role Role, wait time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, id)
	s := r.roles[role]
	s.Acquisitions++
	s.LastWait = wait
	s.TotalWait += wait
	if wait > s.MaxWait {
		s.MaxWait = wait
	}
}

func (r *statsRecorder) snapshot(now time.Time) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Stats{
		Readers: *r.roles[RoleReader],
		Writer:  *r.roles[RoleWriter],
	}
	for _, w := range r.pending {
		age := now.Sub(w.since)
		switch w.role {
		case RoleReader:
			out.Readers.Pending = max(out.Readers.Pending, age)
		case RoleWriter:
			out.Writer.Pending = max(out.Writer.Pending, age)
		}
	}
	return out
}
