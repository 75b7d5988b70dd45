package report

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mrchypark/rwprobe"
)

// Record is the JSON form of one sample.
type Record struct {
	RunID      uuid.UUID    `json:"run_id"`
	Task       int          `json:"task"`
	Role       rwprobe.Role `json:"role"`
	WaitMicros int64        `json:"wait_us"`
	HoldMillis int64        `json:"hold_ms,omitempty"`
	AcquiredAt time.Time    `json:"acquired_at"`
}

// JSON writes one JSON object per line.
type JSON struct {
	mu    sync.Mutex
	enc   *json.Encoder
	runID uuid.UUID
}

var _ rwprobe.Reporter = (*JSON)(nil)

// NewJSON creates a JSON reporter tagging every record with runID.
func NewJSON(w io.Writer, runID uuid.UUID) *JSON {
	return &JSON{enc: json.NewEncoder(w), runID: runID}
}

// Report encodes s. Encoding errors are ignored like in Text.
func (j *JSON) Report(s rwprobe.Sample) {
	rec := Record{
		RunID:      j.runID,
		Task:       int(s.Task),
		Role:       s.Role,
		WaitMicros: s.Wait.Microseconds(),
		HoldMillis: s.Hold.Milliseconds(),
		AcquiredAt: s.AcquiredAt,
	}
	j.mu.Lock()
	_ = j.enc.Encode(rec)
	j.mu.Unlock()
}
