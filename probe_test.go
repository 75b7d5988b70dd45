package rwprobe

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrchypark/rwprobe/pkg/lock"
)

// collector is a Reporter that keeps every sample for inspection.
type collector struct {
	mu      sync.Mutex
	samples []Sample
}

func (c *collector) Report(s Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func (c *collector) snapshot() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sample(nil), c.samples...)
}

func (c *collector) perTask() map[TaskID]int {
	out := make(map[TaskID]int)
	for _, s := range c.snapshot() {
		out[s.Task]++
	}
	return out
}

func startProbe(t *testing.T, p *Probe) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitRun(t *testing.T, errCh <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(within):
		t.Fatal("probe did not stop in time")
		return nil
	}
}

// TestProbe_FixedHold checks that a single reader with the fixed variant
// holds the lock for 333ms on every iteration.
func TestProbe_FixedHold(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}
	opts, err := VariantFixed.Options()
	require.NoError(t, err)

	c := &collector{}
	p, err := New(log.NewNopLogger(), append(opts, WithReporter(c), WithDuration(1200*time.Millisecond))...)
	require.NoError(t, err)
	require.Equal(t, 1, p.Tasks())

	require.NoError(t, p.Run(context.Background()))

	samples := c.snapshot()
	require.GreaterOrEqual(t, len(samples), 3)
	for i, s := range samples {
		assert.Equal(t, TaskID(1), s.Task)
		assert.Equal(t, RoleReader, s.Role)
		assert.Equal(t, 333*time.Millisecond, s.Hold)
		assert.GreaterOrEqual(t, s.Wait, time.Duration(0))
		if i > 0 {
			// The reader re-acquires right after releasing, so consecutive
			// acquisitions are one hold apart plus scheduler jitter.
			gap := s.AcquiredAt.Sub(samples[i-1].AcquiredAt)
			assert.GreaterOrEqual(t, gap, 333*time.Millisecond)
			assert.Less(t, gap, 433*time.Millisecond)
		}
	}
}

func TestProbe_ReaderTimingsAndMutualExclusion(t *testing.T) {
	for _, kind := range lock.Kinds {
		t.Run(kind, func(t *testing.T) {
			backend, err := lock.New(kind)
			require.NoError(t, err)
			inst := lock.NewInstrumented(backend)

			c := &collector{}
			p, err := New(nil,
				WithReaders(4),
				WithReaderHold(5*time.Millisecond, 20*time.Millisecond),
				WithWriter(time.Millisecond, 5*time.Millisecond),
				WithLocker(inst),
				WithReporter(c),
				WithDuration(400*time.Millisecond),
				WithSeed(99),
			)
			require.NoError(t, err)
			require.NoError(t, p.Run(context.Background()))

			var readers, writers int
			for _, s := range c.snapshot() {
				assert.GreaterOrEqual(t, s.Wait, time.Duration(0))
				switch s.Role {
				case RoleReader:
					readers++
					assert.GreaterOrEqual(t, s.Hold, 5*time.Millisecond)
					assert.Less(t, s.Hold, 20*time.Millisecond)
				case RoleWriter:
					writers++
					assert.Equal(t, TaskID(5), s.Task)
					assert.Zero(t, s.Hold)
				}
			}
			assert.Positive(t, readers)
			assert.Positive(t, writers)

			occ := inst.Occupancy()
			assert.Zero(t, occ.Violations)
			assert.Equal(t, int64(1), occ.MaxWriters)
			assert.Zero(t, occ.Readers)
			assert.Zero(t, occ.Writers)

			stats := p.Stats()
			assert.GreaterOrEqual(t, stats.Readers.Acquisitions, int64(readers))
			assert.GreaterOrEqual(t, stats.Writer.Acquisitions, int64(writers))
		})
	}
}

// TestProbe_RunsUntilCancelled checks that the probe never stops on its own
// and that every task reports while it runs.
func TestProbe_RunsUntilCancelled(t *testing.T) {
	c := &collector{}
	p, err := New(nil,
		WithReaders(3),
		WithReaderHold(10*time.Millisecond, 50*time.Millisecond),
		WithWriter(20*time.Millisecond, 60*time.Millisecond),
		WithReporter(c),
	)
	require.NoError(t, err)

	cancel, errCh := startProbe(t, p)

	select {
	case err := <-errCh:
		t.Fatalf("probe exited on its own: %v", err)
	case <-time.After(2 * time.Second):
	}

	perTask := c.perTask()
	for id := TaskID(1); id <= TaskID(p.Tasks()); id++ {
		assert.Positive(t, perTask[id], "task %s never reported", id)
	}

	cancel()
	assert.NoError(t, waitRun(t, errCh, 2*time.Second))
}

func TestProbe_DurationBoundsRun(t *testing.T) {
	p, err := New(nil,
		WithReaders(2),
		WithReaderHold(time.Millisecond, 2*time.Millisecond),
		WithDuration(150*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Run(context.Background()))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestProbe_CancelInterruptsLongHold(t *testing.T) {
	p, err := New(nil, WithReaders(1), WithFixedHold(time.Hour))
	require.NoError(t, err)

	cancel, errCh := startProbe(t, p)
	require.Eventually(t, func() bool { return p.Stats().Readers.Acquisitions == 1 }, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, waitRun(t, errCh, time.Second))
	// Leaving the hold early through cancellation is a normal return.
	assert.False(t, p.Lock().IsPoisoned())
}

func TestProbe_RunTwice(t *testing.T) {
	p, err := New(nil, WithReaders(1), WithFixedHold(5*time.Millisecond))
	require.NoError(t, err)

	cancel, errCh := startProbe(t, p)
	require.Eventually(t, func() bool { return p.Stats().Readers.Acquisitions > 0 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, p.Run(context.Background()), ErrRunning)

	cancel()
	require.NoError(t, waitRun(t, errCh, time.Second))
}

// TestProbe_PoisonedByAbortedReader aborts a reader while it holds the shared
// lock; the next acquisition by any probe task must fail.
func TestProbe_PoisonedByAbortedReader(t *testing.T) {
	p, err := New(nil,
		WithReaders(3),
		WithReaderHold(5*time.Millisecond, 20*time.Millisecond),
		WithWriter(5*time.Millisecond, 10*time.Millisecond),
	)
	require.NoError(t, err)

	_, errCh := startProbe(t, p)
	require.Eventually(t, func() bool { return p.Stats().Readers.Acquisitions > 3 }, 2*time.Second, time.Millisecond)

	aborted := make(chan struct{})
	go func() {
		defer close(aborted)
		_ = p.Lock().Read(func() { runtime.Goexit() })
	}()
	<-aborted

	err = waitRun(t, errCh, 2*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lock.ErrPoisoned))
	assert.Regexp(t, `^rwprobe: ThreadId\(\d\): lock: poisoned lock on (read|write)$`, err.Error())
}

func TestProbe_PoisonedByPanickingWriter(t *testing.T) {
	p, err := New(nil, WithReaders(2), WithReaderHold(5*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, err)

	_, errCh := startProbe(t, p)
	require.Eventually(t, func() bool { return p.Stats().Readers.Acquisitions > 0 }, time.Second, time.Millisecond)

	assert.Panics(t, func() {
		_ = p.Lock().Write(func() { panic("writer died") })
	})

	err = waitRun(t, errCh, 2*time.Second)
	require.ErrorIs(t, err, lock.ErrPoisoned)
	assert.True(t, strings.HasSuffix(err.Error(), "poisoned lock on read"))
}

func TestProbe_LogsProgressAndSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogfmtLogger(log.NewSyncWriter(&buf))

	p, err := New(logger,
		WithReaders(2),
		WithReaderHold(time.Millisecond, 3*time.Millisecond),
		WithProgressInterval(time.Hour),
		WithDuration(100*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `msg="contention progress"`))
	assert.Contains(t, out, `msg="probe started"`)
	assert.Contains(t, out, `msg="probe stopped"`)
	assert.Contains(t, out, "run_id="+p.RunID().String())
}

// TestProbe_WriterStarvation reproduces writer starvation: eight readers with
// overlapping 50ms holds keep a reader-preferring lock permanently shared.
func TestProbe_WriterStarvation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10s starvation scenario in short mode")
	}

	inst := lock.NewInstrumented(lock.NewReaderPrefLock())
	p, err := New(nil,
		WithReaders(8),
		WithFixedHold(50*time.Millisecond),
		WithStagger(50*time.Millisecond/8),
		WithWriter(time.Millisecond, 2*time.Millisecond),
		WithLocker(inst),
		WithDuration(10*time.Second),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statsCh := make(chan Stats, 1)
	go func() {
		time.Sleep(9500 * time.Millisecond)
		statsCh <- p.Stats()
	}()

	require.NoError(t, p.Run(ctx))
	stats := <-statsCh

	assert.Greater(t, stats.Writer.WorstWait(), 500*time.Millisecond)
	assert.Positive(t, stats.Readers.Acquisitions)
	assert.Zero(t, inst.Occupancy().Violations)
}

// TestProbe_WriterPreferringLockBoundsWriterWait runs the same load on
// sync.RWMutex, which lets a waiting writer in after the current readers.
func TestProbe_WriterPreferringLockBoundsWriterWait(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	p, err := New(nil,
		WithReaders(8),
		WithFixedHold(50*time.Millisecond),
		WithStagger(50*time.Millisecond/8),
		WithWriter(time.Millisecond, 2*time.Millisecond),
		WithLock(lock.KindRWMutex),
		WithDuration(2*time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	stats := p.Stats()
	assert.Greater(t, stats.Writer.Acquisitions, int64(5))
	assert.Less(t, stats.Writer.MaxWait, 500*time.Millisecond)
}
