package rwprobe

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mrchypark/rwprobe/internal/worker"
	"github.com/mrchypark/rwprobe/pkg/lock"
)

// ErrRunning is returned by Run when the probe is already running.
var ErrRunning = errors.New("rwprobe: probe is already running")

// Probe spawns the reader and writer tasks around one shared lock.
type Probe struct {
	cfg      Config
	runID    uuid.UUID
	logger   log.Logger
	lock     *lock.Poisonable
	stats    *statsRecorder
	progress *rate.Sometimes
	running  atomic.Bool
}

// New creates and configures a new Probe.
func New(logger log.Logger, opts ...Option) (*Probe, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	cfg := Config{
		ReaderHold:      Range{Min: readerHoldMin, Max: readerHoldMax},
		WriterDelay:     Range{Min: writerDelayMin, Max: writerDelayMax},
		LockKey:         "probe",
		ShutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Readers == 0 {
		cfg.Readers = DefaultReaders()
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewMutexLock()
	}
	if cfg.Reporter == nil {
		level.Debug(logger).Log("msg", "reporter not configured, discarding samples")
		cfg.Reporter = newNullReporter()
	}

	runID := cfg.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	p := &Probe{
		cfg:    cfg,
		runID:  runID,
		logger: log.With(logger, "run_id", runID),
		lock:   lock.NewPoisonable(cfg.Locker, cfg.LockKey),
		stats:  newStatsRecorder(),
	}
	if cfg.ProgressInterval > 0 {
		p.progress = &rate.Sometimes{Interval: cfg.ProgressInterval}
	}
	return p, nil
}

// RunID identifies this probe in logs and JSON reports.
func (p *Probe) RunID() uuid.UUID {
	return p.runID
}

// Tasks returns the number of tasks Run spawns.
func (p *Probe) Tasks() int {
	if p.cfg.Writer {
		return p.cfg.Readers + 1
	}
	return p.cfg.Readers
}

// Lock returns the shared lock every task acquires.
func (p *Probe) Lock() *lock.Poisonable {
	return p.lock
}

// Stats returns a snapshot of the acquisitions so far.
func (p *Probe) Stats() Stats {
	return p.stats.snapshot(time.Now())
}

// Run starts all tasks and blocks until ctx is cancelled, the configured
// duration elapses or a task fails. Cancellation is not an error; a poisoned
// lock is returned wrapping lock.ErrPoisoned.
func (p *Probe) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)

	if p.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Duration)
		defer cancel()
	}

	level.Info(p.logger).Log(
		"msg", "probe started",
		"readers", p.cfg.Readers,
		"writer", p.cfg.Writer,
		"lock", fmt.Sprintf("%T", p.cfg.Locker),
		"hold_min", p.cfg.ReaderHold.Min,
		"hold_max", p.cfg.ReaderHold.Max,
	)

	g := worker.NewGroup(ctx, p.logger)
	for i := 1; i <= p.cfg.Readers; i++ {
		id := TaskID(i)
		g.Go(id.String(), func(ctx context.Context) error {
			return p.reader(ctx, id)
		})
	}
	if p.cfg.Writer {
		id := TaskID(p.cfg.Readers + 1)
		g.Go(id.String(), func(ctx context.Context) error {
			return p.writer(ctx, id)
		})
	}

	<-g.Context().Done()
	if err := g.Shutdown(p.cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.logSummary("probe stopped")
	return nil
}

func (p *Probe) reader(ctx context.Context, id TaskID) error {
	rng := p.newRand(id)
	if !sleepCtx(ctx, time.Duration(id-1)*p.cfg.Stagger) {
		return nil
	}

	for ctx.Err() == nil {
		hold := p.cfg.ReaderHold.sample(rng)
		start := time.Now()
		p.stats.beginWait(id, RoleReader, start)

		var acquiredAt time.Time
		held := false
		err := p.lock.Read(func() {
			acquiredAt = time.Now()
			p.stats.acquired(id, RoleReader, acquiredAt.Sub(start))
			held = sleepCtx(ctx, hold)
		})
		if err != nil {
			p.stats.endWait(id)
			return fmt.Errorf("rwprobe: %s: %w", id, err)
		}
		if !held {
			return nil
		}
		p.report(Sample{
			Task:       id,
			Role:       RoleReader,
			Wait:       acquiredAt.Sub(start),
			Hold:       hold,
			AcquiredAt: acquiredAt,
		})
	}
	return nil
}

// writer reports while still holding the lock and sleeps only after
// releasing it, so its hold time is not measured.
func (p *Probe) writer(ctx context.Context, id TaskID) error {
	rng := p.newRand(id)

	for ctx.Err() == nil {
		delay := p.cfg.WriterDelay.sample(rng)
		start := time.Now()
		p.stats.beginWait(id, RoleWriter, start)

		err := p.lock.Write(func() {
			acquiredAt := time.Now()
			wait := acquiredAt.Sub(start)
			p.stats.acquired(id, RoleWriter, wait)
			p.report(Sample{Task: id, Role: RoleWriter, Wait: wait, AcquiredAt: acquiredAt})
		})
		if err != nil {
			p.stats.endWait(id)
			return fmt.Errorf("rwprobe: %s: %w", id, err)
		}
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
	return nil
}

func (p *Probe) report(s Sample) {
	p.cfg.Reporter.Report(s)
	if p.progress != nil {
		p.progress.Do(func() { p.logSummary("contention progress") })
	}
}

func (p *Probe) logSummary(msg string) {
	s := p.Stats()
	level.Info(p.logger).Log(
		"msg", msg,
		"reader_acquisitions", s.Readers.Acquisitions,
		"reader_mean_wait", s.Readers.MeanWait(),
		"reader_max_wait", s.Readers.MaxWait,
		"writer_acquisitions", s.Writer.Acquisitions,
		"writer_max_wait", s.Writer.MaxWait,
		"writer_pending", s.Writer.Pending,
	)
}

func (p *Probe) newRand(id TaskID) *rand.Rand {
	seed := p.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, uint64(id)))
}

// sleepCtx sleeps for d and reports whether it did so without ctx being cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
