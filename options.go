package rwprobe

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/mrchypark/rwprobe/pkg/lock"
)

// ConfigError represents an error that occurs during the configuration process.
type ConfigError struct {
	Message string
}

// Error returns the error message for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("rwprobe: configuration error: %s", e.Message)
}

// Range is a half-open duration interval [Min, Max) sampled uniformly.
// A Range with Min == Max always yields Min.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Fixed returns a Range that always yields d.
func Fixed(d time.Duration) Range {
	return Range{Min: d, Max: d}
}

// IsFixed reports whether the range has a single value.
func (r Range) IsFixed() bool {
	return r.Min == r.Max
}

func (r Range) sample(rng *rand.Rand) time.Duration {
	if r.IsFixed() {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int64N(int64(r.Max-r.Min)))
}

func (r Range) validate(name string) error {
	if r.Min < 0 {
		return &ConfigError{name + " cannot be negative"}
	}
	if r.Max < r.Min {
		return &ConfigError{name + " upper bound must not be below the lower bound"}
	}
	return nil
}

// Config holds all the configurable settings for a Probe.
// Option functions modify fields within this struct.
type Config struct {
	// Readers is the number of reader tasks. Zero selects DefaultReaders().
	Readers    int
	ReaderHold Range

	Writer      bool
	WriterDelay Range

	Locker  lock.Locker
	LockKey string

	Reporter Reporter

	// Duration bounds a run. Zero runs until the context is cancelled.
	Duration time.Duration
	// Stagger delays the start of reader i by i*Stagger.
	Stagger time.Duration
	// ProgressInterval throttles the periodic progress log. Zero disables it.
	ProgressInterval time.Duration
	ShutdownTimeout  time.Duration

	// Seed makes every task's random stream reproducible when non-zero.
	Seed uint64
	// RunID tags logs and reports. uuid.Nil generates a fresh one.
	RunID uuid.UUID
}

// Option is a function type that modifies the Config.
type Option func(cfg *Config) error

// WithReaders sets the number of reader tasks.
func WithReaders(n int) Option {
	return func(cfg *Config) error {
		if n <= 0 {
			return &ConfigError{"reader count must be positive"}
		}
		cfg.Readers = n
		return nil
	}
}

// WithReaderHold makes readers hold the lock for a uniform random duration in [min, max).
func WithReaderHold(min, max time.Duration) Option {
	return func(cfg *Config) error {
		r := Range{Min: min, Max: max}
		if err := r.validate("reader hold"); err != nil {
			return err
		}
		cfg.ReaderHold = r
		return nil
	}
}

// WithFixedHold makes readers hold the lock for exactly d on every iteration.
func WithFixedHold(d time.Duration) Option {
	return WithReaderHold(d, d)
}

// WithWriter adds a writer task that sleeps a uniform random duration in
// [min, max) after each release.
func WithWriter(min, max time.Duration) Option {
	return func(cfg *Config) error {
		r := Range{Min: min, Max: max}
		if err := r.validate("writer delay"); err != nil {
			return err
		}
		cfg.Writer = true
		cfg.WriterDelay = r
		return nil
	}
}

// WithoutWriter removes the writer task.
func WithoutWriter() Option {
	return func(cfg *Config) error {
		cfg.Writer = false
		return nil
	}
}

// WithLock selects a lock backend by name (see lock.Kinds).
func WithLock(kind string) Option {
	return func(cfg *Config) error {
		l, err := lock.New(kind)
		if err != nil {
			return &ConfigError{err.Error()}
		}
		cfg.Locker = l
		return nil
	}
}

// WithLocker sets the lock backend directly, e.g. an instrumented one.
func WithLocker(l lock.Locker) Option {
	return func(cfg *Config) error {
		if l == nil {
			return &ConfigError{"locker cannot be nil"}
		}
		cfg.Locker = l
		return nil
	}
}

// WithLockKey sets the key every task locks. It only matters for keyed backends.
func WithLockKey(key string) Option {
	return func(cfg *Config) error {
		cfg.LockKey = key
		return nil
	}
}

// WithReporter sets where samples are sent.
func WithReporter(r Reporter) Option {
	return func(cfg *Config) error {
		if r == nil {
			return &ConfigError{"reporter cannot be nil"}
		}
		cfg.Reporter = r
		return nil
	}
}

// WithDuration bounds every run to d.
func WithDuration(d time.Duration) Option {
	return func(cfg *Config) error {
		if d <= 0 {
			return &ConfigError{"run duration must be positive"}
		}
		cfg.Duration = d
		return nil
	}
}

// WithStagger spreads reader start times d apart.
func WithStagger(d time.Duration) Option {
	return func(cfg *Config) error {
		if d < 0 {
			return &ConfigError{"stagger cannot be a negative value"}
		}
		cfg.Stagger = d
		return nil
	}
}

// WithProgressInterval logs a progress summary at most once per d.
func WithProgressInterval(d time.Duration) Option {
	return func(cfg *Config) error {
		if d < 0 {
			return &ConfigError{"progress interval cannot be a negative value"}
		}
		cfg.ProgressInterval = d
		return nil
	}
}

// WithShutdownTimeout sets how long Run waits for tasks after cancellation.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *Config) error {
		if timeout <= 0 {
			return &ConfigError{"shutdown timeout must be positive"}
		}
		cfg.ShutdownTimeout = timeout
		return nil
	}
}

// WithSeed makes the sampled durations reproducible.
func WithSeed(seed uint64) Option {
	return func(cfg *Config) error {
		cfg.Seed = seed
		return nil
	}
}

// WithRunID sets the id the probe logs under, so reporters can share it.
func WithRunID(id uuid.UUID) Option {
	return func(cfg *Config) error {
		cfg.RunID = id
		return nil
	}
}
