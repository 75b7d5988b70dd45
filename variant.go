package rwprobe

import (
	"fmt"
	"runtime"
	"time"
)

// Variant is a preset reproducing one of the classic probe setups.
type Variant string

const (
	// VariantFixed runs one reader holding the lock for 333ms, no writer.
	VariantFixed Variant = "fixed"
	// VariantReadMillis runs parallel readers and reports waits in ms.
	VariantReadMillis Variant = "read-ms"
	// VariantReadMicros runs parallel readers and reports waits in μs.
	VariantReadMicros Variant = "read-us"
	// VariantWriter runs parallel readers plus one writer.
	VariantWriter Variant = "writer"
)

// Variants lists every preset in the order they were introduced.
var Variants = []Variant{VariantFixed, VariantReadMillis, VariantReadMicros, VariantWriter}

// DefaultVariant is used when none is named.
const DefaultVariant = VariantWriter

const (
	fixedHold      = 333 * time.Millisecond
	readerHoldMin  = 10 * time.Millisecond
	readerHoldMax  = 1000 * time.Millisecond
	writerDelayMin = 500 * time.Millisecond
	writerDelayMax = 5000 * time.Millisecond

	fallbackReaders = 4
)

// DefaultReaders returns the ambient parallelism, or 4 when it is unknown.
func DefaultReaders() int {
	if n := runtime.GOMAXPROCS(0); n >= 1 {
		return n
	}
	return fallbackReaders
}

// ParseVariant resolves a variant name. An empty name yields DefaultVariant.
func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return DefaultVariant, nil
	}
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", &ConfigError{fmt.Sprintf("unknown variant %q", s)}
}

// Options returns the option bundle for v. Options passed to New after
// these override them.
func (v Variant) Options() ([]Option, error) {
	switch v {
	case VariantFixed:
		return []Option{WithReaders(1), WithFixedHold(fixedHold), WithoutWriter()}, nil
	case VariantReadMillis, VariantReadMicros:
		return []Option{
			WithReaders(DefaultReaders()),
			WithReaderHold(readerHoldMin, readerHoldMax),
			WithoutWriter(),
		}, nil
	case VariantWriter:
		return []Option{
			WithReaders(DefaultReaders()),
			WithReaderHold(readerHoldMin, readerHoldMax),
			WithWriter(writerDelayMin, writerDelayMax),
		}, nil
	default:
		return nil, &ConfigError{fmt.Sprintf("unknown variant %q", string(v))}
	}
}

// Layout returns the console layout v prints with.
func (v Variant) Layout() Layout {
	switch v {
	case VariantFixed:
		return LayoutReadLockPlain
	case VariantReadMillis:
		return LayoutReadLockMillis
	case VariantReadMicros:
		return LayoutReadLockMicros
	default:
		return LayoutLock
	}
}
