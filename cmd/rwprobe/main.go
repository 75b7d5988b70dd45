// Package main is the entry point for the rwprobe executable.
//
// Usage:
//
//	rwprobe [fixed|read-ms|read-us|writer] [text|json] [rwmutex|stripe|readerpref]
//
// Samples go to stdout, diagnostics to stderr. The probe runs until it is
// interrupted or a task finds the lock poisoned.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/mrchypark/rwprobe"
	"github.com/mrchypark/rwprobe/pkg/lock"
	"github.com/mrchypark/rwprobe/pkg/report"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if len(args) > 3 {
		printUsage()
		return 2
	}
	variant, err := rwprobe.ParseVariant(arg(args, 0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		return 2
	}
	opts, err := variant.Options()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	runID := uuid.New()
	var reporter rwprobe.Reporter
	switch arg(args, 1) {
	case "", "text":
		reporter = report.NewText(os.Stdout, variant.Layout())
	case "json":
		reporter = report.NewJSON(os.Stdout, runID)
	default:
		printUsage()
		return 2
	}

	opts = append(opts,
		rwprobe.WithRunID(runID),
		rwprobe.WithReporter(reporter),
		rwprobe.WithLock(arg(args, 2)),
		rwprobe.WithProgressInterval(30*time.Second),
	)
	probe, err := rwprobe.New(logger, opts...)
	if err != nil {
		level.Error(logger).Log("msg", "failed to configure probe", "err", err)
		return 2
	}

	fmt.Println("Go RwLock contention test")
	fmt.Printf("spawning %d threads...\n", probe.Tasks())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := probe.Run(ctx); err != nil {
		if errors.Is(err, lock.ErrPoisoned) {
			level.Error(logger).Log("msg", "Poisoned lock!", "err", err)
		} else {
			level.Error(logger).Log("msg", "probe failed", "err", err)
		}
		return 1
	}
	return 0
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func printUsage() {
	variants := make([]string, len(rwprobe.Variants))
	for i, v := range rwprobe.Variants {
		variants[i] = string(v)
	}
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  rwprobe [%s] [text|json] [%s]\n", strings.Join(variants, "|"), strings.Join(lock.Kinds, "|"))
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Defaults: writer text rwmutex")
}
