// Package report renders probe samples on the console.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/mrchypark/rwprobe"
)

// Text writes one human readable line per sample.
type Text struct {
	mu     sync.Mutex
	w      io.Writer
	layout rwprobe.Layout
}

var _ rwprobe.Reporter = (*Text)(nil)

// NewText creates a Text reporter writing to w with the given layout.
func NewText(w io.Writer, layout rwprobe.Layout) *Text {
	return &Text{w: w, layout: layout}
}

// Report writes s. Write errors are ignored; stdout is the only sink.
func (t *Text) Report(s rwprobe.Sample) {
	line := Format(t.layout, s)
	t.mu.Lock()
	fmt.Fprintln(t.w, line)
	t.mu.Unlock()
}

// Format renders s without a trailing newline.
func Format(layout rwprobe.Layout, s rwprobe.Sample) string {
	if s.Role == rwprobe.RoleWriter {
		return fmt.Sprintf("Writer waited %d μs for a lock %s", s.Wait.Microseconds(), s.Task)
	}

	wait, unit := s.Wait.Milliseconds(), "ms"
	if layout.Micros {
		wait, unit = s.Wait.Microseconds(), "μs"
	}
	what := "a lock"
	if layout.ReadLock {
		what = "a read lock"
	}
	line := fmt.Sprintf("Reader waited %d %s for %s, held it %d ms", wait, unit, what, s.Hold.Milliseconds())
	if layout.ShowTask {
		line += " " + s.Task.String()
	}
	return line
}
