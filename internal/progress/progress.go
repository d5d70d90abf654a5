// Package progress reports per-phase progress as a carriage-return
// counter line, with a best-effort write that swallows errors.
package progress

import (
	"fmt"
	"io"
)

// Reporter prints a "<processed> / <total>" line to w, overwriting itself
// in place via a carriage return, for one reconciliation phase.
type Reporter struct {
	w         io.Writer
	total     int
	processed int
}

// NewReporter creates a Reporter for a phase with total items of work.
func NewReporter(w io.Writer, total int) *Reporter {
	return &Reporter{w: w, total: total}
}

// Advance reports one more item processed and reprints the counter line.
// A write failure is not the end of the world — it is ignored.
func (r *Reporter) Advance() {
	r.processed++
	fmt.Fprintf(r.w, "\r%d / %d", r.processed, r.total) //nolint:errcheck // best-effort only
}

// Done terminates the progress line with a newline.
func (r *Reporter) Done() {
	fmt.Fprintln(r.w) //nolint:errcheck // best-effort only
}
