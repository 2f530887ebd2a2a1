// Package logx centralizes leveled, structured logging for the stack.
// Every package takes a *log.Logger (or embeds one) rather than reaching
// for a package-global printf, following the teacher's dw_printf-via-
// textcolor_set convention but carried through an actual leveled logging
// library rather than hand-rolled ANSI color state.
package logx

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger with the given subsystem name as its prefix,
// writing to w (os.Stderr if nil).
func New(subsystem string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	return log.NewWithOptions(w, log.Options{
		Prefix:          subsystem,
		ReportTimestamp: true,
		ReportCaller:    false,
	})
}

// Discard returns a logger that drops everything, for tests and for
// callers that genuinely have nowhere to send diagnostics.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
