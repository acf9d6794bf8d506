// Package faultlog implements the core's "last-resort" fault emitter
// (§7): a flat, unstructured channel for reporting faults that occur
// within the distribution engine itself (configuration faults, handler
// panics, queue overflow summaries). It must never recurse into the
// logging system it reports on, so it writes plain lines to an io.Writer,
// never through a Handler.
//
// Repeated faults of the same kind are rate-limited per category, via
// catrate.Limiter, so a pathological handler or a persistently invalid
// regex cannot turn this channel into its own flood. The dropped-message
// summaries (§7) go through ReportAlways and are never throttled.
package faultlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
)

// Clock is overridable for tests, mirroring logiface's OsExit var
// convention (global.go).
var Clock = time.Now

// Log is the last-resort fault emitter.
type Log struct {
	mu      sync.Mutex
	w       io.Writer
	limiter *catrate.Limiter
}

// New constructs a Log writing to w (defaulting to os.Stderr if nil), rate
// limiting repeated faults of the same category to at most maxPerWindow
// occurrences per window.
func New(w io.Writer, window time.Duration, maxPerWindow int) *Log {
	if w == nil {
		w = os.Stderr
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxPerWindow <= 0 {
		maxPerWindow = 1
	}
	return &Log{
		w:       w,
		limiter: catrate.NewLimiter(map[time.Duration]int{window: maxPerWindow}),
	}
}

// Report writes a fault line of the form "<time> | <component> | <message>"
// unless the (component, message-kind) category has exceeded its rate
// limit, in which case the fault is silently suppressed (it was already
// reported recently).
//
// category should identify the *kind* of fault (e.g. "handler-panic:console"
// or "invalid-regex:SVC"), not the full message text, so that repeated
// occurrences of the same underlying problem collapse to one category.
func (l *Log) Report(component, category, format string, args ...any) {
	if _, ok := l.limiter.Allow(component + "|" + category); !ok {
		return
	}
	l.writeLine(component, fmt.Sprintf(format, args...))
}

// ReportAlways writes a fault line unconditionally, bypassing rate
// limiting. Used for the one-shot dropped-message summary (§7), which is
// itself already a coalesced report and should never be suppressed.
func (l *Log) ReportAlways(component, format string, args ...any) {
	l.writeLine(component, fmt.Sprintf(format, args...))
}

func (l *Log) writeLine(component, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, "%s | %s | %s\n", Clock().Format(time.RFC3339Nano), component, message)
}
