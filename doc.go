// Package logdispatch implements a structured-logging distribution core:
// loggers are cheap interned handles gated by a versioned, atomically
// published severity mask; messages flow either synchronously on the
// producer's goroutine or through a single-worker queued relay, fanning out to
// registered handlers grouped by name-based routing rules.
//
// The engine owns no concrete handler implementations. Console writers,
// file writers, and the dynamic configuration source are external
// collaborators that satisfy the Handler and DynamicConfigSource
// contracts respectively.
package logdispatch
