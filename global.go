package logdispatch

import "sync"

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the process-wide Engine singleton, constructing it on
// first use (§6: "stable process-wide singleton"). Construction is lazy
// so that package import alone never starts a worker goroutine or opens
// the fault log's writer; the first call from any goroutine pays the
// one-time cost, guarded by sync.Once so concurrent first callers never
// race or double-construct.
func Default() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = New()
	})
	return defaultEngine
}

// GetSource is a convenience wrapper for Default().GetSource.
func GetSource(name string) *LoggerSource { return Default().GetSource(name) }

// Acquire is a convenience wrapper for Default().Acquire.
func Acquire() *LogMessage { return Default().Acquire() }
