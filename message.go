package logdispatch

import (
	"sync/atomic"
	"time"
)

// LogMessage is a single log record, as acquired from a Pool (or the heap,
// once the pool is exhausted or shut down) via Engine.Acquire.
//
// A LogMessage must not be read or written by more than one goroutine at a
// time, except for the reference count itself, which is manipulated via
// atomic operations and requires no external synchronization.
type LogMessage struct {
	// Severity is the single severity bit the record was raised at.
	Severity Severity

	// Source identifies the logger that raised this record.
	Source *LoggerSource

	// Text is the free-form message text.
	Text string

	// Fields is an optional structured name-value map. Nil unless the
	// producer attached fields.
	Fields map[string]any

	// Binary is optional opaque binary data attached to the record.
	Binary []byte

	// WallTime is the wall-clock capture time.
	WallTime time.Time

	// MonoTime is a monotonic capture instant, suitable for measuring
	// elapsed durations between records; it carries no absolute meaning.
	MonoTime time.Time

	// ThreadID optionally identifies the producing goroutine/thread. Zero
	// if not captured.
	ThreadID int64

	// SourceFile and SourceLine optionally identify the call site.
	SourceFile string
	SourceLine int

	// Sequence is the process-monotonic sequence number stamped at
	// dispatch time (§4.5, §4.6). Zero until stamped.
	Sequence uint64

	// Emitted is set once the producer has finished filling the record and
	// handed it to Engine.Distribute or Engine.Enqueue.
	Emitted bool

	// poolOrigin is true if this record's storage is owned by a Pool and
	// must be returned to it (reset) rather than discarded, when the
	// refcount reaches zero. It never changes after allocation — a record
	// produced by clone (and so by Engine.ReallocateForNonShared) is always
	// non-pool-origin.
	poolOrigin bool

	// pool is the Pool this record should be returned to, if poolOrigin.
	pool *Pool

	// refs is the reference count; manipulated only via atomic ops.
	refs int32
}

// PoolOrigin reports whether this record's storage is owned by a Pool.
func (m *LogMessage) PoolOrigin() bool { return m.poolOrigin }

// RefCount returns the current reference count. Intended for diagnostics
// and tests; the value may change concurrently.
func (m *LogMessage) RefCount() int32 { return atomic.LoadInt32(&m.refs) }

// retain increments the reference count, e.g. when handing a reference to
// an additional linked group or to the queue.
func (m *LogMessage) retain() {
	atomic.AddInt32(&m.refs, 1)
}

// release decrements the reference count, releasing the record back to its
// pool (or discarding it) when it reaches zero. Safe to call without
// holding the engine lock.
func (m *LogMessage) release() {
	if atomic.AddInt32(&m.refs, -1) == 0 {
		if m.poolOrigin && m.pool != nil {
			m.pool.put(m)
		}
		// non-pool-origin records, or records returned after the pool's
		// shutdown, are simply left for the garbage collector.
	}
}

// reset clears all fields, preparing the record for reuse from a Pool.
// poolOrigin and pool are preserved.
func (m *LogMessage) reset() {
	*m = LogMessage{poolOrigin: m.poolOrigin, pool: m.pool}
}

// clone returns a new, non-pool-origin LogMessage with the same content as
// m, for delivery to a handler that doesn't support shared references
// (§4.5 step 3). The clone starts with a reference count of 1.
func (m *LogMessage) clone() *LogMessage {
	c := &LogMessage{
		Severity:   m.Severity,
		Source:     m.Source,
		Text:       m.Text,
		Binary:     m.Binary,
		WallTime:   m.WallTime,
		MonoTime:   m.MonoTime,
		ThreadID:   m.ThreadID,
		SourceFile: m.SourceFile,
		SourceLine: m.SourceLine,
		Sequence:   m.Sequence,
		Emitted:    m.Emitted,
		poolOrigin: false,
		refs:       1,
	}
	if m.Fields != nil {
		c.Fields = make(map[string]any, len(m.Fields))
		for k, v := range m.Fields {
			c.Fields[k] = v
		}
	}
	if m.Binary != nil {
		c.Binary = append([]byte(nil), m.Binary...)
	}
	return c
}
