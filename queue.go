package logdispatch

import (
	"sync"
	"time"

	"github.com/joeycumines/logdispatch/internal/ring"
)

// relayState models the QueuedRelay state machine (§4.6):
// Uninitialized -> Enabled -> Disabling -> Drained.
type relayState int32

const (
	relayUninitialized relayState = iota
	relayEnabled
	relayDisabling
	relayDrained
)

// relayBatchSize is the fixed batch the worker pulls from the FIFO per
// drain pass (§4.6).
const relayBatchSize = 100

// relayDrainPasses bounds the number of extra drain passes the worker
// performs after Disabling is requested, to absorb stragglers (§4.6, §4.7).
const relayDrainPasses = 3

// relayPollInterval is how long the worker blocks on its wakeup notifier
// before re-checking the queue, when idle (§5).
const relayPollInterval = 100 * time.Millisecond

// queueEntry pairs a message with the monotonic enqueue-order counter used
// by WaitForQueuedDelivery (distinct from LogMessage.Sequence, which is
// stamped only at dispatch time — §9 open question #3).
type queueEntry struct {
	msg        *LogMessage
	enqueueSeq uint64
}

// MessageQueue is the bounded FIFO described in §3/§4.6. All mutating
// methods require the engine lock to be held by the caller.
type MessageQueue struct {
	buf *ring.Buffer[queueEntry]

	enqueueCounter uint64 // last assigned enqueue-order counter
	drainedThrough uint64 // highest enqueue-order counter popped so far

	dropped uint64 // total messages dropped for overflow since last summary
}

func newMessageQueue(capacity int) *MessageQueue {
	return &MessageQueue{buf: ring.New[queueEntry](capacity)}
}

// push implements the enqueue side of §4.6: drop-oldest on overflow (see
// DESIGN.md for the open-question decision), returning the assigned
// enqueue-order counter.
func (q *MessageQueue) push(m *LogMessage) uint64 {
	q.enqueueCounter++
	seq := q.enqueueCounter
	dropped, overflowed := q.buf.PushDropOldest(queueEntry{msg: m, enqueueSeq: seq})
	if overflowed {
		q.dropped++
		if q.drainedThrough < dropped.enqueueSeq {
			q.drainedThrough = dropped.enqueueSeq
		}
		dropped.msg.release()
	}
	return seq
}

// popBatch removes up to relayBatchSize oldest entries.
func (q *MessageQueue) popBatch() []queueEntry {
	batch := q.buf.PopN(relayBatchSize)
	for _, e := range batch {
		if e.enqueueSeq > q.drainedThrough {
			q.drainedThrough = e.enqueueSeq
		}
	}
	return batch
}

// takeDropped returns and resets the overflow counter, used to emit the
// "dropped N since last success" summary (§7).
func (q *MessageQueue) takeDropped() uint64 {
	n := q.dropped
	q.dropped = 0
	return n
}

// QueuedRelay is the single-worker relay described in §4.6. It owns the
// FIFO exclusively; producers transfer ownership of their reference into
// it via Engine.Enqueue.
type QueuedRelay struct {
	engine *Engine

	mu    sync.Mutex // guards state only; queue itself is under the engine lock
	state relayState

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newQueuedRelay(e *Engine) *QueuedRelay {
	return &QueuedRelay{engine: e}
}

// start is called with the engine lock held. It's idempotent: calling it
// while already Enabled is a no-op.
func (r *QueuedRelay) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == relayEnabled {
		return
	}
	if r.engine.queue == nil {
		r.engine.queue = newMessageQueue(r.engine.cfg.queueCapacity)
	}
	r.state = relayEnabled
	r.wake = make(chan struct{}, 1)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.wake, r.stop, r.done)
}

// stopAndWait signals Disabling and blocks until the worker has fully
// drained and exited (§4.7, bounded by relayDrainPasses extra passes).
func (r *QueuedRelay) stopAndWait() {
	r.mu.Lock()
	if r.state != relayEnabled {
		r.mu.Unlock()
		return
	}
	r.state = relayDisabling
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done

	r.mu.Lock()
	r.state = relayDrained
	r.mu.Unlock()
}

// signal wakes the worker; called after Engine.Enqueue pushes a message.
func (r *QueuedRelay) signal() {
	r.mu.Lock()
	wake := r.wake
	r.mu.Unlock()
	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// isEnabled reports whether the relay currently accepts new messages.
func (r *QueuedRelay) isEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == relayEnabled
}

// run is the single background worker (§4.6, §5): it blocks on wake with a
// timeout when idle, drains up to relayBatchSize messages per pass under
// the engine lock, and — once stop is closed — performs up to
// relayDrainPasses additional passes before counting and logging any
// stragglers as dropped, then exits.
func (r *QueuedRelay) run(wake chan struct{}, stop chan struct{}, done chan struct{}) {
	defer close(done)

	drainOnce := r.engine.drainOnePass

	for {
		select {
		case <-stop:
			for pass := 0; pass < relayDrainPasses; pass++ {
				if !drainOnce() {
					break
				}
			}
			r.engine.mu.Lock()
			stragglers := r.engine.queue.buf.PopN(r.engine.queue.buf.Len())
			if len(stragglers) > 0 {
				r.engine.queue.dropped += uint64(len(stragglers))
				for _, entry := range stragglers {
					entry.msg.release()
				}
			}
			dropped := r.engine.queue.takeDropped()
			r.engine.mu.Unlock()
			if dropped > 0 {
				r.engine.faults.ReportAlways("relay", "dropped %d message(s) while shutting down", dropped)
			}
			return

		case <-wake:
			for drainOnce() {
			}

		case <-time.After(relayPollInterval):
			for drainOnce() {
			}
		}
	}
}
