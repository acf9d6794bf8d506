package logdispatch

import (
	"reflect"
	"time"
)

// waitPollInterval is the polling granularity for WaitForDelivery and
// WaitForQueuedDelivery (§4.7, §5: "polls every ~20 ms").
const waitPollInterval = 20 * time.Millisecond

// notifyHandlerOne wraps a single-message handler call so the handler's
// completion notifier fires regardless of panic, letting WaitForDelivery
// wake promptly instead of only on its next poll tick.
func (e *Engine) notifyHandlerOne(h Handler, m *LogMessage) {
	defer h.CompletionNotifier().Notify()
	e.callHandlerOne(h, m)
}

// notifyHandlerBatch is the batch analogue of notifyHandlerOne. A handler
// that doesn't advertise SupportsBatch never receives HandleBatch calls:
// the engine delivers the run as a sequence of HandleOne calls instead, so
// a single-message handler needs no batch-specific implementation (§9
// supplement, "supports batch" capability).
func (e *Engine) notifyHandlerBatch(h Handler, batch []*LogMessage) {
	defer h.CompletionNotifier().Notify()
	if !h.Config().SupportsBatch {
		for _, m := range batch {
			e.callHandlerOne(h, m)
		}
		return
	}
	e.callHandlerBatch(h, batch)
}

// WaitForDelivery implements Engine.wait_for_delivery (§4.7): snapshots
// the logger's last-distributed sequence and group under lock, then polls
// until no handler reachable from that group reports the sequence as
// in-progress, or limit elapses. A zero limit waits forever. Returns
// whether delivery was observed complete within the limit.
func (e *Engine) WaitForDelivery(loggerID uint64, limit time.Duration) bool {
	e.mu.Lock()
	s := e.loggerByID(loggerID)
	if s == nil {
		e.mu.Unlock()
		return true
	}
	seq := s.lastDistributed
	g := s.group
	e.mu.Unlock()

	return e.waitForSequence(g, seq, limit)
}

// waitForSequence polls the reachable handler set for in-progress delivery
// of seq, waking early on any handler's completion notifier.
func (e *Engine) waitForSequence(g *Group, seq uint64, limit time.Duration) bool {
	var deadline time.Time
	hasDeadline := limit > 0
	if hasDeadline {
		deadline = time.Now().Add(limit)
	}

	for {
		e.mu.Lock()
		var handlers []Handler
		for _, linked := range g.links {
			handlers = append(handlers, linked.handlers...)
		}
		e.mu.Unlock()

		inProgress := false
		var notifiers []*Notifier
		for _, h := range handlers {
			notifiers = append(notifiers, h.CompletionNotifier())
			if h.IsDeliveryInProgress(seq) {
				inProgress = true
				break
			}
		}

		if !inProgress {
			return true
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return false
		}

		wait := waitPollInterval
		if hasDeadline {
			if remaining := time.Until(deadline); remaining < wait {
				wait = remaining
			}
		}
		waitOnAny(notifiers, wait)
	}
}

// waitOnAny blocks until any of the given notifiers fires or d elapses,
// whichever comes first. Used instead of a plain sleep so a handler that
// finishes mid-interval wakes the waiter promptly (§4.7's "shared
// wait/notify").
func waitOnAny(notifiers []*Notifier, d time.Duration) {
	cases := make([]reflect.SelectCase, 0, len(notifiers)+1)
	for _, n := range notifiers {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(n.C())})
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)})
	reflect.Select(cases)
}

// WaitForQueuedDelivery implements Engine.wait_for_queued_delivery (§4.7):
// first waits for the FIFO to no longer contain the logger's
// last-enqueued sequence, then falls through to the direct wait with
// whatever time remains.
func (e *Engine) WaitForQueuedDelivery(loggerID uint64, limit time.Duration) bool {
	start := time.Now()

	e.mu.Lock()
	s := e.loggerByID(loggerID)
	if s == nil {
		e.mu.Unlock()
		return true
	}
	enqueueSeq := s.lastEnqueuedSeq
	e.mu.Unlock()

	var deadline time.Time
	hasDeadline := limit > 0
	if hasDeadline {
		deadline = start.Add(limit)
	}

	for {
		e.mu.Lock()
		drainedThrough := uint64(0)
		if e.queue != nil {
			drainedThrough = e.queue.drainedThrough
		}
		e.mu.Unlock()

		if enqueueSeq == 0 || drainedThrough >= enqueueSeq {
			break
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(waitPollInterval)
	}

	remaining := time.Duration(0)
	if hasDeadline {
		remaining = time.Until(deadline)
		if remaining <= 0 {
			return false
		}
	}

	e.mu.Lock()
	s = e.loggerByID(loggerID)
	if s == nil {
		e.mu.Unlock()
		return true
	}
	seq := s.lastDistributed
	g := s.group
	e.mu.Unlock()

	return e.waitForSequence(g, seq, remaining)
}

// StartupIfNeeded implements Engine.startup_if_needed (§4.7): idempotent;
// restarts the pool, starts every handler, and re-enables every group and
// logger.
func (e *Engine) StartupIfNeeded() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.shutdown {
		return
	}
	e.shutdown = false
	e.pool.Restart()

	for _, g := range e.groups.all() {
		g.setDisabled(false)
		for _, h := range g.handlers {
			h.StartIfNeeded()
		}
	}
	for _, s := range e.loggers.byIDSlice() {
		e.loggers.setDisabled(s, false)
	}
}

// Shutdown implements Engine.shutdown (§4.7): idempotent; disables every
// logger and group, disables the queue, joins the worker, shuts down
// every handler, and tears down the pool. message is passed to the fault
// log as a one-shot record of why the engine stopped.
func (e *Engine) Shutdown(message string) {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true

	for _, s := range e.loggers.byIDSlice() {
		e.loggers.setDisabled(s, true)
	}
	for _, g := range e.groups.all() {
		g.setDisabled(true)
	}
	e.loggers.republishAll()
	e.mu.Unlock()

	e.relay.stopAndWait()

	e.mu.Lock()
	handlers := make([]Handler, 0)
	seen := make(map[string]bool)
	for _, g := range e.groups.all() {
		for _, h := range g.handlers {
			if !seen[h.Name()] {
				seen[h.Name()] = true
				handlers = append(handlers, h)
			}
		}
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h.Flush()
		h.Shutdown()
	}

	e.pool.Shutdown()

	if message != "" {
		e.faults.ReportAlways("lifecycle", "engine shut down: %s", message)
	}
}
