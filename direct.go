package logdispatch

// distribute implements the direct distribution path (§4.5). Called with
// the engine lock held; it releases the lock for the duration of handler
// invocation (so a blocked or slow handler never blocks other producers,
// and so WaitForDelivery's polling loop — which itself needs only a brief
// lock to snapshot the handler set — can make progress concurrently), then
// reacquires it before returning. Consumes the caller's reference to m
// (always releases exactly one reference by the time it returns).
func (e *Engine) distribute(s *loggerState, m *LogMessage) {
	m.Sequence = e.nextSequence()
	s.lastDistributed = m.Sequence

	g := s.group
	groupCfg := g.ActiveGate()
	if !groupCfg.Enabled(m.Severity) {
		// §4.5 step 2: re-check under lock; state may have changed since
		// the producer's lock-free pre-check.
		m.release()
		return
	}

	deliver := m
	if !groupCfg.SupportsSharedRefs {
		// §4.5 step 3: clone into a non-pool record for delivery, then
		// drop the original producer reference.
		deliver = m.clone()
		m.release()
	}

	var targets []Handler
	for _, linked := range g.links {
		for _, h := range linked.handlers {
			if h.Config().Mask.Admits(deliver.Severity) {
				targets = append(targets, h)
			}
		}
	}

	e.mu.Unlock()
	for _, h := range targets {
		e.notifyHandlerOne(h, deliver)
	}
	e.mu.Lock()

	deliver.release()
}

// callHandlerOne invokes a handler's single-message entry point, isolating
// any panic so that a failure in one handler never prevents delivery to
// the rest, nor propagates to the producer (§4.5 step on failures, §7).
func (e *Engine) callHandlerOne(h Handler, m *LogMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.faults.Report("handler", "panic:"+h.Name(), "handler %q panicked: %v", h.Name(), r)
		}
	}()
	h.HandleOne(m)
}

// callHandlerBatch invokes a handler's batch entry point under the same
// panic-isolation policy as callHandlerOne.
func (e *Engine) callHandlerBatch(h Handler, batch []*LogMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.faults.Report("handler", "panic:"+h.Name(), "handler %q panicked handling a batch: %v", h.Name(), r)
		}
	}()
	h.HandleBatch(batch)
}
