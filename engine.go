package logdispatch

import (
	"sync"
	"time"

	"github.com/joeycumines/logdispatch/internal/faultlog"
)

// engineConfig holds the tunables resolved from EngineOption values,
// mirroring logiface's loggerConfig/Option[E] pattern (logger.go).
type engineConfig struct {
	poolCapacity  int
	queueCapacity int
	faultWindow   time.Duration
	faultBurst    int
}

// EngineOption configures a new Engine, via New.
type EngineOption func(*engineConfig)

// WithPoolCapacity sets the soft capacity of the message Pool (§4.1).
func WithPoolCapacity(n int) EngineOption {
	return func(c *engineConfig) { c.poolCapacity = n }
}

// WithQueueCapacity sets the bounded capacity of the queued relay's FIFO
// (§4.6).
func WithQueueCapacity(n int) EngineOption {
	return func(c *engineConfig) { c.queueCapacity = n }
}

// WithFaultRateLimit configures the last-resort fault channel's
// per-category throttling window (§7, DESIGN.md).
func WithFaultRateLimit(window time.Duration, burst int) EngineOption {
	return func(c *engineConfig) {
		c.faultWindow = window
		c.faultBurst = burst
	}
}

// Engine is the process-wide distribution engine (§2, §5, §6). One mutex
// guards the registries, group state, pool handle, and queue state; a
// message's reference count uses atomics and needs no engine lock.
type Engine struct {
	cfg engineConfig

	mu sync.Mutex

	pool    *Pool
	groups  *groupRegistry
	loggers *loggerRegistry
	relay   *QueuedRelay
	queue   *MessageQueue // lazily created when the relay first starts (StartQueuedDelivery or Enqueue)

	seq uint64 // process-monotonic, assigned only under mu

	shutdown bool

	faults *faultlog.Log
}

// New constructs a standalone Engine. Most callers should use the
// process-wide singleton (Default / global.go) instead; New is provided
// for tests and for embedding multiple independent engines in one process.
func New(opts ...EngineOption) *Engine {
	cfg := engineConfig{
		poolCapacity:  1024,
		queueCapacity: 4096,
		faultWindow:   time.Minute,
		faultBurst:    5,
	}
	for _, o := range opts {
		o(&cfg)
	}

	e := &Engine{
		cfg:     cfg,
		pool:    NewPool(cfg.poolCapacity),
		groups:  newGroupRegistry(),
		loggers: newLoggerRegistry(),
		faults:  faultlog.New(nil, cfg.faultWindow, cfg.faultBurst),
	}
	e.relay = newQueuedRelay(e)
	return e
}

func (e *Engine) nextSequence() uint64 {
	e.seq++
	return e.seq
}

// GetSource implements Engine.get_source (§6): interns name, returning its
// stable LoggerSource.
func (e *Engine) GetSource(name string) *LoggerSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.loggers.getOrCreate(name, e.groups)
	return s.source
}

// SetGroup implements Engine.set_group (§6).
func (e *Engine) SetGroup(loggerID uint64, groupName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.loggerByID(loggerID)
	if s == nil {
		return
	}
	e.loggers.setGroup(s, groupName, e.groups)
}

// loggerByID exploits that loggerRegistry assigns ids sequentially from 0,
// so a logger's id is also its index into byIDSlice.
func (e *Engine) loggerByID(id uint64) *loggerState {
	byID := e.loggers.byIDSlice()
	if id >= uint64(len(byID)) {
		return nil
	}
	return byID[id]
}

// Acquire implements Engine.acquire (§6, §4.1): returns a zeroed,
// refcount-1 record. Safe without holding the engine lock.
func (e *Engine) Acquire() *LogMessage {
	return e.pool.Acquire()
}

// Distribute implements Engine.distribute (§6, §4.5): consumes m's
// reference (the caller must not use m again after this call).
func (e *Engine) Distribute(m *LogMessage) {
	if m == nil || m.Source == nil {
		if m != nil {
			m.release()
		}
		return
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		m.release()
		return
	}
	s := e.loggerByID(m.Source.id)
	if s == nil {
		e.mu.Unlock()
		m.release()
		return
	}
	m.Emitted = true
	e.distribute(s, m)
	dropped := uint64(0)
	if e.queue != nil {
		dropped = e.queue.takeDropped()
	}
	e.mu.Unlock()

	if dropped > 0 {
		e.faults.ReportAlways("queue", "dropped %d message(s) since last successful distribution", dropped)
	}
}

// Enqueue implements Engine.enqueue (§6, §4.6): consumes m's reference,
// auto-starting queued delivery if it isn't already running.
func (e *Engine) Enqueue(m *LogMessage) {
	if m == nil || m.Source == nil {
		if m != nil {
			m.release()
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		m.release()
		return
	}

	if e.relay == nil || !e.relay.isEnabled() {
		e.relay.start()
	}

	m.Emitted = true
	s := e.loggerByID(m.Source.id)

	seq := e.queue.push(m)
	if s != nil {
		s.lastEnqueuedSeq = seq
	}

	e.relay.signal()
}

// batchDelivery pairs one handler with the messages from this pass it
// should receive.
type batchDelivery struct {
	handler Handler
	msgs    []*LogMessage
}

// drainOnePass pops one batch from the queue and dispatches it (§4.6).
// The engine lock is held only to pop the batch and to split/re-gate/stamp
// it against current group state; it's released before handler invocation,
// so a slow or blocked handler never blocks producers or WaitForDelivery's
// polling loop (mirroring the direct path — see distribute). Returns false
// if the queue was empty.
func (e *Engine) drainOnePass() bool {
	e.mu.Lock()
	batch := e.queue.popBatch()
	if len(batch) == 0 {
		e.mu.Unlock()
		return false
	}
	deliveries, deliverable, counts := e.prepareBatchLocked(batch)
	dropped := e.queue.takeDropped()
	e.mu.Unlock()

	for _, d := range deliveries {
		e.notifyHandlerBatch(d.handler, d.msgs)
		for _, m := range d.msgs {
			m.release()
		}
	}
	// deliverable holds, per run input, the object actually handed to
	// deliveries — the original message for a shared-refs run, or its
	// clone otherwise. Reconciling against it (not the raw batch entries)
	// keeps each object's refcount correct regardless of which path it
	// took: an original already released at clone time must never be
	// looked at again, and a clone admitted by no handler still needs its
	// sole reference released exactly once.
	for _, m := range deliverable {
		if _, delivered := counts[m]; !delivered {
			m.release()
		}
	}

	if dropped > 0 {
		e.faults.ReportAlways("queue", "dropped %d message(s) since last successful distribution", dropped)
	}
	return true
}

// prepareBatchLocked implements the queued worker's under-lock drain-time
// work (§4.6): split into contiguous same-group runs, re-check each run's
// group gate, stamp sequence numbers, and build the per-handler delivery
// list. Requires the engine lock held; handler invocation itself happens
// after the caller releases it. The returned deliverable slice names,
// per run input, the object (original or clone) used for delivery;
// counts is keyed on those same objects.
func (e *Engine) prepareBatchLocked(batch []queueEntry) ([]batchDelivery, []*LogMessage, map[*LogMessage]int) {
	type run struct {
		group *Group
		msgs  []*LogMessage
	}
	var runs []run

	for _, entry := range batch {
		m := entry.msg
		var g *Group
		if m.Source != nil {
			if s := e.loggerByID(m.Source.id); s != nil {
				g = s.group
				m.Sequence = e.nextSequence()
				s.lastDistributed = m.Sequence
			}
		}
		if g == nil {
			g = e.groups.defaultGroup()
		}
		if n := len(runs); n > 0 && runs[n-1].group == g {
			runs[n-1].msgs = append(runs[n-1].msgs, m)
		} else {
			runs = append(runs, run{group: g, msgs: []*LogMessage{m}})
		}
	}

	var deliveries []batchDelivery
	var deliverable []*LogMessage

	for _, rn := range runs {
		groupCfg := rn.group.ActiveGate()

		deliverMsgs := rn.msgs
		if !groupCfg.SupportsSharedRefs {
			cloned := make([]*LogMessage, len(rn.msgs))
			for i, m := range rn.msgs {
				cloned[i] = m.clone()
			}
			deliverMsgs = cloned
		}
		deliverable = append(deliverable, deliverMsgs...)

		for _, linked := range rn.group.links {
			for _, h := range linked.handlers {
				var admitted []*LogMessage
				for _, m := range deliverMsgs {
					if h.Config().Mask.Admits(m.Severity) {
						admitted = append(admitted, m)
					}
				}
				if len(admitted) > 0 {
					deliveries = append(deliveries, batchDelivery{handler: h, msgs: admitted})
				}
			}
		}

		if !groupCfg.SupportsSharedRefs {
			for _, m := range rn.msgs {
				m.release()
			}
		}
	}

	// Build a reference count per delivered message so the refcount model
	// holds: each message (or clone) starts at refcount 1; every additional
	// handler delivery beyond the first retains one more reference.
	counts := make(map[*LogMessage]int, len(deliverable))
	for _, d := range deliveries {
		for _, m := range d.msgs {
			counts[m]++
		}
	}
	for m, n := range counts {
		for i := 1; i < n; i++ {
			m.retain()
		}
	}

	return deliveries, deliverable, counts
}

// AddHandler implements Engine.add_handler (§6, §4.4).
func (e *Engine) AddHandler(groupName string, h Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		e.faults.Report("config", "add-handler-after-shutdown", "add-handler %q attempted after shutdown", groupName)
		return ErrShutdown
	}

	g := e.groups.getOrCreate(groupName)
	if g.handlers.indexOf(h.Name()) >= 0 {
		return ErrHandlerExists
	}
	g.addHandler(h)
	e.loggers.republishAll()
	return nil
}

// RemoveHandler removes a named handler from a group, restoring the
// group's active mask computation to what it would be without it (§8
// idempotence law).
func (e *Engine) RemoveHandler(groupName, handlerName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		e.faults.Report("config", "remove-handler-after-shutdown", "remove-handler %q/%q attempted after shutdown", groupName, handlerName)
		return false
	}

	g, ok := e.groups.lookup(groupName)
	if !ok {
		return false
	}
	removed := g.removeHandler(handlerName)
	if removed {
		e.loggers.republishAll()
	}
	return removed
}

// MapLoggersToGroup implements Engine.map_loggers_to_group (§6, §4.3,
// §4.4). An invalid regex is reported via the fault channel but the group
// is still created, with MatchNone, per §4.4/§8.
func (e *Engine) MapLoggersToGroup(kind MatchKind, pattern, groupName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		e.faults.Report("config", "map-loggers-after-shutdown", "map-loggers-to-group %q attempted after shutdown", groupName)
		return
	}

	g := e.groups.getOrCreate(groupName)
	m, err := newNameMatcher(kind, pattern)
	if err != nil {
		e.faults.Report("config", "invalid-regex:"+groupName, "invalid regex %q for group %q: %v", pattern, groupName, err)
	}
	g.matcher = m

	for _, s := range e.loggers.byIDSlice() {
		if s.explicitGroup == LookupGroupName {
			e.loggers.remap(s, e.groups)
		}
	}
}

// SetGroupMask implements Engine.set_group_mask (§6, §4.4).
func (e *Engine) SetGroupMask(groupName string, mask Severity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		e.faults.Report("config", "set-group-mask-after-shutdown", "set-group-mask %q attempted after shutdown", groupName)
		return
	}

	g := e.groups.getOrCreate(groupName)
	g.setMask(mask)
	e.loggers.republishAll()
}

// Link implements Engine.link (§6, §4.4, §9): transitively walks to's
// current link list at link time, adding each reachable group to from's
// link list; idempotent; self-links and cycles are safe because a target
// already present is skipped.
func (e *Engine) Link(fromGroup, toGroup string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		e.faults.Report("config", "link-after-shutdown", "link %q -> %q attempted after shutdown", fromGroup, toGroup)
		return
	}

	from := e.groups.getOrCreate(fromGroup)
	to := e.groups.getOrCreate(toGroup)
	from.link(to)
}

// LinkToDefault implements Engine.link_to_default (§6).
func (e *Engine) LinkToDefault(fromGroup string) {
	e.Link(fromGroup, DefaultGroupName)
}

// ReallocateForNonShared implements Engine.reallocate_for_non_shared (§6):
// returns a new, non-pool-origin clone of m for handlers that don't
// support shared references, releasing the caller's reference to m.
func (e *Engine) ReallocateForNonShared(m *LogMessage) *LogMessage {
	if m == nil {
		return nil
	}
	c := m.clone()
	m.release()
	return c
}

// ReallocateForNonSharedBatch is the bulk variant of
// ReallocateForNonShared (§6).
func (e *Engine) ReallocateForNonSharedBatch(batch []*LogMessage) []*LogMessage {
	out := make([]*LogMessage, len(batch))
	for i, m := range batch {
		out[i] = e.ReallocateForNonShared(m)
	}
	return out
}

// StartQueuedDelivery implements Engine.start_queued_delivery (§6).
func (e *Engine) StartQueuedDelivery() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relay.start()
}

// StopQueuedDelivery implements Engine.stop_queued_delivery (§6).
func (e *Engine) StopQueuedDelivery() {
	e.relay.stopAndWait()
}

// SetDynamicConfigSource wires the external dynamic-config collaborator
// (§1, §6, §4.3). Existing loggers are rebound immediately, and loggers
// created later are bound when they are created.
func (e *Engine) SetDynamicConfigSource(src DynamicConfigSource) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		e.faults.Report("config", "set-dynamic-config-after-shutdown", "set-dynamic-config-source attempted after shutdown")
		return
	}

	e.loggers.dynamicConfig = src
	if src != nil {
		src.Subscribe(e.refreshDynamicOverridesAsync)
		e.loggers.refreshDynamicOverrides()
	}
}

// refreshDynamicOverridesAsync marshals the external source's change
// notification onto a short-lived background goroutine, so the notifier's
// own thread never blocks inside the engine (§5, §9).
func (e *Engine) refreshDynamicOverridesAsync() {
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.loggers.refreshDynamicOverrides()
	}()
}
