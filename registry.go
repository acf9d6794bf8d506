package logdispatch

// loggerState is the registry's private per-logger bookkeeping (§3). The
// public handle is LoggerSource; loggerState is only ever touched while
// the engine lock is held.
type loggerState struct {
	id uint64

	source *LoggerSource

	group *Group

	// explicitGroup is the name the logger was pinned to via SetGroup, or
	// LookupGroupName if it remains eligible for rule-based remapping
	// (§4.3).
	explicitGroup string

	lastDistributed uint64

	// lastEnqueuedSeq is the most recent queue enqueue-order counter
	// (queueEntry.enqueueSeq) assigned to a message from this logger, used
	// by WaitForQueuedDelivery to know what it's waiting to drain (§6, §9).
	lastEnqueuedSeq uint64

	disabled bool

	// dynamic override bindings (§4.2, §4.3, §6); zero values mean "no
	// override configured" (reduceUsable/increaseUsable false).
	reduceMask     Severity
	reduceUsable   bool
	increaseMask   Severity
	increaseUsable bool
}

// loggerRegistry is the intern table mapping logger name to id, plus each
// logger's mutable state (§3, §4.3). All methods require the engine lock.
type loggerRegistry struct {
	byName map[string]*loggerState
	byID   []*loggerState
	nextID uint64

	dynamicConfig DynamicConfigSource
}

func newLoggerRegistry() *loggerRegistry {
	return &loggerRegistry{byName: make(map[string]*loggerState)}
}

// getOrCreate implements §4.3's get_or_create: returns the existing state,
// or registers a new one with the initial config derived from the default
// group, then applies name-based remapping. groups is needed to resolve
// the initial assignment.
func (r *loggerRegistry) getOrCreate(name string, groups *groupRegistry) *loggerState {
	if s, ok := r.byName[name]; ok {
		return s
	}

	s := &loggerState{
		id:            r.nextID,
		explicitGroup: LookupGroupName,
		group:         groups.defaultGroup(),
	}
	gate := newGateCell(&GateConfig{Mask: SeverityNone})
	s.source = &LoggerSource{id: s.id, name: name, gate: gate}
	r.nextID++

	r.byName[name] = s
	r.byID = append(r.byID, s)

	r.remap(s, groups)

	if r.dynamicConfig != nil {
		r.bindDynamicOverrides(s)
	}

	return s
}

func (r *loggerRegistry) lookup(name string) (*loggerState, bool) {
	s, ok := r.byName[name]
	return s, ok
}

func (r *loggerRegistry) byIDSlice() []*loggerState { return r.byID }

// setGroup implements §4.3's set_group: pins the logger to an explicit
// group name (or, if name is LookupGroupName, re-enables rule-based
// remapping), then triggers a remap.
func (r *loggerRegistry) setGroup(s *loggerState, name string, groups *groupRegistry) {
	s.explicitGroup = name
	r.remap(s, groups)
}

// remap implements the §4.3 tie-break: a logger whose explicitGroup is the
// lookup sentinel is eligible for rule-based remapping (first matching
// group in creation order); any other explicit name pins it to that named
// group (creating it if necessary).
func (r *loggerRegistry) remap(s *loggerState, groups *groupRegistry) {
	var g *Group
	if s.explicitGroup == LookupGroupName {
		g = groups.matchGroup(s.source.name)
	} else {
		g = groups.getOrCreate(s.explicitGroup)
	}
	s.group = g
	r.publish(s)
}

// publish recomputes and republishes the logger's effective GateConfig per
// §3's invariant: (group active config) AND (dynamic-reduce override), OR
// the dynamic-increase override on top, or forced to SeverityNone if
// disabled.
func (r *loggerRegistry) publish(s *loggerState) {
	if s.disabled {
		s.source.gate.Store(&GateConfig{Mask: SeverityNone})
		return
	}

	groupCfg := s.group.ActiveGate()
	mask := groupCfg.Mask
	if s.reduceUsable {
		mask &= s.reduceMask
	}
	if s.increaseUsable {
		mask |= s.increaseMask
	}
	s.source.gate.Store(&GateConfig{Mask: mask, SupportsSharedRefs: groupCfg.SupportsSharedRefs})
}

// bindDynamicOverrides reads a logger's two well-known dynamic-config keys
// (§4.3) into its override fields and republishes its config; a key that is
// not currently usable clears that override. Used for newly-created loggers
// and on every refresh.
func (r *loggerRegistry) bindDynamicOverrides(s *loggerState) {
	v, ok := r.dynamicConfig.Lookup(reduceKey(s.source.name))
	s.reduceMask, s.reduceUsable = SeverityNone, ok
	if ok {
		s.reduceMask = ParseSeverity(v)
	}
	v, ok = r.dynamicConfig.Lookup(increaseKey(s.source.name))
	s.increaseMask, s.increaseUsable = SeverityNone, ok
	if ok {
		s.increaseMask = ParseSeverity(v)
	}
	r.publish(s)
}

// refreshDynamicOverrides re-reads every logger's bound keys and
// republishes its config (§4.3's refresh_dynamic_overrides, invoked on a
// background task after the external source signals a change — §5, §9).
func (r *loggerRegistry) refreshDynamicOverrides() {
	if r.dynamicConfig == nil {
		return
	}
	for _, s := range r.byID {
		r.bindDynamicOverrides(s)
	}
}

// setDisabled forces the logger's effective mask to SeverityNone (or
// restores normal computation), used by the lifecycle controller (§4.7).
func (r *loggerRegistry) setDisabled(s *loggerState, disabled bool) {
	s.disabled = disabled
	r.publish(s)
}

// republishAll recomputes every logger's gate; used whenever a group's
// active config may have changed structurally (handler added or removed,
// mask changed, shutdown — all of which can change OR-mask/AND-reduction
// results a logger's cached config depends on). Links do not enter that
// computation, so Link does not call it.
func (r *loggerRegistry) republishAll() {
	for _, s := range r.byID {
		r.publish(s)
	}
}
