package logdispatch

// Group is a named collection of handlers and routing policy (§3, §4.4).
// All mutation happens under the owning Engine's lock.
type Group struct {
	id   uint32
	name string

	mask    Severity
	matcher nameMatcher

	handlers handlerSet

	// links is the group's linked-group list; it always contains the
	// group itself first, and contains no duplicates (§3 invariant).
	links []*Group

	disabled bool

	gate *gateCell

	// version is bumped on every structural change (mask, handler list,
	// disabled flag); recompute() is a no-op if lastComputed == version.
	version     uint64
	lastComputed uint64
}

func newGroup(id uint32, name string) *Group {
	g := &Group{
		id:   id,
		name: name,
		mask: SeverityAll,
		gate: newGateCell(&GateConfig{Mask: SeverityNone, SupportsSharedRefs: true}),
	}
	g.links = []*Group{g}
	return g
}

// ID returns the group's id. The default group always has id 0 (§3).
func (g *Group) ID() uint32 { return g.id }

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

func (g *Group) String() string { return g.name }

// ActiveGate returns the group's currently published active GateConfig,
// lazily recomputing it first if a structural change occurred since the
// last read (§4.4 "lazy observer").
func (g *Group) ActiveGate() *GateConfig {
	g.recompute()
	return g.gate.Load()
}

// recompute implements §3's invariant: a group's active mask equals (OR of
// all handler gates) AND (the group's own mask); SupportsSharedRefs is the
// AND-reduction across handlers. Must be called with the engine lock held.
func (g *Group) recompute() {
	if g.lastComputed == g.version {
		return
	}
	g.lastComputed = g.version

	var mask Severity
	sharedSafe := true
	if g.disabled {
		mask = SeverityNone
	} else {
		orMask, ss := g.handlers.reduce()
		mask = orMask & g.mask
		sharedSafe = ss
	}
	g.gate.Store(&GateConfig{Mask: mask, SupportsSharedRefs: sharedSafe, version: g.version})
}

// bump marks the group's computed state stale; must be called under the
// engine lock whenever mask, handlers, or disabled changes.
func (g *Group) bump() { g.version++ }

// setMask implements Engine.SetGroupMask (§4.4).
func (g *Group) setMask(mask Severity) {
	g.mask = mask
	g.bump()
}

// addHandler appends a handler to the group's ordered list (§4.4). It's not
// idempotent by name — callers wanting idempotence should check first via
// handlerSet.indexOf, which Engine.AddHandler does.
func (g *Group) addHandler(h Handler) {
	g.handlers = append(g.handlers, h)
	g.bump()
}

// removeHandler removes the named handler, if present, returning whether it
// was found.
func (g *Group) removeHandler(name string) bool {
	i := g.handlers.indexOf(name)
	if i < 0 {
		return false
	}
	g.handlers = append(g.handlers[:i], g.handlers[i+1:]...)
	g.bump()
	return true
}

// link adds to's current link list (a snapshot, walked once, at link time —
// §4.4, §9) to g's link list, transitively, skipping any group already
// present. Adding a link is idempotent: linking the same pair twice has no
// additional effect (§8).
func (g *Group) link(to *Group) {
	// breadth-first walk of to's current link list (including to itself)
	for _, candidate := range to.links {
		g.addLink(candidate)
	}
}

// addLink appends candidate to g's link list if not already present.
func (g *Group) addLink(candidate *Group) {
	for _, existing := range g.links {
		if existing == candidate {
			return
		}
	}
	g.links = append(g.links, candidate)
}

// setDisabled forces the group's effective mask to SeverityNone (or
// restores normal computation), used by the lifecycle controller (§4.7).
func (g *Group) setDisabled(disabled bool) {
	if g.disabled != disabled {
		g.disabled = disabled
		g.bump()
	}
}
