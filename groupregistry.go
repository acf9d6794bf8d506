package logdispatch

const (
	// DefaultGroupName is the sentinel name of the always-present default
	// group, which has id 0 and exists for the engine's entire lifetime
	// (§3, §6).
	DefaultGroupName = "LDG.Default"

	// LookupGroupName is the sentinel explicit-group-name value that marks
	// a logger as eligible for name-based remapping (§4.3, §6).
	LookupGroupName = "LDG.Lookup"
)

// groupRegistry owns Group creation and the ordered list used for
// name-based remap tie-breaking (§4.3: "scan groups in creation order").
// All methods require the engine lock to be held by the caller.
type groupRegistry struct {
	byName map[string]*Group
	order  []*Group // creation order, index 0 is always the default group
	nextID uint32
}

func newGroupRegistry() *groupRegistry {
	r := &groupRegistry{byName: make(map[string]*Group)}
	def := r.getOrCreate(DefaultGroupName)
	def.matcher = nameMatcher{kind: MatchNone}
	return r
}

// getOrCreate implements the idempotent create-by-name operation (§4.4).
func (r *groupRegistry) getOrCreate(name string) *Group {
	if g, ok := r.byName[name]; ok {
		return g
	}
	g := newGroup(r.nextID, name)
	r.nextID++
	r.byName[name] = g
	r.order = append(r.order, g)
	return g
}

func (r *groupRegistry) lookup(name string) (*Group, bool) {
	g, ok := r.byName[name]
	return g, ok
}

// defaultGroup returns the always-present group with id 0.
func (r *groupRegistry) defaultGroup() *Group { return r.order[0] }

// matchGroup scans groups in creation order, returning the first one whose
// rule claims name. The default group is never matched this way — it has
// MatchNone (§4.3: "Default group has no match rule (it is the fallback)").
func (r *groupRegistry) matchGroup(name string) *Group {
	for _, g := range r.order {
		if g.matcher.matches(name) {
			return g
		}
	}
	return r.defaultGroup()
}

func (r *groupRegistry) all() []*Group { return r.order }
