package logdispatch

import "sync/atomic"

// GateConfig is a small, immutable value containing an active severity
// mask and capability flags. Instances are published behind an atomic
// pointer so readers never observe a torn value and never need to lock
// (§4.2).
type GateConfig struct {
	// Mask is the set of severities currently admitted.
	Mask Severity

	// SupportsSharedRefs is true only if every handler in the owning group
	// (not counting linked groups) supports reference-counted sharing of a
	// LogMessage (§3 invariants: AND-reduced across handlers).
	SupportsSharedRefs bool

	// version increases on every structural change that could have altered
	// Mask or SupportsSharedRefs, supporting the "lazy observer" pattern of
	// §4.4: a reader compares this against its own last-seen version before
	// paying the cost of recomputation.
	version uint64
}

// gateCell is an atomically-replaceable holder for a *GateConfig, used by
// both LoggerState (per-logger cached config) and Group (per-group active
// config).
type gateCell struct {
	p atomic.Pointer[GateConfig]
}

func newGateCell(initial *GateConfig) *gateCell {
	c := &gateCell{}
	c.p.Store(initial)
	return c
}

// Load performs a single unsynchronized atomic load of the current
// snapshot — the hot-path read producers use to decide, in O(1) and
// without any lock, whether a record at a given severity is admitted.
func (c *gateCell) Load() *GateConfig {
	return c.p.Load()
}

// Store publishes a new snapshot. Callers must hold the engine lock, per
// §4.2 step 3 and §5 ("the engine writes new configs behind the engine
// lock").
func (c *gateCell) Store(cfg *GateConfig) {
	c.p.Store(cfg)
}

// Enabled reports whether the snapshot (which may be nil, e.g. before
// first publish) admits the given severity.
func (cfg *GateConfig) Enabled(level Severity) bool {
	return cfg != nil && cfg.Mask.Admits(level)
}
