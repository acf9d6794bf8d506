package logdispatch

// LoggerSource is the stable, user-facing handle returned by
// Engine.GetSource. It carries the logger's id, its interned name, and a
// pointer to its published GateConfig snapshot, which producers read
// without any synchronization (§4.2).
type LoggerSource struct {
	id   uint64
	name string
	gate *gateCell
}

// ID returns the logger's stable id, assigned by the registry on first
// registration.
func (s *LoggerSource) ID() uint64 { return s.id }

// Name returns the logger's interned name.
func (s *LoggerSource) Name() string { return s.name }

// Enabled performs the O(1), lock-free gate check a producer uses before
// deciding whether to acquire a LogMessage at all (§4.2 step 1).
func (s *LoggerSource) Enabled(level Severity) bool {
	if s == nil {
		return false
	}
	return s.gate.Load().Enabled(level)
}

func (s *LoggerSource) String() string { return s.name }
