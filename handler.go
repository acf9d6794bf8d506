package logdispatch

// Handler is the contract a downstream consumer implements (console writer,
// file writer, trace sink, test buffer, ...). Concrete handler
// implementations are external collaborators — out of scope for this
// module (§1) — this file defines only the contract the engine calls into.
//
// All implementations must embed UnimplementedHandler, so that new
// optional methods can be added to this interface without breaking
// existing handlers, mirroring the Event/UnimplementedEvent convention
// this module is grounded on.
type Handler interface {
	// Name returns a stable, human-readable identifier for the handler,
	// used in fault lines and diagnostics.
	Name() string

	// Config returns the handler's own advertised gate: the severities it
	// wants to receive, and whether it accepts shared (reference-counted)
	// pool records; when any handler of a group does not, the engine
	// delivers non-pool copies to that group's handlers (§3, §4.4).
	Config() HandlerConfig

	// CompletionNotifier returns the Notifier this handler signals after
	// each delivered batch or single message, used by
	// Engine.WaitForDelivery (§4.7).
	CompletionNotifier() *Notifier

	// HandleOne delivers a single record, via the direct distribution path
	// (§4.5). The engine drops its reference to the record when the call
	// returns; a pool-origin record whose count then reaches zero is reset
	// and reused by its Pool. Non-pool copies (delivered when the group does
	// not support shared references) are never reset. LogMessage exports no
	// method for a handler to take a reference of its own.
	HandleOne(m *LogMessage)

	// HandleBatch delivers a contiguous run of records sharing the same
	// destination group, via the queued relay (§4.6). The engine drops its
	// references to the records when the call returns, with the same
	// consequences as for HandleOne.
	HandleBatch(batch []*LogMessage)

	// IsDeliveryInProgress reports whether the handler is still working on
	// (or has yet to start) the delivery that carried the given sequence
	// number. Used by Engine.WaitForDelivery's polling loop (§4.7).
	IsDeliveryInProgress(seq uint64) bool

	// Flush requests the handler push out any buffered state.
	Flush()

	// StartIfNeeded is called by the lifecycle controller on startup/restart.
	StartIfNeeded()

	// Shutdown is called by the lifecycle controller on engine shutdown.
	Shutdown()

	mustEmbedUnimplementedHandler()
}

// HandlerConfig is a handler's advertised, static gate.
type HandlerConfig struct {
	Mask               Severity
	SupportsSharedRefs bool

	// SupportsBatch declares whether HandleBatch does real batching work.
	// When false (the zero value — what UnimplementedHandler's embedders
	// get unless they opt in), the queued relay never calls HandleBatch:
	// it falls back to calling HandleOne once per message, so a handler
	// that only cares about single messages doesn't need to implement
	// batching itself, and never silently drops queued deliveries.
	SupportsBatch bool
}

// UnimplementedHandler must be embedded by every Handler implementation.
// It supplies trivial defaults for the methods most handlers don't need to
// customize, mirroring logiface.UnimplementedEvent.
type UnimplementedHandler struct{}

// HandleBatch is unreachable for a handler that leaves
// HandlerConfig.SupportsBatch false (the embedding default): the engine
// falls back to HandleOne per message instead of calling this. Overriding
// HandleBatch without also setting SupportsBatch true is a no-op.
func (UnimplementedHandler) HandleBatch(batch []*LogMessage) {}

func (UnimplementedHandler) IsDeliveryInProgress(uint64) bool { return false }

func (UnimplementedHandler) Flush() {}

func (UnimplementedHandler) StartIfNeeded() {}

func (UnimplementedHandler) Shutdown() {}

func (UnimplementedHandler) mustEmbedUnimplementedHandler() {}

// handlerSet is the ordered collection of handlers attached to a Group.
type handlerSet []Handler

// reduce computes the AND/OR reduction §3 requires: the OR of every
// handler's mask, AND the group's own mask (applied by the caller), and
// the AND-reduction of "supports shared references" across all handlers.
func (hs handlerSet) reduce() (orMask Severity, sharedSafe bool) {
	sharedSafe = true
	for _, h := range hs {
		cfg := h.Config()
		orMask |= cfg.Mask
		if !cfg.SupportsSharedRefs {
			sharedSafe = false
		}
	}
	return
}

func (hs handlerSet) indexOf(name string) int {
	for i, h := range hs {
		if h.Name() == name {
			return i
		}
	}
	return -1
}
