package logdispatch

import "errors"

// Sentinel errors, returned directly (never wrapped), mirroring
// logiface.ErrDisabled, so callers can compare with ==/errors.Is.
var (
	// ErrShutdown is returned by operations attempted after Engine.Shutdown
	// (§7: "Shutdown-in-progress").
	ErrShutdown = errors.New("logdispatch: engine is shut down")

	// ErrUnknownGroup names the condition of an operation naming a group
	// that doesn't exist. No Engine method returns it: they create groups
	// on demand, or (RemoveHandler) report a missing group as false.
	ErrUnknownGroup = errors.New("logdispatch: unknown group")

	// ErrHandlerExists is returned by AddHandler when a handler with the
	// same name is already registered in the target group.
	ErrHandlerExists = errors.New("logdispatch: handler already registered")
)
