package logdispatch

import "sync"

// Notifier is a repeatable broadcast primitive: many goroutines may wait on
// it via C, and any goroutine may wake all current waiters via Notify. It
// generalizes the single-shot "close(done)" convention from
// microbatch.batcherState (grounded on microbatch.go) to the repeated
// wakeups the relay worker and handlers need to fire after every batch.
type Notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewNotifier constructs a ready-to-use Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// C returns the channel current waiters should select on; it closes the
// next time Notify is called, then is replaced, so callers must re-fetch C
// after each wakeup if they intend to wait again.
func (n *Notifier) C() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Notify wakes every goroutine currently waiting on C.
func (n *Notifier) Notify() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
}
