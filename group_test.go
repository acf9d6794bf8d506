package logdispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	UnimplementedHandler
	name     string
	cfg      HandlerConfig
	notifier *Notifier
}

func newStubHandler(name string, mask Severity, sharedRefs bool) *stubHandler {
	return &stubHandler{
		name:     name,
		cfg:      HandlerConfig{Mask: mask, SupportsSharedRefs: sharedRefs},
		notifier: NewNotifier(),
	}
}

func (h *stubHandler) Name() string                   { return h.name }
func (h *stubHandler) Config() HandlerConfig           { return h.cfg }
func (h *stubHandler) CompletionNotifier() *Notifier   { return h.notifier }
func (h *stubHandler) HandleOne(m *LogMessage)         {}

func TestGroup_RecomputeIsLazy(t *testing.T) {
	g := newGroup(0, "g")
	h := newStubHandler("h", SeverityFatal, true)
	g.addHandler(h)

	before := g.ActiveGate()
	assert.Equal(t, SeverityFatal, before.Mask)

	// mutate the handler's advertised mask directly (bypassing the group,
	// simulating a config that hasn't changed from the group's perspective)
	// — without bump(), recompute must not re-derive.
	h.cfg.Mask = SeverityAll
	assert.Equal(t, SeverityFatal, g.ActiveGate().Mask, "cached until version bumps")

	g.bump()
	assert.Equal(t, SeverityAll, g.ActiveGate().Mask, "recomputes once stale")
}

func TestGroup_MaskIsAndedWithHandlerOr(t *testing.T) {
	g := newGroup(0, "g")
	g.setMask(SeverityFatal | SeverityError)
	g.addHandler(newStubHandler("a", SeverityFatal|SeverityWarning, true))
	g.addHandler(newStubHandler("b", SeverityError, true))

	cfg := g.ActiveGate()
	assert.Equal(t, SeverityFatal|SeverityError, cfg.Mask)
}

func TestGroup_SharedRefsIsAndReduced(t *testing.T) {
	g := newGroup(0, "g")
	g.addHandler(newStubHandler("a", SeverityAll, true))
	assert.True(t, g.ActiveGate().SupportsSharedRefs)

	g.addHandler(newStubHandler("b", SeverityAll, false))
	assert.False(t, g.ActiveGate().SupportsSharedRefs)
}

func TestGroup_DisabledForcesNone(t *testing.T) {
	g := newGroup(0, "g")
	g.addHandler(newStubHandler("a", SeverityAll, true))
	require.Equal(t, SeverityAll, g.ActiveGate().Mask)

	g.setDisabled(true)
	assert.Equal(t, SeverityNone, g.ActiveGate().Mask)

	g.setDisabled(false)
	assert.Equal(t, SeverityAll, g.ActiveGate().Mask)
}

func TestGroup_LinkIsTransitiveSnapshotAndIdempotent(t *testing.T) {
	a := newGroup(0, "a")
	b := newGroup(1, "b")
	c := newGroup(2, "c")

	b.link(c) // b's links: [b, c]
	a.link(b) // a's links: [a, b, c] (walks b's current link list)

	names := func(g *Group) []string {
		var out []string
		for _, l := range g.links {
			out = append(out, l.name)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, names(a))

	// linking again is a no-op
	a.link(b)
	assert.Equal(t, []string{"a", "b", "c"}, names(a))

	// a self-link / cycle is safe
	a.link(a)
	assert.Equal(t, []string{"a", "b", "c"}, names(a))
}

func TestGroup_LinkDoesNotRewalkFutureLinks(t *testing.T) {
	a := newGroup(0, "a")
	b := newGroup(1, "b")
	c := newGroup(2, "c")

	a.link(b) // a's links: [a, b]
	b.link(c) // b's links: [b, c] — happens after a already linked to b

	for _, l := range a.links {
		require.NotEqual(t, "c", l.name, "a must not observe links added to b after the link call")
	}
}

func TestGroup_RemoveHandler(t *testing.T) {
	g := newGroup(0, "g")
	g.addHandler(newStubHandler("a", SeverityAll, true))
	require.True(t, g.removeHandler("a"))
	assert.False(t, g.removeHandler("a"), "already removed")
	assert.Equal(t, SeverityNone, g.ActiveGate().Mask)
}
