package logdispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRegistry_DefaultGroupExists(t *testing.T) {
	r := newGroupRegistry()
	def := r.defaultGroup()
	require.NotNil(t, def)
	assert.Equal(t, DefaultGroupName, def.Name())
	assert.EqualValues(t, 0, def.ID())
}

func TestGroupRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	r := newGroupRegistry()
	a := r.getOrCreate("svc")
	b := r.getOrCreate("svc")
	assert.Same(t, a, b)
}

func TestGroupRegistry_MatchGroupScansCreationOrder(t *testing.T) {
	r := newGroupRegistry()
	first := r.getOrCreate("first")
	first.matcher, _ = newNameMatcher(MatchPrefix, "Svc.")
	second := r.getOrCreate("second")
	second.matcher, _ = newNameMatcher(MatchPrefix, "Svc.Orders")

	got := r.matchGroup("Svc.Orders.Created")
	assert.Same(t, first, got, "first matching rule in creation order wins")
}

func TestGroupRegistry_MatchGroupFallsBackToDefault(t *testing.T) {
	r := newGroupRegistry()
	r.getOrCreate("picky").matcher, _ = newNameMatcher(MatchPrefix, "Nope.")

	got := r.matchGroup("Unrelated.Name")
	assert.Same(t, r.defaultGroup(), got)
}
