package logdispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Shutdown_DisablesEverythingAndStopsHandlers(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))

	src := e.GetSource("svc")
	require.True(t, src.Enabled(SeverityFatal))

	e.Shutdown("test shutdown")

	assert.False(t, src.Enabled(SeverityFatal))
	h.mu.Lock()
	assert.Equal(t, 1, h.flushed)
	assert.Equal(t, 1, h.stopped)
	h.mu.Unlock()

	m := e.Acquire()
	assert.False(t, m.PoolOrigin(), "pool is torn down; acquire falls back to the heap")
}

func TestEngine_Shutdown_IsIdempotent(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))

	e.Shutdown("first")
	e.Shutdown("second")

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.stopped, "second shutdown call must be a no-op")
}

func TestEngine_DistributeAfterShutdown_IsSilentNoOp(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))
	src := e.GetSource("svc")

	e.Shutdown("")

	m := e.Acquire()
	m.Source = src
	m.Severity = SeverityFatal
	e.Distribute(m)

	assert.Equal(t, 0, h.deliveredCount())
}

func TestEngine_StartupIfNeeded_RestartsAfterShutdown(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))
	src := e.GetSource("svc")

	e.Shutdown("")
	e.StartupIfNeeded()

	h.mu.Lock()
	assert.Equal(t, 1, h.started)
	h.mu.Unlock()

	assert.True(t, src.Enabled(SeverityFatal))

	m := e.Acquire()
	m.Source = src
	m.Severity = SeverityFatal
	e.Distribute(m)
	assert.Equal(t, 1, h.deliveredCount())
}

func TestEngine_StartupIfNeeded_WithoutShutdownIsNoOp(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))

	e.StartupIfNeeded()

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 0, h.started, "engine was never shut down, nothing to restart")
}

func TestEngine_WaitForDelivery_ReturnsFalseOnTimeout(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	hold := make(chan struct{})
	h.holdUntil = hold
	require.NoError(t, e.AddHandler(DefaultGroupName, h))

	src := e.GetSource("svc")
	m := e.Acquire()
	m.Source = src
	m.Severity = SeverityFatal

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Distribute(m) // will block inside HandleOne until hold closes
	}()

	// give Distribute a moment to reach HandleOne and block there.
	time.Sleep(50 * time.Millisecond)

	ok := e.WaitForDelivery(src.ID(), 100*time.Millisecond)
	assert.False(t, ok)

	close(hold)
	<-done
}

func TestEngine_WaitForQueuedDelivery(t *testing.T) {
	e := New(WithQueueCapacity(8))
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))

	src := e.GetSource("svc")
	m := e.Acquire()
	m.Source = src
	m.Severity = SeverityInfo
	e.Enqueue(m)

	require.True(t, e.WaitForQueuedDelivery(src.ID(), 2*time.Second))
	assert.Equal(t, 1, h.deliveredCount())
}

func TestEngine_WaitForDelivery_UnknownLoggerReturnsTrue(t *testing.T) {
	e := New()
	assert.True(t, e.WaitForDelivery(999, time.Second))
}

func TestEngine_ConfigMutationsAfterShutdown_AreNoOps(t *testing.T) {
	e := New()
	h := newRecordingHandler("h", SeverityAll, true)
	require.NoError(t, e.AddHandler(DefaultGroupName, h))
	e.SetGroupMask(DefaultGroupName, SeverityFatal)

	e.Shutdown("")

	assert.ErrorIs(t, e.AddHandler("NewGroup", newRecordingHandler("other", SeverityAll, true)), ErrShutdown)
	assert.False(t, e.RemoveHandler(DefaultGroupName, "h"), "remove-handler is a no-op after shutdown")

	e.MapLoggersToGroup(MatchPrefix, "Svc.", "SvcGroup")
	_, hasSvcGroup := e.groups.lookup("SvcGroup")
	assert.False(t, hasSvcGroup, "map-loggers-to-group must not create a group after shutdown")

	e.SetGroupMask(DefaultGroupName, SeverityAll)
	g, _ := e.groups.lookup(DefaultGroupName)
	assert.Equal(t, SeverityFatal, g.mask, "set-group-mask must not change the mask after shutdown")

	e.Link("A", "B")
	_, hasA := e.groups.lookup("A")
	assert.False(t, hasA, "link must not create groups after shutdown")

	e.SetDynamicConfigSource(DynamicConfigSourceFunc(func(string) (string, bool) { return "", false }))
	assert.Nil(t, e.loggers.dynamicConfig, "set-dynamic-config-source must not apply after shutdown")
}
