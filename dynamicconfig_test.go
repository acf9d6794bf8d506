package logdispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynamicConfigSourceFunc(t *testing.T) {
	src := DynamicConfigSourceFunc(func(key string) (string, bool) {
		if key == "known" {
			return "value", true
		}
		return "", false
	})

	v, ok := src.Lookup("known")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = src.Lookup("unknown")
	assert.False(t, ok)

	src.Subscribe(func() {}) // no-op, must not panic
}

func TestReduceIncreaseKeys(t *testing.T) {
	assert.Equal(t, "Logging.Loggers.svc.LogGate.Reduce", reduceKey("svc"))
	assert.Equal(t, "Logging.Loggers.svc.LogGate.Increase", increaseKey("svc"))
}
