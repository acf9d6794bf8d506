package logdispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateConfig_Enabled(t *testing.T) {
	var nilCfg *GateConfig
	assert.False(t, nilCfg.Enabled(SeverityFatal))

	cfg := &GateConfig{Mask: SeverityFatal | SeverityError}
	assert.True(t, cfg.Enabled(SeverityFatal))
	assert.False(t, cfg.Enabled(SeverityWarning))
}

func TestGateCell_StoreLoadIsAtomic(t *testing.T) {
	c := newGateCell(&GateConfig{Mask: SeverityNone})
	assert.Equal(t, SeverityNone, c.Load().Mask)

	c.Store(&GateConfig{Mask: SeverityAll, SupportsSharedRefs: true})
	loaded := c.Load()
	assert.Equal(t, SeverityAll, loaded.Mask)
	assert.True(t, loaded.SupportsSharedRefs)
}
