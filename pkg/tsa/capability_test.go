package tsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityHas(t *testing.T) {
	c := CapSetup | CapKeygen | CapPerformance
	assert.True(t, c.Has(CapKeygen))
	assert.True(t, c.Has(CapSetup|CapKeygen))
	assert.False(t, c.Has(CapSign))
	assert.False(t, c.Has(CapKeygen|CapSign))
	assert.False(t, c.Has(0))
}

func TestCapabilityNames(t *testing.T) {
	assert.Equal(t, []string{"setup", "keygen", "performance"}, (CapPerformance | CapSetup | CapKeygen).Names())
	assert.Len(t, AllCapabilities.Names(), 9)
	assert.Equal(t, "none", Capability(0).String())
	assert.Equal(t, "sign|verify", (CapSign | CapVerify).String())
}

func TestParseCapability(t *testing.T) {
	for _, name := range AllCapabilities.Names() {
		c, err := ParseCapability(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	_, err := ParseCapability("mint")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}
