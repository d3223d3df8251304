package mcu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spider/core"
)

func TestGPIOConfiguresOnFirstWrite(t *testing.T) {
	c, m := connect(t, true)
	g := NewGPIO(c)

	require.NoError(t, g.SetMode(core.ModeBCM))
	assert.Error(t, g.SetMode(core.ModeBoard))
	require.NoError(t, g.ConfigureOutput(2))
	require.NoError(t, g.ConfigureOutput(3))
	require.NoError(t, g.ConfigureOutput(2))
	assert.Error(t, g.ConfigureInput(4, core.PullUp))
	assert.Error(t, g.SetPin(9, true))
	assert.True(t, g.SupportsRealTiming())

	require.NoError(t, g.SetPin(3, true))
	require.NoError(t, g.SetPin(3, false))
	assert.Equal(t, []string{
		"get_config",
		"allocate_oids count=2",
		"config_digital_out oid=0 pin=2",
		"config_digital_out oid=1 pin=3",
		"finalize_config",
		"update_digital_out oid=1 value=1",
		"update_digital_out oid=1 value=0",
	}, m.commands())

	assert.Error(t, g.ConfigureOutput(4), "configuration is final")

	require.NoError(t, g.SetPin(2, true))
	require.NoError(t, g.Close())
	assert.Equal(t, []string{
		"update_digital_out oid=0 value=1",
		"update_digital_out oid=0 value=0",
		"update_digital_out oid=1 value=0",
	}, m.commands())
	assert.Error(t, g.SetPin(2, true))
	assert.NoError(t, g.Close())
}

func TestGPIOReusesMatchingConfig(t *testing.T) {
	c, m := connect(t, false)
	g := NewGPIO(c)
	require.NoError(t, g.ConfigureOutput(2))
	require.NoError(t, g.SetPin(2, false))
	m.commands()

	// A second session with the same pins finds the MCU configured.
	g2 := NewGPIO(c)
	require.NoError(t, g2.ConfigureOutput(2))
	require.NoError(t, g2.SetPin(2, true))
	assert.Equal(t, []string{"get_config", "update_digital_out oid=0 value=1"}, m.commands())

	// Different pins force a reset.
	g3 := NewGPIO(c)
	require.NoError(t, g3.ConfigureOutput(5))
	require.NoError(t, g3.SetPin(5, true))
	assert.Equal(t, []string{
		"get_config",
		"config_reset",
		"allocate_oids count=1",
		"config_digital_out oid=0 pin=5",
		"finalize_config",
		"update_digital_out oid=0 value=1",
	}, m.commands())
	require.NoError(t, g3.Close())
}
