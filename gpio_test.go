package golink_test

import (
	"testing"

	"github.com/fpgabridge/golink"
	"github.com/fpgabridge/golink/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLEDMirror(t *testing.T) {
	dev, lb := newDevice(t, adapter.LoopbackConfig{})

	require.NoError(t, dev.SetLEDs(0xAA))
	assert.Equal(t, uint16(0x00AA), lb.LEDs())

	require.NoError(t, dev.SetLEDs16(0x0155))
	assert.Equal(t, uint16(0x0155), lb.LEDs())
}

func TestSwitchMirror(t *testing.T) {
	dev, lb := newDevice(t, adapter.LoopbackConfig{})
	lb.SetSwitches(0x2055)

	lo, err := dev.Switches()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x55), lo)

	full, err := dev.Switches16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2055), full)
}

func TestDataModeControl(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	require.NoError(t, dev.SetDataMode(golink.ModeQSPI, true))
	v, err := dev.ReadReg(golink.RegDataMode)
	require.NoError(t, err)
	m := golink.DataMode(v)
	assert.True(t, m.Enabled())
	assert.Equal(t, golink.ModeQSPI, m.Mode())

	// Loopback toggles without clobbering the mode bits.
	require.NoError(t, dev.SetLoopback(true))
	v, err = dev.ReadReg(golink.RegDataMode)
	require.NoError(t, err)
	m = golink.DataMode(v)
	assert.True(t, m.Loopback())
	assert.True(t, m.Enabled())
	assert.Equal(t, golink.ModeQSPI, m.Mode())
}

func TestReadSystemRegs(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{VersionMajor: 2, VersionMinor: 1})

	regs, err := dev.ReadSystemRegs()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xA7), regs[0])
	assert.Equal(t, uint8(2), regs[1])
	assert.Equal(t, uint8(1), regs[2])
}

func TestSystemStatus(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	st, err := dev.SystemStatus()
	require.NoError(t, err)
	assert.True(t, st.ControlReady())
	assert.False(t, st.Fault())
}

func TestSetDisplay(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	require.NoError(t, dev.SetDisplay(42))
	data, err := dev.ReadReg(golink.RegSegData)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), data, "packed BCD")

	ctrl, err := dev.ReadReg(golink.RegSegCtrl)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), ctrl)

	assert.ErrorIs(t, dev.SetDisplay(100), golink.ErrInvalidParam)
}
