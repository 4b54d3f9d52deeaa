package golink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAccess(t *testing.T) {
	tests := []struct {
		reg    Reg
		mode   AccessMode
		mapped bool
	}{
		{RegDeviceID, RO, true},
		{RegVersionMaj, RO, true},
		{RegSysCtrl, RW, true},
		{RegScratch0, RW, true},
		{RegScratch1, RW, true},
		{RegDataErrCnt, RO, true},
		{RegSwIn, RO, true},
		{RegLEDOut, RW, true},
		{RegFifoCtrl, RW, true},
		{Reg(0x07), RO, false}, // hole in the system block
		{Reg(0x3F), RO, false}, // past the data engine block
	}
	for _, tt := range tests {
		mode, ok := Access(tt.reg)
		assert.Equal(t, tt.mapped, ok, "reg 0x%02X mapped", uint8(tt.reg))
		assert.Equal(t, tt.mapped, Mapped(tt.reg), "reg 0x%02X", uint8(tt.reg))
		if tt.mapped {
			assert.Equal(t, tt.mode, mode, "reg 0x%02X mode", uint8(tt.reg))
		}
	}
}

func TestCapabilities(t *testing.T) {
	// Reference gateware: IRQ + DMA, 25 MHz tier, 1 bit wide.
	c := Capabilities(0x15)
	assert.True(t, c.HasIRQ())
	assert.False(t, c.HasCRC())
	assert.True(t, c.HasDMA())
	assert.False(t, c.HasParallel())
	assert.Equal(t, 25, c.ClockTierMHz())
	assert.Equal(t, 1, c.BusWidth())

	full := Capabilities(0xFF)
	assert.Equal(t, 100, full.ClockTierMHz())
	assert.Equal(t, 8, full.BusWidth())
	assert.True(t, full.HasParallel())
}

func TestStatusBits(t *testing.T) {
	assert.Equal(t, "idle", Status(0).String())

	s := Status(0xC0)
	assert.True(t, s.ControlReady())
	assert.True(t, s.DataActive())
	assert.False(t, s.Fault())
	assert.Equal(t, "ctrl-ready data-active", s.String())

	assert.True(t, Status(0x20).Fault())
}

func TestDataMode(t *testing.T) {
	m := NewDataMode(ModeQSPI, true)
	assert.True(t, m.Enabled())
	assert.False(t, m.Loopback())
	assert.Equal(t, ModeQSPI, m.Mode())

	m = m.WithLoopback(true)
	assert.True(t, m.Loopback())
	assert.Equal(t, ModeQSPI, m.Mode())

	m = m.WithLoopback(false)
	assert.False(t, m.Loopback())

	off := NewDataMode(ModeSPI, false)
	assert.False(t, off.Enabled())
	assert.Equal(t, ModeSPI, off.Mode())
}
