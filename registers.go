package golink

import (
	"fmt"
	"strings"
)

// Reg is a byte-wide register address on the device.
type Reg uint8

// System block (0x00-0x0F)
const (
	RegDeviceID   Reg = 0x00 // Device identifier (R)
	RegVersionMaj Reg = 0x01 // Gateware major version (R)
	RegVersionMin Reg = 0x02 // Gateware minor version (R)
	RegSysStatus  Reg = 0x03 // System status flags (R)
	RegSysCtrl    Reg = 0x04 // System control (R/W)
	RegScratch0   Reg = 0x05 // Test register 0 (R/W)
	RegScratch1   Reg = 0x06 // Test register 1 (R/W)
)

// Link control block (0x10-0x1F)
const (
	RegLinkCaps   Reg = 0x10 // Data plane capabilities (R)
	RegDataMode   Reg = 0x11 // Active data plane mode (R/W)
	RegDataClkDiv Reg = 0x12 // Data plane clock divisor (R/W)
	RegDataStatus Reg = 0x13 // Data plane health (R)
	RegDataErrCnt Reg = 0x14 // Error counter, clears on read (R)
	RegDataTest   Reg = 0x15 // Test pattern trigger (R/W)
)

// GPIO block (0x20-0x2F)
const (
	RegLEDOut  Reg = 0x20 // LED[7:0] output (R/W)
	RegLEDOutH Reg = 0x21 // LED[15:8] output (R/W)
	RegSwIn    Reg = 0x22 // Switch[7:0] input (R)
	RegSwInH   Reg = 0x23 // Switch[15:8] input (R)
	RegSegData Reg = 0x24 // 7-segment display data (R/W)
	RegSegCtrl Reg = 0x25 // 7-segment control (R/W)
)

// Data engine block (0x30-0x3F)
const (
	RegFifoStatus Reg = 0x30 // TX/RX FIFO status (R)
	RegFifoTxLvl  Reg = 0x31 // TX FIFO fill level (R)
	RegFifoRxLvl  Reg = 0x32 // RX FIFO fill level (R)
	RegFifoCtrl   Reg = 0x33 // FIFO control (R/W)
)

// DeviceIDExpected matches the reference gateware identity register.
const DeviceIDExpected uint8 = 0xA7

// AccessMode says whether a register may be written.
type AccessMode uint8

const (
	RO AccessMode = iota
	RW
)

func (m AccessMode) String() string {
	if m == RW {
		return "RW"
	}
	return "RO"
}

var regAccess = map[Reg]AccessMode{
	RegDeviceID:   RO,
	RegVersionMaj: RO,
	RegVersionMin: RO,
	RegSysStatus:  RO,
	RegSysCtrl:    RW,
	RegScratch0:   RW,
	RegScratch1:   RW,
	RegLinkCaps:   RO,
	RegDataMode:   RW,
	RegDataClkDiv: RW,
	RegDataStatus: RO,
	RegDataErrCnt: RO,
	RegDataTest:   RW,
	RegLEDOut:     RW,
	RegLEDOutH:    RW,
	RegSwIn:       RO,
	RegSwInH:      RO,
	RegSegData:    RW,
	RegSegCtrl:    RW,
	RegFifoStatus: RO,
	RegFifoTxLvl:  RO,
	RegFifoRxLvl:  RO,
	RegFifoCtrl:   RW,
}

// Access returns the access mode for reg. The address space is sparse;
// unmapped addresses report ok=false and are never touched by this driver.
func Access(reg Reg) (AccessMode, bool) {
	m, ok := regAccess[reg]
	return m, ok
}

// Mapped reports whether reg is part of the register map.
func Mapped(reg Reg) bool {
	_, ok := regAccess[reg]
	return ok
}

// Capabilities is the link capability bitfield at RegLinkCaps.
type Capabilities uint8

const (
	CapIRQ      Capabilities = 1 << 0 // IRQ output available
	CapCRC      Capabilities = 1 << 1 // Hardware CRC available
	CapDMA      Capabilities = 1 << 2 // DMA streaming supported
	CapParallel Capabilities = 1 << 3 // Parallel (FMC) interface available
)

func (c Capabilities) HasIRQ() bool      { return c&CapIRQ != 0 }
func (c Capabilities) HasCRC() bool      { return c&CapCRC != 0 }
func (c Capabilities) HasDMA() bool      { return c&CapDMA != 0 }
func (c Capabilities) HasParallel() bool { return c&CapParallel != 0 }

// ClockTierMHz decodes bits 4-5 into the maximum data-plane clock in MHz.
func (c Capabilities) ClockTierMHz() int {
	switch (c >> 4) & 0x03 {
	case 0:
		return 10
	case 1:
		return 25
	case 2:
		return 50
	default:
		return 100
	}
}

// BusWidth decodes bits 6-7 into the maximum bus width in bits.
func (c Capabilities) BusWidth() int {
	return 1 << ((c >> 6) & 0x03)
}

func (c Capabilities) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "width=%d clk=%dMHz", c.BusWidth(), c.ClockTierMHz())
	if c.HasIRQ() {
		sb.WriteString(" irq")
	}
	if c.HasCRC() {
		sb.WriteString(" crc")
	}
	if c.HasDMA() {
		sb.WriteString(" dma")
	}
	if c.HasParallel() {
		sb.WriteString(" parallel")
	}
	return sb.String()
}

// Status is the system status bitfield at RegSysStatus.
type Status uint8

func (s Status) ControlReady() bool { return s&0x80 != 0 }
func (s Status) DataActive() bool   { return s&0x40 != 0 }
func (s Status) Fault() bool        { return s&0x20 != 0 }

func (s Status) String() string {
	out := make([]string, 0, 3)
	if s.ControlReady() {
		out = append(out, "ctrl-ready")
	}
	if s.DataActive() {
		out = append(out, "data-active")
	}
	if s.Fault() {
		out = append(out, "FAULT")
	}
	if len(out) == 0 {
		return "idle"
	}
	return strings.Join(out, " ")
}

// LinkMode selects the data-plane physical mode in RegDataMode bits 0-1.
type LinkMode uint8

const (
	ModeSPI   LinkMode = 0x00 // SPI 1-10 MHz
	ModeSPIHi LinkMode = 0x01 // SPI 10-25 MHz
	ModeQSPI  LinkMode = 0x02 // QSPI 25-50 MHz
	ModeFMC   LinkMode = 0x03 // FMC 50-100 MHz
)

func (m LinkMode) String() string {
	switch m {
	case ModeSPI:
		return "spi"
	case ModeSPIHi:
		return "spi-hi"
	case ModeQSPI:
		return "qspi"
	case ModeFMC:
		return "fmc"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// DataMode is the value written to RegDataMode.
type DataMode uint8

const (
	dataModeEnable   DataMode = 1 << 7
	dataModeLoopback DataMode = 1 << 6
	dataModeModeMask DataMode = 0x03
)

// NewDataMode builds a RegDataMode value for mode, optionally enabled.
func NewDataMode(mode LinkMode, enable bool) DataMode {
	v := DataMode(mode) & dataModeModeMask
	if enable {
		v |= dataModeEnable
	}
	return v
}

func (d DataMode) WithLoopback(on bool) DataMode {
	if on {
		return d | dataModeLoopback
	}
	return d &^ dataModeLoopback
}

func (d DataMode) Enabled() bool  { return d&dataModeEnable != 0 }
func (d DataMode) Loopback() bool { return d&dataModeLoopback != 0 }
func (d DataMode) Mode() LinkMode { return LinkMode(d & dataModeModeMask) }
