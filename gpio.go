package golink

import (
	"github.com/albenik/bcd"
)

// GPIO-mirror and link-control conveniences layered on the register ops.

func (d *Device) SetLEDs(pattern uint8) error {
	return d.WriteReg(RegLEDOut, pattern)
}

func (d *Device) SetLEDs16(pattern uint16) error {
	if err := d.WriteReg(RegLEDOut, uint8(pattern&0xFF)); err != nil {
		return err
	}
	return d.WriteReg(RegLEDOutH, uint8(pattern>>8))
}

func (d *Device) Switches() (uint8, error) {
	return d.ReadReg(RegSwIn)
}

func (d *Device) Switches16() (uint16, error) {
	var buf [2]byte
	if err := d.ReadBurst(RegSwIn, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

// SetDataMode selects the data-plane physical mode, optionally enabling the
// plane in the same write.
func (d *Device) SetDataMode(mode LinkMode, enable bool) error {
	return d.WriteReg(RegDataMode, uint8(NewDataMode(mode, enable)))
}

// SetLoopback flips the loopback bit, preserving the rest of the mode register.
func (d *Device) SetLoopback(enable bool) error {
	cur, err := d.ReadReg(RegDataMode)
	if err != nil {
		return err
	}
	return d.WriteReg(RegDataMode, uint8(DataMode(cur).WithLoopback(enable)))
}

// ReadSystemRegs bursts the seven system block registers (0x00-0x06).
func (d *Device) ReadSystemRegs() ([7]byte, error) {
	var buf [7]byte
	err := d.ReadBurst(RegDeviceID, buf[:])
	return buf, err
}

// SystemStatus reads and decodes the status bitfield.
func (d *Device) SystemStatus() (Status, error) {
	v, err := d.ReadReg(RegSysStatus)
	return Status(v), err
}

// SetDisplay shows a decimal value 0-99 on the seven-segment display. The
// gateware expects packed BCD in the data register.
func (d *Device) SetDisplay(value uint8) error {
	if value > 99 {
		return ErrInvalidParam
	}
	if err := d.WriteReg(RegSegData, bcd.FromUint8(value)); err != nil {
		return err
	}
	return d.WriteReg(RegSegCtrl, 0x01)
}
