package adapter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fpgabridge/golink"
)

// LoopbackConfig models one virtual device and its injectable faults. The
// zero value behaves like healthy reference gateware.
type LoopbackConfig struct {
	DeviceID     uint8 // identity register value, default 0xA7
	VersionMajor uint8
	VersionMinor uint8
	Caps         uint8 // capability bitfield, default 0x15
	BusAddr      uint8 // where the device answers on the bus, default 0x55

	FailPresence bool          // never acknowledge presence pings
	StartFail    int           // fail this many stream starts before recovering
	CorruptWrite int           // corrupt the nth register data write (1-based)
	BitShift     bool          // stream echoes bytes shifted left by one bit
	TransferTime time.Duration // simulated stream transfer duration
}

// Loopback is an in-memory device model: a register file behind a ControlBus
// plus a one-byte pipeline-delay echo behind a StreamBus. It backs the
// "Loopback" adapter and the package tests.
type Loopback struct {
	cfg LoopbackConfig

	mu         sync.Mutex
	regs       [0x40]uint8
	addrLatch  uint8
	writeCount int
	startsLeft int
	tail       uint8 // last byte of the previous stream transfer

	framing  loopLine
	trigger  LoopTrigger
	inflight atomic.Bool
}

var _ golink.ControlBus = (*Loopback)(nil)
var _ golink.StreamBus = (*Loopback)(nil)
var _ golink.BusScanner = (*Loopback)(nil)

// NewLoopback builds the model. Zero config fields fall back to the reference
// gateware values.
func NewLoopback(cfg LoopbackConfig) *Loopback {
	if cfg.DeviceID == 0 {
		cfg.DeviceID = golink.DeviceIDExpected
	}
	if cfg.Caps == 0 {
		cfg.Caps = 0x15
	}
	if cfg.BusAddr == 0 {
		cfg.BusAddr = 0x55
	}
	l := &Loopback{cfg: cfg, startsLeft: cfg.StartFail}
	l.regs[golink.RegDeviceID] = cfg.DeviceID
	l.regs[golink.RegVersionMaj] = cfg.VersionMajor
	l.regs[golink.RegVersionMin] = cfg.VersionMinor
	l.regs[golink.RegLinkCaps] = cfg.Caps
	l.regs[golink.RegSysStatus] = 0x80 // control plane ready
	return l
}

// Framing exposes the model's chip-select line.
func (l *Loopback) Framing() golink.FramingLine { return &l.framing }

// Trigger exposes a trigger line that counts pulses, for instrumentation
// checks in tests.
func (l *Loopback) Trigger() golink.TriggerLine { return &l.trigger }

// SetSwitches drives the switch input mirror registers.
func (l *Loopback) SetSwitches(v uint16) {
	l.mu.Lock()
	l.regs[golink.RegSwIn] = uint8(v & 0xFF)
	l.regs[golink.RegSwInH] = uint8(v >> 8)
	l.mu.Unlock()
}

// LEDs returns the current LED output mirror.
func (l *Loopback) LEDs() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint16(l.regs[golink.RegLEDOut]) | uint16(l.regs[golink.RegLEDOutH])<<8
}

func (l *Loopback) Ping(attempts int, timeout time.Duration) error {
	if l.cfg.FailPresence {
		return errors.New("no ack")
	}
	return nil
}

func (l *Loopback) Write(p []byte, timeout time.Duration) error {
	if l.cfg.FailPresence {
		return errors.New("no ack")
	}
	if len(p) == 0 {
		return errors.New("empty write")
	}
	l.mu.Lock()
	l.addrLatch = p[0]
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Read(p []byte, timeout time.Duration) error {
	if l.cfg.FailPresence {
		return errors.New("no ack")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range p {
		p[i] = l.readAt(l.addrLatch + uint8(i))
	}
	return nil
}

func (l *Loopback) WriteMem(reg uint8, p []byte, timeout time.Duration) error {
	if l.cfg.FailPresence {
		return errors.New("no ack")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, b := range p {
		l.writeCount++
		if l.writeCount == l.cfg.CorruptWrite {
			b ^= 0x01
		}
		l.writeAt(reg+uint8(i), b)
	}
	return nil
}

func (l *Loopback) ReadMem(reg uint8, p []byte, timeout time.Duration) error {
	if l.cfg.FailPresence {
		return errors.New("no ack")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range p {
		p[i] = l.readAt(reg + uint8(i))
	}
	return nil
}

func (l *Loopback) Scan(timeout time.Duration) []uint8 {
	if l.cfg.FailPresence {
		return nil
	}
	return []uint8{l.cfg.BusAddr}
}

// readAt and writeAt hold l.mu.
func (l *Loopback) readAt(addr uint8) uint8 {
	if int(addr) >= len(l.regs) || !golink.Mapped(golink.Reg(addr)) {
		return 0x00
	}
	v := l.regs[addr]
	if golink.Reg(addr) == golink.RegDataErrCnt {
		l.regs[addr] = 0 // clears on read
	}
	return v
}

func (l *Loopback) writeAt(addr uint8, b uint8) {
	if int(addr) >= len(l.regs) {
		return
	}
	if mode, ok := golink.Access(golink.Reg(addr)); !ok || mode != golink.RW {
		return // read-only and unmapped writes are dropped by the gateware
	}
	l.regs[addr] = b
}

func (l *Loopback) echo(tx, rx []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.tail
	for i := range tx {
		b := prev
		if l.cfg.BitShift {
			b <<= 1
		}
		rx[i] = b
		prev = tx[i]
	}
	l.tail = prev
}

func (l *Loopback) Transfer(tx, rx []byte, timeout time.Duration) error {
	if len(tx) != len(rx) {
		return errors.New("length mismatch")
	}
	if l.cfg.TransferTime > 0 {
		time.Sleep(l.cfg.TransferTime)
	}
	l.echo(tx, rx)
	return nil
}

func (l *Loopback) TransferAsync(tx, rx []byte, done func()) error {
	if len(tx) != len(rx) {
		return errors.New("length mismatch")
	}
	l.mu.Lock()
	if l.startsLeft > 0 {
		l.startsLeft--
		l.mu.Unlock()
		return errors.New("engine busy")
	}
	l.mu.Unlock()
	l.inflight.Store(true)
	if l.cfg.TransferTime > 0 {
		go func() {
			time.Sleep(l.cfg.TransferTime)
			if !l.inflight.Load() {
				return // aborted
			}
			l.echo(tx, rx)
			l.inflight.Store(false)
			done()
		}()
		return nil
	}
	l.echo(tx, rx)
	l.inflight.Store(false)
	done()
	return nil
}

func (l *Loopback) Abort() error {
	l.inflight.Store(false)
	return nil
}

// loopLine is a FramingLine backed by an atomic flag.
type loopLine struct {
	asserted atomic.Bool
}

func (f *loopLine) Assert()        { f.asserted.Store(true) }
func (f *loopLine) Release()       { f.asserted.Store(false) }
func (f *loopLine) Asserted() bool { return f.asserted.Load() }

// LoopTrigger counts pulses instead of driving a pin.
type LoopTrigger struct {
	pulses atomic.Uint64
	level  atomic.Bool
}

func (t *LoopTrigger) Pulse()         { t.pulses.Add(1) }
func (t *LoopTrigger) Set(high bool)  { t.level.Store(high) }
func (t *LoopTrigger) Pulses() uint64 { return t.pulses.Load() }

// loopbackAdapter wires the model into the adapter registry.
type loopbackAdapter struct {
	*Loopback
	name string
}

func newLoopbackAdapter(cfg *Config) (Adapter, error) {
	lc := LoopbackConfig{}
	if cfg.BusAddr != 0 {
		lc.BusAddr = cfg.BusAddr
	}
	return &loopbackAdapter{Loopback: NewLoopback(lc), name: "Loopback"}, nil
}

func (a *loopbackAdapter) Name() string                   { return a.name }
func (a *loopbackAdapter) Open(ctx context.Context) error { return nil }
func (a *loopbackAdapter) Close() error                   { return nil }
func (a *loopbackAdapter) Control() golink.ControlBus     { return a.Loopback }
func (a *loopbackAdapter) Stream() golink.StreamBus       { return a.Loopback }
