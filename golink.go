package golink

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"time"
)

// ControlBus is the register-addressed control-plane master. A single-register
// read is an address-phase Write followed by a Read; WriteMem/ReadMem carry the
// starting register in the transaction itself and auto-increment on the device.
type ControlBus interface {
	// Ping probes device presence, retrying up to attempts times.
	Ping(attempts int, timeout time.Duration) error
	// Write sends raw bytes to the device (address phase of a register read).
	Write(p []byte, timeout time.Duration) error
	// Read receives raw bytes from the device.
	Read(p []byte, timeout time.Duration) error
	// WriteMem writes len(p) bytes starting at reg.
	WriteMem(reg uint8, p []byte, timeout time.Duration) error
	// ReadMem reads len(p) bytes starting at reg.
	ReadMem(reg uint8, p []byte, timeout time.Duration) error
}

// BusScanner is an optional ControlBus extension used by the init-retry
// diagnostic to sweep candidate device addresses. Purely informational.
type BusScanner interface {
	Scan(timeout time.Duration) []uint8
}

// StreamBus is the buffered full-duplex data-plane transport. Transfer blocks
// until completion or timeout. TransferAsync returns once the transfer is
// started; done is invoked from the transport's completion context and must do
// nothing beyond setting a flag.
type StreamBus interface {
	Transfer(tx, rx []byte, timeout time.Duration) error
	TransferAsync(tx, rx []byte, done func()) error
	Abort() error
}

// FramingLine is the chip-select style signal bounding a data-plane transfer.
type FramingLine interface {
	Assert()
	Release()
	Asserted() bool
}

// TriggerLine marks test phase boundaries for external instrumentation.
type TriggerLine interface {
	Pulse()
	Set(high bool)
}

// Clock supplies the timebase for latency and throughput measurement.
type Clock interface {
	Now() time.Time
}

// SystemClock is the monotonic wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ElapsedMicros returns whole microseconds between start and c.Now().
func ElapsedMicros(c Clock, start time.Time) uint32 {
	return uint32(c.Now().Sub(start) / time.Microsecond)
}

// DeviceConfig carries the wire-contract constants and policy knobs for a
// control-plane device. The expected identity and the hard/soft mismatch gate
// are deliberately configuration, not constants: gateware revisions disagree.
type DeviceConfig struct {
	// ExpectedID is the value the identity register must return.
	ExpectedID uint8
	// SoftIdentity downgrades an identity mismatch from a fatal init error to
	// a warning; the handle stays usable.
	SoftIdentity bool
	// Timeout bounds every single bus transaction.
	Timeout time.Duration
	// OnMessage receives operator-facing progress text.
	OnMessage func(string)
	Debug     bool
}

// DefaultDeviceConfig matches the reference gateware.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		ExpectedID: DeviceIDExpected,
		Timeout:    100 * time.Millisecond,
	}
}

func (cfg *DeviceConfig) setDefaults() {
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				fmt.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
}
