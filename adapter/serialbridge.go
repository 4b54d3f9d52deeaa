package adapter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/fpgabridge/golink"
	"go.bug.st/serial"
)

// Bridge drives the dual-plane link through a UART debug bridge MCU speaking a
// CR-terminated ASCII command protocol:
//
//	V                 firmware version string
//	P                 presence ping, answers OK when the device acks
//	W<hex..>          raw address-phase write
//	R<hex2>           read n bytes from the latched address
//	M<hex2><hex..>    memory write starting at register
//	m<hex2><hex2>     memory read of n bytes starting at register
//	T<hex..>          blocking full-duplex transfer, answers the echo
//	A<hex2>           arm an asynchronous transfer of n bytes
//	X                 abort in-flight transfer
//	F1 / F0           assert / release the framing line
//	S                 bus scan, answers responding addresses
//
// Errors come back prefixed with '!'.
type Bridge struct {
	name    string
	cfg     *Config
	port    serial.Port
	mu      sync.Mutex
	framing bridgeLine
	closed  bool
}

var _ golink.ControlBus = (*Bridge)(nil)
var _ golink.StreamBus = (*Bridge)(nil)
var _ golink.BusScanner = (*Bridge)(nil)

func newBridgeAdapter(cfg *Config) (Adapter, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial bridge requires a port")
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = 921600
	}
	b := &Bridge{name: "SerialBridge", cfg: cfg}
	b.framing.bridge = b
	return b, nil
}

func (b *Bridge) Name() string { return b.name }

func (b *Bridge) Open(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: b.cfg.Baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(b.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %v", b.cfg.Port, err)
	}
	p.SetReadTimeout(5 * time.Millisecond)
	b.port = p

	err = retry.Do(func() error {
		ver, err := b.command("V", time.Second)
		if err != nil {
			return err
		}
		if b.cfg.OnMessage != nil {
			b.cfg.OnMessage("bridge firmware " + ver)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("Retry #%d: %v", n, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.Close()
		return err
	}
	return nil
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.port == nil {
		return nil
	}
	b.closed = true
	return b.port.Close()
}

func (b *Bridge) Control() golink.ControlBus  { return b }
func (b *Bridge) Stream() golink.StreamBus    { return b }
func (b *Bridge) Framing() golink.FramingLine { return &b.framing }

// command sends one CR-terminated request and collects the CR-terminated
// response within deadline. The bridge serializes all traffic; the link is
// half-duplex at the protocol level.
func (b *Bridge) command(cmd string, deadline time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil || b.closed {
		return "", errors.New("bridge not open")
	}
	if _, err := b.port.Write([]byte(cmd + "\r")); err != nil {
		return "", err
	}
	var sb strings.Builder
	buf := make([]byte, 64)
	end := time.Now().Add(deadline)
	for {
		n, err := b.port.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			if buf[i] == '\r' {
				resp := sb.String()
				if strings.HasPrefix(resp, "!") {
					return "", errors.New("bridge: " + strings.TrimPrefix(resp, "!"))
				}
				return resp, nil
			}
			sb.WriteByte(buf[i])
		}
		if time.Now().After(end) {
			return "", fmt.Errorf("bridge timeout waiting for response to %q", cmd)
		}
	}
}

func (b *Bridge) Ping(attempts int, timeout time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = b.command("P", timeout); err == nil {
			return nil
		}
	}
	return err
}

func (b *Bridge) Write(p []byte, timeout time.Duration) error {
	_, err := b.command(fmt.Sprintf("W%X", p), timeout)
	return err
}

func (b *Bridge) Read(p []byte, timeout time.Duration) error {
	resp, err := b.command(fmt.Sprintf("R%02X", len(p)), timeout)
	if err != nil {
		return err
	}
	return decodeInto(p, resp)
}

func (b *Bridge) WriteMem(reg uint8, p []byte, timeout time.Duration) error {
	_, err := b.command(fmt.Sprintf("M%02X%X", reg, p), timeout)
	return err
}

func (b *Bridge) ReadMem(reg uint8, p []byte, timeout time.Duration) error {
	resp, err := b.command(fmt.Sprintf("m%02X%02X", reg, len(p)), timeout)
	if err != nil {
		return err
	}
	return decodeInto(p, resp)
}

func (b *Bridge) Scan(timeout time.Duration) []uint8 {
	resp, err := b.command("S", timeout)
	if err != nil {
		return nil
	}
	out, err := hex.DecodeString(resp)
	if err != nil {
		return nil
	}
	return out
}

func (b *Bridge) Transfer(tx, rx []byte, timeout time.Duration) error {
	resp, err := b.command(fmt.Sprintf("T%X", tx), timeout)
	if err != nil {
		return err
	}
	return decodeInto(rx, resp)
}

// TransferAsync runs the blocking exchange on a goroutine; the bridge MCU owns
// the DMA engine, so start failure surfaces as a command error before the
// goroutine is spawned.
func (b *Bridge) TransferAsync(tx, rx []byte, done func()) error {
	if _, err := b.command(fmt.Sprintf("A%02X", len(tx)), time.Second); err != nil {
		return err
	}
	go func() {
		if err := b.Transfer(tx, rx, 5*time.Second); err != nil {
			if b.cfg.OnMessage != nil {
				b.cfg.OnMessage("async transfer failed: " + err.Error())
			}
			return
		}
		done()
	}()
	return nil
}

func (b *Bridge) Abort() error {
	_, err := b.command("X", time.Second)
	return err
}

func decodeInto(dst []byte, resp string) error {
	raw, err := hex.DecodeString(resp)
	if err != nil {
		return fmt.Errorf("malformed bridge response: %v", err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("bridge returned %d bytes, want %d", len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}

// bridgeLine mirrors the remote framing pin; state is tracked locally so
// Asserted never needs a round trip.
type bridgeLine struct {
	bridge   *Bridge
	asserted atomic.Bool
}

func (f *bridgeLine) Assert() {
	if _, err := f.bridge.command("F1", time.Second); err == nil {
		f.asserted.Store(true)
	}
}

func (f *bridgeLine) Release() {
	if _, err := f.bridge.command("F0", time.Second); err == nil {
		f.asserted.Store(false)
	}
}

func (f *bridgeLine) Asserted() bool { return f.asserted.Load() }
