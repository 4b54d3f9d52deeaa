package golink

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
)

// Info is the identity snapshot cached during Init.
type Info struct {
	DeviceID     uint8
	VersionMajor uint8
	VersionMinor uint8
	Caps         Capabilities
}

func (i Info) String() string {
	return fmt.Sprintf("id=0x%02X v%d.%d caps=[%s]", i.DeviceID, i.VersionMajor, i.VersionMinor, i.Caps)
}

// Device is the control-plane handle. It is owned by a single task; only the
// derived readiness boolean may cross task boundaries.
type Device struct {
	bus         ControlBus
	cfg         *DeviceConfig
	info        Info
	initialized bool
}

// Init validates the bus, pings the device, verifies its identity against
// cfg.ExpectedID and caches version and capabilities. On failure the handle is
// left un-initialized and the step-specific error is returned. An identity
// mismatch is distinguished from a transport failure so callers can skip
// retrying against the wrong hardware; with cfg.SoftIdentity the mismatch is
// reported via OnMessage and init proceeds.
func Init(bus ControlBus, cfg *DeviceConfig) (*Device, error) {
	if bus == nil {
		return nil, ErrNilBus
	}
	if cfg == nil {
		cfg = DefaultDeviceConfig()
	}
	cfg.setDefaults()

	d := &Device{bus: bus, cfg: cfg}

	// Tentatively initialized so our own register reads are not rejected.
	d.initialized = true

	if err := bus.Ping(3, cfg.Timeout); err != nil {
		d.initialized = false
		return nil, fmt.Errorf("%w: device did not respond to presence ping: %v", ErrTransport, err)
	}

	id, err := d.ReadReg(RegDeviceID)
	if err != nil {
		d.initialized = false
		return nil, err
	}
	d.info.DeviceID = id

	if id != cfg.ExpectedID {
		if !cfg.SoftIdentity {
			d.initialized = false
			return nil, Unrecoverable(&IdentityError{Got: id, Want: cfg.ExpectedID})
		}
		cfg.OnMessage(fmt.Sprintf("identity mismatch (got 0x%02X, want 0x%02X), continuing", id, cfg.ExpectedID))
	}

	if d.info.VersionMajor, err = d.ReadReg(RegVersionMaj); err != nil {
		d.initialized = false
		return nil, err
	}
	if d.info.VersionMinor, err = d.ReadReg(RegVersionMin); err != nil {
		d.initialized = false
		return nil, err
	}

	caps, err := d.ReadReg(RegLinkCaps)
	if err != nil {
		d.initialized = false
		return nil, err
	}
	d.info.Caps = Capabilities(caps)

	if cfg.Debug {
		cfg.OnMessage("init complete: " + d.info.String())
	}
	return d, nil
}

// InitWithRetry repeats Init with a fixed inter-attempt delay. On the second
// attempt only it runs a bus-scan diagnostic for operator diagnosis; the scan
// never alters control flow. Identity mismatches abort the retry loop.
func InitWithRetry(ctx context.Context, bus ControlBus, cfg *DeviceConfig, attempts uint, delay time.Duration) (*Device, error) {
	if cfg == nil {
		cfg = DefaultDeviceConfig()
	}
	cfg.setDefaults()

	var d *Device
	var lastErr error
	err := retry.Do(func() error {
		var err error
		d, err = Init(bus, cfg)
		if err != nil {
			lastErr = err
			if !IsRecoverable(err) {
				// Translate for retry.Do so it stops immediately.
				return retry.Unrecoverable(err)
			}
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			cfg.OnMessage(fmt.Sprintf("init attempt %d failed: %v", n+1, err))
			if n == 0 {
				if sc, ok := bus.(BusScanner); ok {
					found := sc.Scan(cfg.Timeout)
					if len(found) == 0 {
						cfg.OnMessage("bus scan: no devices responding")
						return
					}
					for _, addr := range found {
						cfg.OnMessage(fmt.Sprintf("bus scan: device at 0x%02X", addr))
					}
				}
			}
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		// Hand back the untranslated init error when there is one.
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return d, nil
}

// Initialized reports whether the handle passed Init.
func (d *Device) Initialized() bool { return d != nil && d.initialized }

// Info returns the cached identity snapshot.
func (d *Device) Info() Info { return d.info }

func (d *Device) valid() error {
	if d == nil || d.bus == nil {
		return ErrInvalidParam
	}
	if !d.initialized {
		return ErrNotInitialized
	}
	return nil
}

// ReadReg reads a single register: address-phase write then data read. No
// retries here; retry policy belongs to callers.
func (d *Device) ReadReg(reg Reg) (uint8, error) {
	if err := d.valid(); err != nil {
		return 0, err
	}
	if err := d.bus.Write([]byte{uint8(reg)}, d.cfg.Timeout); err != nil {
		return 0, fmt.Errorf("%w: address write reg 0x%02X: %v", ErrTransport, uint8(reg), err)
	}
	var buf [1]byte
	if err := d.bus.Read(buf[:], d.cfg.Timeout); err != nil {
		return 0, fmt.Errorf("%w: data read reg 0x%02X: %v", ErrTransport, uint8(reg), err)
	}
	return buf[0], nil
}

// WriteReg writes a single register in one address+data transaction.
func (d *Device) WriteReg(reg Reg, val uint8) error {
	if err := d.valid(); err != nil {
		return err
	}
	if err := d.bus.WriteMem(uint8(reg), []byte{val}, d.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: write reg 0x%02X: %v", ErrTransport, uint8(reg), err)
	}
	return nil
}

// ReadBurst reads len(buf) bytes starting at reg, auto-incrementing on the
// device side.
func (d *Device) ReadBurst(reg Reg, buf []byte) error {
	if err := d.valid(); err != nil {
		return err
	}
	if len(buf) == 0 {
		return ErrInvalidParam
	}
	if err := d.bus.ReadMem(uint8(reg), buf, d.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: burst read reg 0x%02X len %d: %v", ErrTransport, uint8(reg), len(buf), err)
	}
	return nil
}

// WriteBurst writes len(buf) bytes starting at reg.
func (d *Device) WriteBurst(reg Reg, buf []byte) error {
	if err := d.valid(); err != nil {
		return err
	}
	if len(buf) == 0 {
		return ErrInvalidParam
	}
	if err := d.bus.WriteMem(uint8(reg), buf, d.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: burst write reg 0x%02X len %d: %v", ErrTransport, uint8(reg), len(buf), err)
	}
	return nil
}

// scratchPatterns exercise alternating, all-zero, all-one and asymmetric bits.
var scratchPatterns = []uint8{0x55, 0xAA, 0x00, 0xFF, 0xA5, 0x5A}

// TestScratch writes the pattern sequence to both scratch registers, reading
// each back and failing on first mismatch. Scratch registers are reset to zero
// on the way out regardless of outcome.
func (d *Device) TestScratch() error {
	if err := d.valid(); err != nil {
		return err
	}
	defer func() {
		d.WriteReg(RegScratch0, 0x00)
		d.WriteReg(RegScratch1, 0x00)
	}()

	for _, reg := range []Reg{RegScratch0, RegScratch1} {
		for _, pat := range scratchPatterns {
			if err := d.WriteReg(reg, pat); err != nil {
				return err
			}
			got, err := d.ReadReg(reg)
			if err != nil {
				return err
			}
			if got != pat {
				return &VerifyError{Reg: reg, Pattern: pat, Got: got}
			}
		}
	}
	return nil
}

// TestLink is a lightweight liveness check: presence ping plus identity
// re-verification, independent of a full Init.
func (d *Device) TestLink() error {
	if err := d.valid(); err != nil {
		return err
	}
	if err := d.bus.Ping(1, d.cfg.Timeout); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	id, err := d.ReadReg(RegDeviceID)
	if err != nil {
		return err
	}
	if id != d.cfg.ExpectedID {
		return &IdentityError{Got: id, Want: d.cfg.ExpectedID}
	}
	return nil
}
