// Package bridge runs the two plane owners of normal operation: the
// control-plane task that verifies the device and publishes readiness, and
// the data-plane task that streams bursts once readiness is observed.
package bridge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fpgabridge/golink"
	"golang.org/x/sync/errgroup"
)

// Mode selects which owners run. It replaces the firmware's compile-time
// subsystem switches with a closed set of runtime modes.
type Mode int

const (
	ModeNormal     Mode = iota // both owners
	ModeControl                // control-plane owner only
	ModeStream                 // init + verify, then data-plane owner only
	ModeStress                 // both owners with minimal inter-burst delay
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeControl:
		return "control"
	case ModeStream:
		return "stream"
	case ModeStress:
		return "stress"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a mode name to its Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "normal", "":
		return ModeNormal, nil
	case "control", "ctrl":
		return ModeControl, nil
	case "stream", "data":
		return ModeStream, nil
	case "stress":
		return ModeStress, nil
	}
	return 0, fmt.Errorf("unknown run mode %q", s)
}

// Options wires a Bridge. Control, Stream and Framing are required.
type Options struct {
	Control golink.ControlBus
	Stream  golink.StreamBus
	Framing golink.FramingLine
	Device  *golink.DeviceConfig

	Mode          Mode
	BurstSize     int           // data-plane burst length, default 64
	ControlPeriod time.Duration // control loop period, default 100ms
	StreamPeriod  time.Duration // inter-burst delay, default 10ms
	ReportEvery   time.Duration // stats report interval, default 5s
	OnMessage     func(string)
}

func (o *Options) setDefaults() error {
	if o.Control == nil || o.Stream == nil || o.Framing == nil {
		return golink.ErrNilBus
	}
	if o.BurstSize <= 0 {
		o.BurstSize = 64
	}
	if o.ControlPeriod == 0 {
		o.ControlPeriod = 100 * time.Millisecond
	}
	if o.StreamPeriod == 0 {
		o.StreamPeriod = 10 * time.Millisecond
	}
	if o.Mode == ModeStress {
		o.ControlPeriod = 10 * time.Millisecond
		o.StreamPeriod = time.Millisecond
	}
	if o.ReportEvery == 0 {
		o.ReportEvery = 5 * time.Second
	}
	if o.OnMessage == nil {
		o.OnMessage = func(msg string) { log.Println(msg) }
	}
	return nil
}

// Bridge owns both plane tasks. The readiness flag is the only state shared
// between them: one-shot, one-directional, set by the control owner after
// identity verification and polled by the stream owner.
type Bridge struct {
	opts  Options
	ready atomic.Bool

	ctrlStats   golink.ControlStats
	streamStats golink.StreamStats
}

func New(opts Options) (*Bridge, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	return &Bridge{opts: opts}, nil
}

// Ready reports whether the control owner has verified the link.
func (b *Bridge) Ready() bool { return b.ready.Load() }

// ControlStats exposes the control-plane counters. Individual fields are
// atomically readable; there is no cross-field consistency guarantee.
func (b *Bridge) ControlStats() *golink.ControlStats { return &b.ctrlStats }

func (b *Bridge) StreamStats() *golink.StreamStats { return &b.streamStats }

// Run starts the owners for the configured mode and blocks until ctx is done
// or an owner fails its init.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	switch b.opts.Mode {
	case ModeControl:
		g.Go(func() error { return b.controlTask(ctx, true) })
	case ModeStream:
		g.Go(func() error { return b.controlTask(ctx, false) })
		g.Go(func() error { return b.streamTask(ctx) })
	default:
		g.Go(func() error { return b.controlTask(ctx, true) })
		g.Go(func() error { return b.streamTask(ctx) })
	}
	return g.Wait()
}

// controlTask initializes and verifies the device, publishes readiness and,
// when loop is set, keeps exercising the control plane. An unrecoverable init
// failure terminates the owner instead of proceeding into undefined register
// behavior.
func (b *Bridge) controlTask(ctx context.Context, loop bool) error {
	msg := b.opts.OnMessage
	msg("control task started")

	dev, err := golink.InitWithRetry(ctx, b.opts.Control, b.opts.Device, 3, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("control task: init failed: %w", err)
	}
	msg("device found: " + dev.Info().String())

	if err := dev.TestScratch(); err != nil {
		msg("scratch register test: FAIL: " + err.Error())
	} else {
		msg("scratch register test: PASS")
	}

	b.ledWalk(ctx, dev)

	// The one-shot readiness publication gating the data plane.
	b.ready.Store(true)
	msg("control plane ready")

	if !loop {
		return nil
	}

	ticker := time.NewTicker(b.opts.ControlPeriod)
	defer ticker.Stop()
	lastReport := time.Now()
	var iteration uint32

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		iteration++
		b.controlCycle(dev, iteration)

		if time.Since(lastReport) >= b.opts.ReportEvery {
			lastReport = time.Now()
			msg(fmt.Sprintf("control plane: %s (error rate %.4f%%)", b.ctrlStats.String(), b.ctrlStats.ErrorRatePct()))
		}
	}
}

// controlCycle is one iteration of the owner loop: identity check, scratch
// round trip, switch-to-LED mirror with a heartbeat bit.
func (b *Bridge) controlCycle(dev *golink.Device, iteration uint32) {
	if id, err := dev.ReadReg(golink.RegDeviceID); err != nil || id != dev.Info().DeviceID {
		b.ctrlStats.ReadErrors.Add(1)
	} else {
		b.ctrlStats.Reads.Add(1)
	}

	val := uint8(iteration & 0xFF)
	if err := dev.WriteReg(golink.RegScratch0, val); err != nil {
		b.ctrlStats.WriteErrors.Add(1)
	} else {
		b.ctrlStats.Writes.Add(1)
	}
	if got, err := dev.ReadReg(golink.RegScratch0); err != nil {
		b.ctrlStats.ReadErrors.Add(1)
	} else {
		b.ctrlStats.Reads.Add(1)
		if got == val {
			b.ctrlStats.VerifyPass.Add(1)
		} else {
			b.ctrlStats.VerifyFail.Add(1)
		}
	}

	if sw, err := dev.Switches(); err == nil {
		led := sw & 0x7F
		// Top bit is the heartbeat, toggled every five iterations.
		if iteration%10 < 5 {
			led |= 0x80
		}
		dev.SetLEDs(led)
	}
}

// ledWalk sweeps a single lit LED out and back to confirm the hardware path.
func (b *Bridge) ledWalk(ctx context.Context, dev *golink.Device) {
	step := func(pattern uint8) bool {
		dev.SetLEDs(pattern)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(20 * time.Millisecond):
			return true
		}
	}
	for i := 0; i < 8; i++ {
		if !step(1 << i) {
			return
		}
	}
	for i := 6; i >= 0; i-- {
		if !step(1 << i) {
			return
		}
	}
	dev.SetLEDs(0x00)
}

// streamTask polls readiness, then runs the burst loop. It never touches the
// streaming driver before readiness is observed; if the control owner never
// gets there it polls until ctx is canceled.
func (b *Bridge) streamTask(ctx context.Context) error {
	msg := b.opts.OnMessage
	msg("stream task started, waiting for control plane")

	for !b.ready.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	stream, err := golink.NewStream(b.opts.Stream, b.opts.Framing)
	if err != nil {
		return fmt.Errorf("stream task: %w", err)
	}

	tx := make([]byte, b.opts.BurstSize)
	rx := make([]byte, b.opts.BurstSize)
	for i := range tx {
		tx[i] = byte(i)
	}

	msg("stream task: starting transfers")
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.opts.StreamPeriod):
		}

		b.streamBurst(stream, tx, rx)

		if time.Since(lastReport) >= b.opts.ReportEvery {
			lastReport = time.Now()
			msg("stream plane: " + b.streamStats.String())
		}
	}
}

// streamBurst runs one buffered transfer, verifies it against the pipeline
// delay and advances the transmit pattern.
func (b *Bridge) streamBurst(stream *golink.Stream, tx, rx []byte) {
	if err := stream.Start(tx, rx); err != nil {
		b.streamStats.TransportErrors.Add(1)
		return
	}
	if err := stream.Wait(100*time.Millisecond, time.Millisecond); err != nil {
		stream.Stop()
		b.streamStats.TransportErrors.Add(1)
		return
	}
	stream.ClearComplete()
	stream.Stop()

	b.streamStats.Transfers.Add(1)
	b.streamStats.Bytes.Add(uint64(len(tx)))

	v := golink.ClassifyTransfer(rx, tx)
	b.streamStats.Account(v, len(tx)-1)
	if v.BitShift && b.streamStats.Transfers.Load()%100 == 0 {
		b.opts.OnMessage("stream plane: bit shift detected, check clocking mode")
	}

	for i := range tx {
		tx[i]++
	}
}
