package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/fpgabridge/golink"
	"github.com/fpgabridge/golink/adapter"
	"github.com/fpgabridge/golink/pkg/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T, lc adapter.LoopbackConfig, mode bridge.Mode) (*bridge.Bridge, *adapter.Loopback) {
	t.Helper()
	lb := adapter.NewLoopback(lc)
	b, err := bridge.New(bridge.Options{
		Control:   lb,
		Stream:    lb,
		Framing:   lb.Framing(),
		Mode:      mode,
		OnMessage: func(string) {},
	})
	require.NoError(t, err)
	return b, lb
}

func run(t *testing.T, b *bridge.Bridge, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return b.Run(ctx)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want bridge.Mode
	}{
		{"", bridge.ModeNormal},
		{"normal", bridge.ModeNormal},
		{"control", bridge.ModeControl},
		{"ctrl", bridge.ModeControl},
		{"stream", bridge.ModeStream},
		{"Data", bridge.ModeStream},
		{"STRESS", bridge.ModeStress},
	}
	for _, tt := range tests {
		got, err := bridge.ParseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := bridge.ParseMode("bogus")
	assert.Error(t, err)
}

func TestOptionsValidation(t *testing.T) {
	_, err := bridge.New(bridge.Options{})
	assert.ErrorIs(t, err, golink.ErrNilBus)
}

func TestNormalMode(t *testing.T) {
	b, lb := newBridge(t, adapter.LoopbackConfig{}, bridge.ModeNormal)
	lb.SetSwitches(0x0012)

	err := run(t, b, 1200*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.True(t, b.Ready())
	assert.NotZero(t, b.ControlStats().Reads.Load())
	assert.NotZero(t, b.ControlStats().VerifyPass.Load())
	assert.Zero(t, b.ControlStats().VerifyFail.Load())

	assert.NotZero(t, b.StreamStats().Transfers.Load())
	assert.NotZero(t, b.StreamStats().Bytes.Load())
	assert.Zero(t, b.StreamStats().ByteErrors.Load())
	assert.Zero(t, b.StreamStats().BitErrors.Load())

	// Switch state is mirrored to the LEDs; the top bit is the heartbeat.
	assert.Equal(t, uint16(0x12), lb.LEDs()&0x7F)
}

func TestControlOnlyMode(t *testing.T) {
	b, _ := newBridge(t, adapter.LoopbackConfig{}, bridge.ModeControl)

	err := run(t, b, 800*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.True(t, b.Ready())
	assert.NotZero(t, b.ControlStats().Writes.Load())
	assert.Zero(t, b.StreamStats().Transfers.Load())
}

func TestStreamOnlyMode(t *testing.T) {
	b, _ := newBridge(t, adapter.LoopbackConfig{}, bridge.ModeStream)

	err := run(t, b, 800*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Init and verify still ran, but not the control loop.
	assert.True(t, b.Ready())
	assert.Zero(t, b.ControlStats().Reads.Load())
	assert.NotZero(t, b.StreamStats().Transfers.Load())
}

func TestInitFailureStopsBridge(t *testing.T) {
	b, _ := newBridge(t, adapter.LoopbackConfig{FailPresence: true}, bridge.ModeNormal)

	err := run(t, b, 2*time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)

	// The stream owner never saw readiness and never touched the bus.
	assert.False(t, b.Ready())
	assert.Zero(t, b.StreamStats().Transfers.Load())
}

func TestIdentityMismatchStopsBridge(t *testing.T) {
	b, _ := newBridge(t, adapter.LoopbackConfig{DeviceID: 0x42}, bridge.ModeNormal)

	start := time.Now()
	err := run(t, b, 5*time.Second)
	require.Error(t, err)

	// Identity mismatch is unrecoverable: no retry delays, fast failure.
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, b.Ready())
}
