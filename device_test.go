package golink_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fpgabridge/golink"
	"github.com/fpgabridge/golink/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, cfg adapter.LoopbackConfig) (*golink.Device, *adapter.Loopback) {
	t.Helper()
	lb := adapter.NewLoopback(cfg)
	dev, err := golink.Init(lb, golink.DefaultDeviceConfig())
	require.NoError(t, err)
	return dev, lb
}

func TestInit(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{VersionMajor: 1, VersionMinor: 2})
	assert.True(t, dev.Initialized())

	info := dev.Info()
	assert.Equal(t, uint8(0xA7), info.DeviceID)
	assert.Equal(t, uint8(1), info.VersionMajor)
	assert.Equal(t, uint8(2), info.VersionMinor)
	assert.True(t, info.Caps.HasDMA())
	assert.True(t, info.Caps.HasIRQ())
	assert.False(t, info.Caps.HasCRC())
}

func TestInitPresenceFailure(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{FailPresence: true})
	dev, err := golink.Init(lb, nil)
	require.Error(t, err)
	assert.Nil(t, dev)
	assert.True(t, errors.Is(err, golink.ErrTransport))
	assert.True(t, golink.IsRecoverable(err))
}

func TestInitIdentityMismatch(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{DeviceID: 0x42})

	_, err := golink.Init(lb, golink.DefaultDeviceConfig())
	require.Error(t, err)

	var idErr *golink.IdentityError
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, uint8(0x42), idErr.Got)
	assert.Equal(t, uint8(0xA7), idErr.Want)

	// Wrong hardware, retrying cannot help.
	assert.False(t, golink.IsRecoverable(err))
}

func TestInitSoftIdentity(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{DeviceID: 0x42})

	var msgs []string
	cfg := golink.DefaultDeviceConfig()
	cfg.SoftIdentity = true
	cfg.OnMessage = func(msg string) { msgs = append(msgs, msg) }

	dev, err := golink.Init(lb, cfg)
	require.NoError(t, err)
	assert.True(t, dev.Initialized())
	assert.Equal(t, uint8(0x42), dev.Info().DeviceID)

	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "identity mismatch")
}

func TestInitWithRetryBusScan(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{FailPresence: true})

	var msgs []string
	cfg := golink.DefaultDeviceConfig()
	cfg.OnMessage = func(msg string) { msgs = append(msgs, msg) }

	_, err := golink.InitWithRetry(context.Background(), lb, cfg, 3, time.Millisecond)
	require.Error(t, err)

	scans := 0
	for _, m := range msgs {
		if strings.Contains(m, "bus scan") {
			scans++
		}
	}
	// Diagnostic sweep runs on the second attempt only.
	assert.Equal(t, 1, scans)
}

func TestInitWithRetryIdentityAborts(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{DeviceID: 0x42})

	var msgs []string
	cfg := golink.DefaultDeviceConfig()
	cfg.OnMessage = func(msg string) { msgs = append(msgs, msg) }

	_, err := golink.InitWithRetry(context.Background(), lb, cfg, 3, time.Millisecond)
	require.Error(t, err)

	var idErr *golink.IdentityError
	assert.True(t, errors.As(err, &idErr))
	for _, m := range msgs {
		assert.NotContains(t, m, "attempt 2")
	}
}

func TestWriteReadReg(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	require.NoError(t, dev.WriteReg(golink.RegScratch0, 0xA5))
	got, err := dev.ReadReg(golink.RegScratch0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xA5), got)
}

func TestWriteReadOnlyDropped(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	require.NoError(t, dev.WriteReg(golink.RegDeviceID, 0x00))
	got, err := dev.ReadReg(golink.RegDeviceID)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xA7), got)
}

func TestBurstAutoIncrement(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	require.NoError(t, dev.WriteBurst(golink.RegScratch0, []byte{0x11, 0x22}))
	buf := make([]byte, 2)
	require.NoError(t, dev.ReadBurst(golink.RegScratch0, buf))
	assert.Equal(t, []byte{0x11, 0x22}, buf)
}

func TestBurstZeroLength(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})

	assert.ErrorIs(t, dev.ReadBurst(golink.RegScratch0, nil), golink.ErrInvalidParam)
	assert.ErrorIs(t, dev.WriteBurst(golink.RegScratch0, nil), golink.ErrInvalidParam)
}

func TestScratchPass(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})
	require.NoError(t, dev.TestScratch())

	for _, reg := range []golink.Reg{golink.RegScratch0, golink.RegScratch1} {
		got, err := dev.ReadReg(reg)
		require.NoError(t, err)
		assert.Equal(t, uint8(0x00), got, "scratch 0x%02X not reset", uint8(reg))
	}
}

func TestScratchCorruption(t *testing.T) {
	// Fourth data write is the 0xFF pattern on the first scratch register.
	dev, _ := newDevice(t, adapter.LoopbackConfig{CorruptWrite: 4})

	err := dev.TestScratch()
	require.Error(t, err)

	var vErr *golink.VerifyError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, golink.RegScratch0, vErr.Reg)
	assert.Equal(t, uint8(0xFF), vErr.Pattern)
	assert.Equal(t, uint8(0xFE), vErr.Got)
	assert.True(t, errors.Is(err, golink.ErrVerify))

	// Reset to zero happens on failure too.
	got, err := dev.ReadReg(golink.RegScratch0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), got)
}

func TestTestLink(t *testing.T) {
	dev, _ := newDevice(t, adapter.LoopbackConfig{})
	assert.NoError(t, dev.TestLink())
}

func TestUninitializedRejected(t *testing.T) {
	var dev *golink.Device
	_, err := dev.ReadReg(golink.RegDeviceID)
	assert.ErrorIs(t, err, golink.ErrInvalidParam)
}
