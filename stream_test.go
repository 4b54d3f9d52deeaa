package golink_test

import (
	"testing"
	"time"

	"github.com/fpgabridge/golink"
	"github.com/fpgabridge/golink/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTransfer(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{})
	s, err := golink.NewStream(lb, lb.Framing())
	require.NoError(t, err)

	tx := []byte{0x01, 0x02, 0x03, 0x04}
	rx := make([]byte, 4)

	require.NoError(t, s.Start(tx, rx))
	require.NoError(t, s.Wait(100*time.Millisecond, time.Millisecond))
	s.ClearComplete()
	require.NoError(t, s.Stop())

	// One byte pipeline delay: rx trails tx by one position.
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, rx)
	assert.False(t, lb.Framing().Asserted())

	// The tail of the previous transfer appears at position zero.
	require.NoError(t, s.Start(tx, rx))
	require.NoError(t, s.Wait(100*time.Millisecond, time.Millisecond))
	s.Stop()
	assert.Equal(t, uint8(0x04), rx[0])
}

func TestStreamStartFailure(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{StartFail: 1})
	s, err := golink.NewStream(lb, lb.Framing())
	require.NoError(t, err)

	tx := make([]byte, 8)
	rx := make([]byte, 8)

	err = s.Start(tx, rx)
	assert.ErrorIs(t, err, golink.ErrStreamStart)
	// Framing must not stay asserted behind a failed start.
	assert.False(t, lb.Framing().Asserted())

	// The model recovers after the injected failure.
	require.NoError(t, s.Start(tx, rx))
	require.NoError(t, s.Wait(100*time.Millisecond, time.Millisecond))
	s.Stop()
}

func TestStreamLengthMismatch(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{})
	s, err := golink.NewStream(lb, lb.Framing())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Start(make([]byte, 4), make([]byte, 8)), golink.ErrInvalidParam)
	assert.ErrorIs(t, s.Start(nil, nil), golink.ErrInvalidParam)
}

func TestStreamWaitTimeout(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{TransferTime: time.Second})
	s, err := golink.NewStream(lb, lb.Framing())
	require.NoError(t, err)

	tx := make([]byte, 8)
	rx := make([]byte, 8)
	require.NoError(t, s.Start(tx, rx))

	err = s.Wait(10*time.Millisecond, time.Millisecond)
	require.Error(t, err)
	var tErr *golink.TimeoutError
	assert.ErrorAs(t, err, &tErr)

	require.NoError(t, s.Stop())
}

func TestStreamStopIdempotent(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{})
	s, err := golink.NewStream(lb, lb.Framing())
	require.NoError(t, err)

	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
	assert.False(t, lb.Framing().Asserted())
}

func TestStreamCompleteFlag(t *testing.T) {
	lb := adapter.NewLoopback(adapter.LoopbackConfig{})
	s, err := golink.NewStream(lb, lb.Framing())
	require.NoError(t, err)

	assert.False(t, s.Complete())
	require.NoError(t, s.Start(make([]byte, 2), make([]byte, 2)))
	assert.True(t, s.Complete())
	s.ClearComplete()
	assert.False(t, s.Complete())
}
