package golink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransfer(t *testing.T) {
	tests := []struct {
		name   string
		rx     []byte
		prevTx []byte
		want   Verdict
	}{
		{
			name:   "clean pipeline echo",
			rx:     []byte{0xFF, 0x10, 0x11, 0x12},
			prevTx: []byte{0x10, 0x11, 0x12, 0x13},
			want:   Verdict{ExactMatches: 3},
		},
		{
			name:   "single corrupt byte",
			rx:     []byte{0xFF, 0x10, 0x99, 0x12},
			prevTx: []byte{0x10, 0x11, 0x12, 0x13},
			want:   Verdict{ExactMatches: 2, ByteErrors: 1},
		},
		{
			name:   "all corrupt",
			rx:     []byte{0xFF, 0x99, 0x98, 0x97},
			prevTx: []byte{0x10, 0x11, 0x12, 0x13},
			want:   Verdict{ByteErrors: 3},
		},
		{
			name:   "left shifted clocking fault",
			rx:     []byte{0xFF, 0x20, 0x22, 0x24},
			prevTx: []byte{0x10, 0x11, 0x12, 0x13},
			want:   Verdict{BitShift: true},
		},
		{
			name:   "too short to judge",
			rx:     []byte{0x10},
			prevTx: []byte{0x10},
			want:   Verdict{},
		},
		{
			name:   "length mismatch",
			rx:     []byte{0x10, 0x11},
			prevTx: []byte{0x10, 0x11, 0x12},
			want:   Verdict{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTransfer(tt.rx, tt.prevTx))
		})
	}
}

func TestClassifyTransferShiftWins(t *testing.T) {
	// Zero bytes count both as exact and as shifted matches; shifted must
	// strictly outnumber exact before the window is booked as a clocking
	// fault.
	rx := []byte{0x00, 0x00, 0x00}
	prevTx := []byte{0x00, 0x00, 0x00}
	v := ClassifyTransfer(rx, prevTx)
	assert.False(t, v.BitShift)
	assert.Equal(t, 2, v.ExactMatches)
}

func TestAccount(t *testing.T) {
	var st StreamStats

	st.Account(Verdict{ExactMatches: 63}, 63)
	assert.Equal(t, uint64(0), st.ByteErrors.Load())
	assert.Equal(t, uint64(0), st.BitErrors.Load())

	st.Account(Verdict{ExactMatches: 60, ByteErrors: 3}, 63)
	assert.Equal(t, uint64(3), st.ByteErrors.Load())

	// A bit shift verdict books the whole window as bit errors.
	st.Account(Verdict{BitShift: true}, 63)
	assert.Equal(t, uint64(63), st.BitErrors.Load())
	assert.Equal(t, uint64(3), st.ByteErrors.Load())
}

func TestCountBitErrors(t *testing.T) {
	assert.Equal(t, 0, CountBitErrors(0xA5, 0xA5))
	assert.Equal(t, 1, CountBitErrors(0xA5, 0xA4))
	assert.Equal(t, 8, CountBitErrors(0xFF, 0x00))
}

func TestControlStatsErrorRate(t *testing.T) {
	var st ControlStats
	assert.Equal(t, 0.0, st.ErrorRatePct())

	st.Reads.Add(99)
	st.Writes.Add(99)
	st.ReadErrors.Add(1)
	st.WriteErrors.Add(1)
	assert.InDelta(t, 1.0101, st.ErrorRatePct(), 0.001)
}
