package golink

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// ControlStats counts control-plane operations. Counters are mutated only by
// the owning task; atomic access lets a reporting context read individual
// fields without a multi-field consistency guarantee.
type ControlStats struct {
	Reads       atomic.Uint64
	ReadErrors  atomic.Uint64
	Writes      atomic.Uint64
	WriteErrors atomic.Uint64
	VerifyPass  atomic.Uint64
	VerifyFail  atomic.Uint64
}

func (st *ControlStats) String() string {
	return fmt.Sprintf("reads: %d (err %d) writes: %d (err %d) verify: %d/%d",
		st.Reads.Load(), st.ReadErrors.Load(),
		st.Writes.Load(), st.WriteErrors.Load(),
		st.VerifyPass.Load(), st.VerifyFail.Load())
}

// ErrorRatePct is errors over total operations, in percent.
func (st *ControlStats) ErrorRatePct() float64 {
	total := st.Reads.Load() + st.Writes.Load()
	errs := st.ReadErrors.Load() + st.WriteErrors.Load()
	if total == 0 {
		return 0
	}
	return float64(errs) * 100 / float64(total)
}

// StreamStats counts data-plane transfers and the fault classes of the
// pipeline-delay verification.
type StreamStats struct {
	Transfers       atomic.Uint64
	Bytes           atomic.Uint64
	ByteErrors      atomic.Uint64
	BitErrors       atomic.Uint64
	TransportErrors atomic.Uint64
}

func (st *StreamStats) String() string {
	return fmt.Sprintf("transfers: %d bytes: %d errors: byte=%d bit=%d transport=%d",
		st.Transfers.Load(), st.Bytes.Load(),
		st.ByteErrors.Load(), st.BitErrors.Load(), st.TransportErrors.Load())
}

// Verdict is the outcome of classifying one received window.
type Verdict struct {
	ExactMatches int
	ByteErrors   int
	BitShift     bool
}

// ClassifyTransfer compares a received buffer against the transmit pattern of
// the transfer one before it. The transport has a fixed one-byte pipeline
// delay: rx[i] corresponds to prevTx[i-1], and rx[0] reflects the tail of the
// transfer before that, so the window starts at index 1. When left-shifted
// matches outnumber exact matches the whole window is a clocking/mode fault
// rather than data corruption.
func ClassifyTransfer(rx, prevTx []byte) Verdict {
	var v Verdict
	if len(rx) < 2 || len(rx) != len(prevTx) {
		return v
	}
	shifted := 0
	for i := 1; i < len(rx); i++ {
		if rx[i] == prevTx[i-1] {
			v.ExactMatches++
		}
		if rx[i] == prevTx[i-1]<<1 {
			shifted++
		}
	}
	window := len(rx) - 1
	if shifted > v.ExactMatches {
		v.BitShift = true
	} else {
		v.ByteErrors = window - v.ExactMatches
	}
	return v
}

// Account applies a verdict to the stream counters. A bit-shift verdict books
// the whole window as bit errors, matching how the fault presents on the wire.
func (st *StreamStats) Account(v Verdict, window int) {
	if v.BitShift {
		st.BitErrors.Add(uint64(window))
	} else if v.ByteErrors > 0 {
		st.ByteErrors.Add(uint64(v.ByteErrors))
	}
}

// CountBitErrors XORs a received byte against the byte expected from loopback
// and returns the number of differing bits.
func CountBitErrors(rx, expected uint8) int {
	return bits.OnesCount8(rx ^ expected)
}
