// Package linkchar measures latency, throughput and bit error rate of the
// dual-plane FPGA link and aggregates the figures into a pass/fail report.
package linkchar

import (
	"io"
	"os"
	"time"

	"github.com/fpgabridge/golink"
)

// Test selects sub-tests as an ordered bitmask.
type Test uint8

const (
	TestConnectivity Test = 1 << iota // identity read + small loopback
	TestLatency                       // control-plane write/read timing
	TestThroughput                    // polling vs buffered streaming
	TestBER                           // bit error rate under loopback
	TestConcurrent                    // both planes interleaved
)

// TestAll runs the whole battery; TestQuick is the short smoke set.
const (
	TestAll   = TestConnectivity | TestLatency | TestThroughput | TestBER | TestConcurrent
	TestQuick = TestConnectivity | TestLatency | TestThroughput
)

// Config is immutable once a run starts.
type Config struct {
	Iterations         int           // control-plane write/read cycles
	BurstSize          int           // bytes per throughput burst
	BERBytes           int           // byte budget for the BER stream
	ConcurrentDuration time.Duration // wall clock for the concurrent phase
	Verbose            bool          // per-phase progress output
	Trigger            bool          // drive the trigger line at phase boundaries
}

// DefaultConfig matches the full characterization profile.
func DefaultConfig() Config {
	return Config{
		Iterations:         1000,
		BurstSize:          64,
		BERBytes:           1_000_000,
		ConcurrentDuration: 30 * time.Second,
		Verbose:            true,
		Trigger:            true,
	}
}

// QuickConfig trades resolution for a ~10 second run.
func QuickConfig() Config {
	return Config{
		Iterations:         100,
		BurstSize:          64,
		BERBytes:           10_000,
		ConcurrentDuration: 5 * time.Second,
		Verbose:            true,
		Trigger:            true,
	}
}

// ControlResult is the control-plane latency measurement.
type ControlResult struct {
	WriteMinUs uint32
	WriteAvgUs uint32
	WriteMaxUs uint32
	ReadMinUs  uint32
	ReadAvgUs  uint32
	ReadMaxUs  uint32

	Transactions   uint32
	Errors         uint32
	SuccessRatePct float64
}

// StreamResult is the data-plane throughput and integrity measurement.
type StreamResult struct {
	SingleByteRTTUs uint32
	PollingKBps     uint32
	BufferedKBps    uint32

	TotalBytes uint64
	ErrorBytes uint64
	ErrorBits  uint64
	BER        float64
}

// Results is written once per sub-test by the engine and read-only after Run.
type Results struct {
	Control ControlResult
	Stream  StreamResult

	ConnectivityPass bool
	ConcurrentPass   bool

	ConcurrentControlOK  uint32
	ConcurrentControlErr uint32
	ConcurrentStreamOK   uint32
	ConcurrentStreamErr  uint32

	TestsRun Test
	Pass     bool
	Duration time.Duration
}

// Harness hands the engine its collaborators. Device and the stream pair are
// required; Trigger, Clock and Out fall back to no-op, system clock and
// stdout.
type Harness struct {
	Device  *golink.Device
	Stream  *golink.Stream
	Bus     golink.StreamBus
	Framing golink.FramingLine
	Trigger golink.TriggerLine
	Clock   golink.Clock
	Out     io.Writer
}

func (h *Harness) setDefaults() error {
	if h.Device == nil || h.Stream == nil || h.Bus == nil || h.Framing == nil {
		return golink.ErrInvalidParam
	}
	if h.Trigger == nil {
		h.Trigger = nopTrigger{}
	}
	if h.Clock == nil {
		h.Clock = golink.SystemClock{}
	}
	if h.Out == nil {
		h.Out = os.Stdout
	}
	return nil
}

type nopTrigger struct{}

func (nopTrigger) Pulse()   {}
func (nopTrigger) Set(bool) {}
