package golink

import (
	"sync/atomic"
	"time"
)

// Stream frames buffered asynchronous transfers with a framing signal. The
// completion flag is the sole state shared with the transport's completion
// context: it is set there, unconditionally, and nowhere else.
type Stream struct {
	bus      StreamBus
	framing  FramingLine
	complete atomic.Bool
}

// NewStream binds the transport and framing signal and parks the framing
// signal at its idle level.
func NewStream(bus StreamBus, framing FramingLine) (*Stream, error) {
	if bus == nil || framing == nil {
		return nil, ErrNilBus
	}
	s := &Stream{bus: bus, framing: framing}
	s.framing.Release()
	return s, nil
}

// Start asserts the framing signal and begins an asynchronous equal-length
// transfer. tx and rx must stay valid and untouched by other owners until
// completion is observed. On a failed start the framing signal is restored to
// idle before returning; it is never left asserted behind an error.
func (s *Stream) Start(tx, rx []byte) error {
	if len(tx) == 0 || len(tx) != len(rx) {
		return ErrInvalidParam
	}
	s.framing.Assert()
	if err := s.bus.TransferAsync(tx, rx, func() {
		s.complete.Store(true)
	}); err != nil {
		s.framing.Release()
		return ErrStreamStart
	}
	return nil
}

// Stop aborts any in-flight transfer and restores the framing signal to idle.
// Idempotent.
func (s *Stream) Stop() error {
	err := s.bus.Abort()
	s.framing.Release()
	return err
}

// Complete reports whether the current transfer has finished. Callers must
// ClearComplete after observing true to arm the next detection.
func (s *Stream) Complete() bool { return s.complete.Load() }

func (s *Stream) ClearComplete() { s.complete.Store(false) }

// Wait polls the completion flag at poll intervals up to timeout. The wait is
// always bounded; there is no blocking completion primitive.
func (s *Stream) Wait(timeout, poll time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !s.complete.Load() {
		if time.Now().After(deadline) {
			return &TimeoutError{Timeout: timeout.Milliseconds(), Op: "stream transfer"}
		}
		time.Sleep(poll)
	}
	return nil
}
