package golink

import (
	"errors"
	"fmt"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	if _, ok := err.(unrecoverableError); ok {
		return false
	}
	return true
}

var (
	ErrInvalidParam   = errors.New("invalid parameter")
	ErrTransport      = errors.New("transport failure")
	ErrNotInitialized = errors.New("device not initialized")
	ErrVerify         = errors.New("verification failed")
	ErrNilBus         = errors.New("bus is nil")
	ErrStreamStart    = errors.New("stream start failed")
)

// IdentityError reports a wrong device behind a working bus. Init wraps it
// Unrecoverable so InitWithRetry gives up instead of retrying against the
// wrong hardware.
type IdentityError struct {
	Got, Want uint8
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("device identity mismatch: got 0x%02X, want 0x%02X", e.Got, e.Want)
}

type TimeoutError struct {
	Timeout int64
	Op      string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout (%dms)", e.Op, e.Timeout)
}

// VerifyError pinpoints a failed read-back during the scratch register test.
type VerifyError struct {
	Reg     Reg
	Pattern uint8
	Got     uint8
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("scratch verify failed at reg 0x%02X: wrote 0x%02X, read 0x%02X", uint8(e.Reg), e.Pattern, e.Got)
}

func (e *VerifyError) Unwrap() error { return ErrVerify }
