package types

import (
	"context"
	"errors"
	"fmt"
)

// MeasureError is the run-terminating error taxonomy. Session report
// failures and probe drops are absorbed into the statistics and never
// surface as one of these.
type MeasureError struct {
	Code    string
	Message string
	Cause   error
	Target  string
}

func (e *MeasureError) Error() string {
	msg := e.Message
	if e.Target != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Target)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *MeasureError) Unwrap() error { return e.Cause }

const (
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeLaunchFailure = "LAUNCH_FAILURE"
	ErrCodeProbeExited   = "PROBE_EXITED"
	ErrCodeBusy          = "BUSY"
)

func ErrInvalidConfig(msg string, cause error) *MeasureError {
	return &MeasureError{
		Code:    ErrCodeInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

func ErrLaunchFailure(target string, cause error) *MeasureError {
	return &MeasureError{
		Code:    ErrCodeLaunchFailure,
		Message: "subprocess failed to start",
		Cause:   cause,
		Target:  target,
	}
}

func ErrProbeExited(target string, cause error) *MeasureError {
	return &MeasureError{
		Code:    ErrCodeProbeExited,
		Message: "probe subprocess exited early",
		Cause:   cause,
		Target:  target,
	}
}

func ErrBusy() *MeasureError {
	return &MeasureError{
		Code:    ErrCodeBusy,
		Message: "a measurement is already running",
	}
}

func IsCode(err error, code string) bool {
	var me *MeasureError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

func IsInvalidConfig(err error) bool { return IsCode(err, ErrCodeInvalidConfig) }

func IsLaunchFailure(err error) bool {
	return IsCode(err, ErrCodeLaunchFailure) || IsCode(err, ErrCodeProbeExited)
}

func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
