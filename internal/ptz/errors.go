package ptz

import (
	"errors"
	"fmt"
)

// Dispatch failures. Use errors.Is to classify a Result's error.
var (
	ErrMalformedCommand  = errors.New("malformed command")
	ErrOutOfRange        = errors.New("value out of range")
	ErrTargetNotSet      = errors.New("device target not set")
	ErrDeviceUnreachable = errors.New("device unreachable")
	ErrCommandRejected   = errors.New("command rejected by device")
)

// Error codes reported to API clients.
const (
	ErrCodeMalformed   = "MALFORMED_COMMAND"
	ErrCodeOutOfRange  = "OUT_OF_RANGE"
	ErrCodeNoTarget    = "TARGET_NOT_SET"
	ErrCodeUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeRejected    = "COMMAND_REJECTED"
	ErrCodeInternal    = "INTERNAL"
)

// CommandError is a coded dispatch failure.
type CommandError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

func malformed(format string, args ...any) *CommandError {
	return &CommandError{Code: ErrCodeMalformed, Message: fmt.Sprintf(format, args...), Cause: ErrMalformedCommand}
}

func outOfRange(format string, args ...any) *CommandError {
	return &CommandError{Code: ErrCodeOutOfRange, Message: fmt.Sprintf(format, args...), Cause: ErrOutOfRange}
}

// Code classifies err into one of the ErrCode constants.
func Code(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch {
	case errors.Is(err, ErrMalformedCommand):
		return ErrCodeMalformed
	case errors.Is(err, ErrOutOfRange):
		return ErrCodeOutOfRange
	case errors.Is(err, ErrTargetNotSet):
		return ErrCodeNoTarget
	case errors.Is(err, ErrDeviceUnreachable):
		return ErrCodeUnreachable
	case errors.Is(err, ErrCommandRejected):
		return ErrCodeRejected
	default:
		return ErrCodeInternal
	}
}
