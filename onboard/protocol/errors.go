package protocol

import "fmt"

// Reason classifies why a line could not be decoded.
type Reason uint8

const (
	UnknownActuator Reason = iota + 1
	UnknownAction
	InvalidMagnitude
	TrailingInput
	LineTooLong
)

func (r Reason) String() string {
	switch r {
	case UnknownActuator:
		return "unknown actuator"
	case UnknownAction:
		return "unknown action"
	case InvalidMagnitude:
		return "invalid magnitude"
	case TrailingInput:
		return "trailing input"
	case LineTooLong:
		return "line too long"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// DecodeError is returned for a malformed line. It is local to the line:
// the session drops the line and keeps reading.
type DecodeError struct {
	Reason Reason
	Token  string
}

func (err *DecodeError) Error() string {
	if err.Token == "" {
		return err.Reason.String()
	}
	return fmt.Sprintf("%s %q", err.Reason, err.Token)
}

// Is matches any DecodeError with the same reason, so the sentinels below
// work with errors.Is.
func (err *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Reason == err.Reason
}

var (
	ErrUnknownActuator  = &DecodeError{Reason: UnknownActuator}
	ErrUnknownAction    = &DecodeError{Reason: UnknownAction}
	ErrInvalidMagnitude = &DecodeError{Reason: InvalidMagnitude}
	ErrTrailingInput    = &DecodeError{Reason: TrailingInput}
	ErrLineTooLong      = &DecodeError{Reason: LineTooLong}
)
