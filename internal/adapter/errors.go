// Error normalization for the CAT Control Container.
//
// Every failure in the protocol core maps deterministically onto one of the
// normalized codes below. The core never catches-and-suppresses and never
// retries: a failed open, write, read or decode is surfaced to the immediate
// caller carrying its code, and the presentation layer alone decides how to
// display it.
package adapter

import (
	"errors"
	"fmt"
)

// Normalized error codes for the control core.
var (
	// ErrConnection indicates the serial port could not be opened
	// (missing device, already claimed, permission denied).
	ErrConnection = errors.New("CONNECTION")

	// ErrNotConnected indicates an operation was attempted while the
	// link is in the Disconnected state.
	ErrNotConnected = errors.New("NOT_CONNECTED")

	// ErrIO indicates a write or read failure on an otherwise-open link.
	ErrIO = errors.New("IO")

	// ErrValue indicates malformed caller input: a bad hex string or an
	// out-of-range frequency.
	ErrValue = errors.New("INVALID_VALUE")

	// ErrProtocol indicates a response that cannot be decoded into the
	// expected semantic value.
	ErrProtocol = errors.New("PROTOCOL")
)

// CATError wraps a device or codec error with its normalized code and
// diagnostic details, preserving the original for operators.
type CATError struct {
	Code     error       // Normalized code
	Original error       // Underlying error
	Details  interface{} // Opaque diagnostic payload
}

func (e *CATError) Error() string {
	if e.Original == nil {
		return e.Code.Error()
	}
	return fmt.Sprintf("%v: %v", e.Code, e.Original)
}

func (e *CATError) Unwrap() error {
	return e.Code
}

// Wrap attaches a normalized code to an underlying error. A nil underlying
// error yields nil so call sites can wrap unconditionally.
func Wrap(code, original error) error {
	if original == nil {
		return nil
	}
	return &CATError{Code: code, Original: original}
}

// WrapWithDetails attaches a normalized code plus a diagnostic payload.
func WrapWithDetails(code, original error, details interface{}) error {
	if original == nil {
		return nil
	}
	return &CATError{Code: code, Original: original, Details: details}
}

// Code extracts the normalized code from an error. Errors outside the
// taxonomy are returned unchanged.
func Code(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConnection):
		return ErrConnection
	case errors.Is(err, ErrNotConnected):
		return ErrNotConnected
	case errors.Is(err, ErrIO):
		return ErrIO
	case errors.Is(err, ErrValue):
		return ErrValue
	case errors.Is(err, ErrProtocol):
		return ErrProtocol
	default:
		return err
	}
}
