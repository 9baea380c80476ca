package control

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"

	"github.com/muurk/wemolink/internal/soap"
)

// ErrorType categorizes a device communication failure.
type ErrorType int

const (
	// ErrTypeConnection indicates a transport failure (refused,
	// unreachable, unroutable).
	ErrTypeConnection ErrorType = iota
	// ErrTypeTimeout indicates an attempt exceeded its deadline.
	ErrTypeTimeout
	// ErrTypeInvalidEnvelope indicates malformed or structurally
	// unexpected response XML.
	ErrTypeInvalidEnvelope
	// ErrTypeProtocolFault indicates the device returned a structured
	// fault with an error status.
	ErrTypeProtocolFault
	// ErrTypeHTTP indicates a non-success status without a parseable
	// fault.
	ErrTypeHTTP
	// ErrTypeOperationFailed indicates every retry of a control action
	// was exhausted.
	ErrTypeOperationFailed
	// ErrTypeValidation indicates invalid input rejected before any work.
	ErrTypeValidation
	// ErrTypeUnknown indicates an unclassified error.
	ErrTypeUnknown
)

// String returns a human-readable name for the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnection:
		return "Connection Failed"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeInvalidEnvelope:
		return "Invalid Envelope"
	case ErrTypeProtocolFault:
		return "Protocol Fault"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeOperationFailed:
		return "Operation Failed"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError is an error from talking to a device.
type DeviceError struct {
	Type       ErrorType
	Message    string
	StatusCode int    // HTTP status, when applicable
	DeviceID   string // device the call targeted, when known
	Action     string // SOAP action, when applicable
	Fault      *soap.Fault
	Err        error // underlying cause
	Retryable  bool
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Action != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Type, e.Action, e.Message)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyTransportError maps a transport error to the right typed error.
func classifyTransportError(err error) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:      ErrTypeTimeout,
			Message:   "request timed out",
			Err:       err,
			Retryable: true,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &DeviceError{
				Type:      ErrTypeTimeout,
				Message:   "request timed out",
				Err:       err,
				Retryable: true,
			}
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:      ErrTypeConnection,
				Message:   "device refused connection",
				Err:       err,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{
				Type:      ErrTypeConnection,
				Message:   "host unreachable",
				Err:       err,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:      ErrTypeConnection,
				Message:   "network unreachable",
				Err:       err,
				Retryable: true,
			}
		}
	}

	return &DeviceError{
		Type:      ErrTypeConnection,
		Message:   "transport error",
		Err:       err,
		Retryable: true,
	}
}

// newEnvelopeError wraps a soap parse failure.
func newEnvelopeError(action string, err error) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeInvalidEnvelope,
		Message:   err.Error(),
		Action:    action,
		Err:       err,
		Retryable: false,
	}
}

// newFaultError wraps a structured device fault.
func newFaultError(action string, status int, fault *soap.Fault) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeProtocolFault,
		Message:    fault.String(),
		StatusCode: status,
		Action:     action,
		Fault:      fault,
		Retryable:  false,
	}
}

// newHTTPError reports a non-success status without a recognizable fault.
func newHTTPError(action string, status int) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status %d", status),
		StatusCode: status,
		Action:     action,
		Retryable:  status >= 500,
	}
}

// newOperationFailed reports an action whose retry budget is exhausted.
func newOperationFailed(deviceID, action string, cause error) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeOperationFailed,
		Message:  fmt.Sprintf("all attempts failed for device %s", deviceID),
		DeviceID: deviceID,
		Action:   action,
		Err:      cause,
	}
}

// hasType walks the error chain looking for a DeviceError of the given type.
// Exhausted-retry errors wrap their last cause, so a plain errors.As would
// stop at the outer wrapper.
func hasType(err error, t ErrorType) bool {
	for err != nil {
		var devErr *DeviceError
		if !errors.As(err, &devErr) {
			return false
		}
		if devErr.Type == t {
			return true
		}
		err = devErr.Err
	}
	return false
}

// IsOperationFailed reports whether err is an exhausted-retries failure.
func IsOperationFailed(err error) bool {
	return hasType(err, ErrTypeOperationFailed)
}

// IsTimeout reports whether err is, or was caused by, a timeout.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsProtocolFault reports whether err carries a structured device fault.
func IsProtocolFault(err error) bool {
	return hasType(err, ErrTypeProtocolFault)
}
