package courier

import (
	"errors"
	"fmt"
)

// APIError represents an error reported by a courier provider: an error
// flag in the response body, or a non-success HTTP status after the
// transport retry budget is exhausted.
type APIError struct {
	Courier    string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Courier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Courier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for APIError.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewAPIError creates a new APIError.
func NewAPIError(courierCode, code, message string) *APIError {
	return &APIError{
		Courier: courierCode,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// Sentinel errors for courier resolution and capability gaps.
var (
	// ErrUnsupportedCourier indicates the courier code has no registered
	// adapter.
	ErrUnsupportedCourier = errors.New("unsupported courier")

	// ErrCourierNotFound indicates the courier code does not resolve to an
	// active courier record.
	ErrCourierNotFound = errors.New("courier not found or inactive")

	// ErrCancellationNotSupported indicates the courier has no
	// cancellation capability. Callers branch on this distinctly from
	// provider API failures.
	ErrCancellationNotSupported = errors.New("courier does not support cancellation")

	// ErrShipmentNotFound indicates the shipment id was not found.
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrWaybillMissing indicates the shipment has no waybill yet, so
	// tracking/label/cancel operations cannot proceed.
	ErrWaybillMissing = errors.New("shipment has no waybill")
)

// IsAPIError reports whether err carries a provider API failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
