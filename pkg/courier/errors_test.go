package courier_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wasil/courierbridge/pkg/courier"
)

func TestAPIError_Error(t *testing.T) {
	err := courier.NewAPIError("smsa", "HTTP_400", "Invalid passKey")
	assert.Equal(t, "smsa error (HTTP_400): Invalid passKey", err.Error())
}

func TestAPIError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := courier.NewAPIError("aramex", "TRANSPORT", "request failed").WithCause(cause)
	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := courier.NewAPIError("aramex", "TRANSPORT", "request failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestAPIError_Is(t *testing.T) {
	err1 := courier.NewAPIError("smsa", "HTTP_404", "not found")
	err2 := courier.NewAPIError("aramex", "HTTP_404", "different message")
	assert.True(t, errors.Is(err1, err2))
}

func TestAPIError_IsNot(t *testing.T) {
	err1 := courier.NewAPIError("smsa", "HTTP_404", "not found")
	err2 := courier.NewAPIError("smsa", "HTTP_500", "server error")
	assert.False(t, errors.Is(err1, err2))
}

func TestAPIError_WithStatusCode(t *testing.T) {
	err := courier.NewAPIError("smsa", "HTTP_401", "unauthorized").WithStatusCode(401)
	assert.Equal(t, 401, err.StatusCode)
}

func TestIsAPIError(t *testing.T) {
	apiErr := courier.NewAPIError("smsa", "HTTP_502", "bad gateway")
	wrapped := fmt.Errorf("tracking refresh: %w", apiErr)

	assert.True(t, courier.IsAPIError(apiErr))
	assert.True(t, courier.IsAPIError(wrapped))
	assert.False(t, courier.IsAPIError(errors.New("plain error")))
	assert.False(t, courier.IsAPIError(courier.ErrCourierNotFound))
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrUnsupportedCourier", courier.ErrUnsupportedCourier},
		{"ErrCourierNotFound", courier.ErrCourierNotFound},
		{"ErrCancellationNotSupported", courier.ErrCancellationNotSupported},
		{"ErrShipmentNotFound", courier.ErrShipmentNotFound},
		{"ErrWaybillMissing", courier.ErrWaybillMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
