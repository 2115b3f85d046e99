package nrgkick

import "errors"

// ErrNotConfigured is returned when no device address is available. This is
// a terminal configuration error and is never retried.
var ErrNotConfigured = errors.New("NRGKick device address not configured")

// DeviceError is a structured error reported by the device itself. The API
// signals it with a "message" field in the response body, even on HTTP 200.
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return "device error: " + e.Message
}

// IsDeviceError reports whether err carries a device-side error message.
func IsDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}
