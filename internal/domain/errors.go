package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyID      = errors.New("ID cannot be empty")

	// Directory errors
	ErrNotFound             = errors.New("resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrDirectoryUnavailable = errors.New("user directory unavailable")

	// Connection errors
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("connection already open")
	ErrTransportFault   = errors.New("transport fault")

	// Stream errors
	ErrMalformedFrame = errors.New("malformed frame")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// IsInputRejected returns true if the error is a local validation rejection
// that never reached the network.
func IsInputRejected(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrEmptyID)
}

// IsRecoverable returns true if the user can retry the same action after the
// connection is restored. Input stays pending for these.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrTransportFault)
}

// IsNotFound returns true if the error represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
