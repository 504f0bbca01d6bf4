package capture

import "errors"

var (
	// ErrSourceUnavailable wraps every open and read failure. It never escapes
	// GetFrame; it is passed to state change callbacks and logged.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEmptyFrame is reported when a backend returns no usable pixels.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrReleased is returned by a second Release.
	ErrReleased = errors.New("source released")
)
