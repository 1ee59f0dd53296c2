package serialbridge

import "errors"

var (
	// ErrPortUnavailable means the device is missing, busy or not accessible.
	ErrPortUnavailable = errors.New("serial port unavailable")
	// ErrConfiguration means the port parameters are invalid or rejected by the driver.
	ErrConfiguration = errors.New("serial port configuration error")
	// ErrDecode means a line was not valid UTF-8. The line is skipped.
	ErrDecode = errors.New("line is not valid utf-8")
	// ErrLineTooLong means a line exceeded the reader's limit and was discarded.
	ErrLineTooLong = errors.New("line too long")
	// ErrIO means the connection broke while reading.
	ErrIO = errors.New("serial i/o error")
)

// skippable reports whether err only invalidates the current line.
func skippable(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrLineTooLong)
}
