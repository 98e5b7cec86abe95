package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// Error types for the version exchange.
// They tell the caller whether the connection can be reused.

// ParseError represents a malformed response or version text.
//
// Common causes:
//   - Reply line is not "VERSION <text>"
//   - CLIENT_ERROR / SERVER_ERROR / ERROR instead of a version
//   - Binary header with wrong magic or opcode
//   - Version text without three numeric components
//
// Connection handling: CLOSE connection, the stream position is uncertain
type ParseError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "parse error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors indicate corrupted state
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// RangeError is returned when a version component does not fit in a uint8.
// The response itself was framed correctly.
//
// Connection handling: Connection can be REUSED
type RangeError struct {
	Component string // "major", "minor" or "micro"
	Value     string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("version %s component %q out of range", e.Component, e.Value)
}

// Unwrap returns strconv.ErrRange so callers can use errors.Is.
func (e *RangeError) Unwrap() error {
	return strconv.ErrRange
}

// ShouldCloseConnection returns false - the frame was read completely
func (e *RangeError) ShouldCloseConnection() bool {
	return false
}

// StatusError is a binary response carrying a non-success status.
//
// Connection handling: Connection can be REUSED
type StatusError struct {
	Status uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("binary response status 0x%04x (%s)", e.Status, StatusText(e.Status))
}

// ShouldCloseConnection returns false - the frame was read completely
func (e *StatusError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps underlying I/O errors from send/receive.
//
// Connection handling: Connection is already broken, CLOSE and potentially RECONNECT
type ConnectionError struct {
	Op  string // Operation that failed (write, read, acquire, ...)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all protocol error types.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
// Unknown error types are treated conservatively and close the connection.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// StatusText returns a short name for a binary status code.
func StatusText(status uint16) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusKeyNotFound:
		return "key not found"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusNotSupported:
		return "not supported"
	case StatusInternalError:
		return "internal error"
	case StatusBusy:
		return "busy"
	case StatusTemporaryFailed:
		return "temporary failure"
	default:
		return "unknown status"
	}
}
