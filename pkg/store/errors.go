package store

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a storage engine failure.
type ErrorCode int

const (
	// CodeNotFound means no table entry matches the requested name.
	CodeNotFound ErrorCode = iota + 1

	// CodeSourceUnavailable means an upload source could not be stat'ed or read.
	CodeSourceUnavailable

	// CodeWriteFailed means a device write failed or came up short. The
	// device may hold a partially written blob or table.
	CodeWriteFailed

	// CodeReadFailed means a device read failed or came up short.
	CodeReadFailed

	// CodeTableFull means every metadata slot is in use.
	CodeTableFull

	// CodeInvalidName means the name is empty or longer than MaxNameLen.
	CodeInvalidName

	// CodeDevice means the device could not be opened or locked.
	CodeDevice

	// CodeNoSpace means the blob would run past the end of the device.
	CodeNoSpace
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeNotFound:
		return "NotFound"
	case CodeSourceUnavailable:
		return "SourceUnavailable"
	case CodeWriteFailed:
		return "WriteFailed"
	case CodeReadFailed:
		return "ReadFailed"
	case CodeTableFull:
		return "TableFull"
	case CodeInvalidName:
		return "InvalidName"
	case CodeDevice:
		return "DeviceError"
	case CodeNoSpace:
		return "NoSpace"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// StoreError is returned by every Store operation.
type StoreError struct {
	Code    ErrorCode
	Message string
	Name    string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Name != "" {
		msg += fmt.Sprintf(" (file: %s)", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches any *StoreError carrying the same code, so callers can write
// errors.Is(err, store.ErrNotFound).
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &StoreError{Code: CodeNotFound, Message: "file not found"}
	ErrSourceUnavailable = &StoreError{Code: CodeSourceUnavailable, Message: "source unavailable"}
	ErrWriteFailed       = &StoreError{Code: CodeWriteFailed, Message: "write failed"}
	ErrReadFailed        = &StoreError{Code: CodeReadFailed, Message: "read failed"}
	ErrTableFull         = &StoreError{Code: CodeTableFull, Message: "metadata table full"}
	ErrInvalidName       = &StoreError{Code: CodeInvalidName, Message: "invalid file name"}
	ErrDevice            = &StoreError{Code: CodeDevice, Message: "device unavailable"}
	ErrNoSpace           = &StoreError{Code: CodeNoSpace, Message: "no space left on device"}
)

// CodeOf extracts the ErrorCode from err, or 0 if err is not a StoreError.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func newNotFoundError(name string) *StoreError {
	return &StoreError{Code: CodeNotFound, Message: "file not found", Name: name}
}

func newSourceError(name string, err error) *StoreError {
	return &StoreError{Code: CodeSourceUnavailable, Message: "cannot read source", Name: name, Err: err}
}

func newWriteError(name, what string, err error) *StoreError {
	return &StoreError{Code: CodeWriteFailed, Message: "failed to write " + what, Name: name, Err: err}
}

func newReadError(name, what string, err error) *StoreError {
	return &StoreError{Code: CodeReadFailed, Message: "failed to read " + what, Name: name, Err: err}
}

func newDeviceError(err error) *StoreError {
	return &StoreError{Code: CodeDevice, Message: "device unavailable", Err: err}
}
