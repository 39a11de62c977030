// Package sysprimscore implements the sysprims process-control engine:
// signal dispatch, process inspection, timeout/tree-kill and the
// kill-descendants policy. It is cgo-free; the FFI surface in ffi/ and the
// CLI in cmd/sysprims/ are both thin callers of this package.
package sysprimscore

import "fmt"

// ErrorCode identifies the taxonomy of failures the engine can report.
// Values are stable and mirror the FFI error codes documented in the
// sysprims C header.
type ErrorCode int32

const (
	ErrOK                  ErrorCode = 0
	ErrInvalidArgument     ErrorCode = 1
	ErrSpawnFailed         ErrorCode = 2
	ErrTimeout             ErrorCode = 3
	ErrPermissionDenied    ErrorCode = 4
	ErrNotFound            ErrorCode = 5
	ErrNotSupported        ErrorCode = 6
	ErrGroupCreationFailed ErrorCode = 7
	ErrSystem              ErrorCode = 8
	ErrInternal            ErrorCode = 99
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrOK:
		return "OK"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrSpawnFailed:
		return "SpawnFailed"
	case ErrTimeout:
		return "Timeout"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrNotFound:
		return "NotFound"
	case ErrNotSupported:
		return "NotSupported"
	case ErrGroupCreationFailed:
		return "GroupCreationFailed"
	case ErrSystem:
		return "System"
	case ErrInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the single error currency of the engine: a tagged code plus a
// detailed message. The FFI layer reads Code for the numeric return and
// Message for the thread-local last-error string.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err into a *Error, or wraps it as ErrSystem if it isn't
// already one of ours.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return &Error{Code: ErrSystem, Message: err.Error()}
}
