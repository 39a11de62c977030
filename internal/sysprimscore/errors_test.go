package sysprimscore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeStringKnownValues(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrOK:                  "OK",
		ErrInvalidArgument:     "InvalidArgument",
		ErrSpawnFailed:         "SpawnFailed",
		ErrTimeout:             "Timeout",
		ErrPermissionDenied:    "PermissionDenied",
		ErrNotFound:            "NotFound",
		ErrNotSupported:        "NotSupported",
		ErrGroupCreationFailed: "GroupCreationFailed",
		ErrSystem:              "System",
		ErrInternal:            "Internal",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.String())
	}
	assert.Equal(t, "Unknown", ErrorCode(42).String())
}

func TestNewErrorFormatsMessage(t *testing.T) {
	err := NewError(ErrNotFound, "process %d not found", 1234)
	assert.Equal(t, ErrNotFound, err.Code)
	assert.Equal(t, "process 1234 not found", err.Error())
}

func TestErrorFallsBackToCodeNameWhenMessageEmpty(t *testing.T) {
	err := &Error{Code: ErrTimeout}
	assert.Equal(t, "Timeout", err.Error())
}

func TestAsErrorPassesThroughOwnType(t *testing.T) {
	original := NewError(ErrPermissionDenied, "nope")
	assert.Same(t, original, AsError(original))
}

func TestAsErrorWrapsForeignErrors(t *testing.T) {
	wrapped := AsError(errors.New("boom"))
	assert.Equal(t, ErrSystem, wrapped.Code)
	assert.Equal(t, "boom", wrapped.Message)
}

func TestAsErrorNil(t *testing.T) {
	assert.Nil(t, AsError(nil))
}
