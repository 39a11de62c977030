package sysprimscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidatePIDBoundary checks that every pid in {0} or above PIDMaxSafe
// is rejected with InvalidArgument before any platform call, including the
// two exact boundary values.
func TestValidatePIDBoundary(t *testing.T) {
	require.NoError(t, ValidatePID(1))
	require.NoError(t, ValidatePID(PIDMaxSafe))

	err := ValidatePID(0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidArgument, err.(*Error).Code)

	err = ValidatePID(PIDMaxSafe + 1)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidArgument, err.(*Error).Code)
	assert.Contains(t, err.Error(), "exceeds maximum safe value")
}

func TestValidatePGIDBoundary(t *testing.T) {
	require.NoError(t, ValidatePGID(1))
	require.Error(t, ValidatePGID(0))
	require.Error(t, ValidatePGID(PIDMaxSafe+1))
}

func TestValidatePIDsBatchFailsOnAnyInvalid(t *testing.T) {
	err := ValidatePIDs([]uint32{1, 2, 0, 3})
	require.Error(t, err)
}

func TestResolveSignalAcceptsNamesCaseInsensitivelyAndWithOrWithoutPrefix(t *testing.T) {
	for _, name := range []string{"SIGTERM", "sigterm", "TERM", "term"} {
		n, err := ResolveSignal(name)
		require.NoError(t, err, name)
		assert.Equal(t, 15, n, name)
	}
}

func TestResolveSignalUnknownName(t *testing.T) {
	_, err := ResolveSignal("NOTASIGNAL")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidArgument, err.(*Error).Code)
}

func TestResolveSignalInputAcceptsNumeric(t *testing.T) {
	n, err := ResolveSignalInput("9")
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}
