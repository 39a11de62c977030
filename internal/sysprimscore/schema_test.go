package sysprimscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strictFilterDecodeTarget struct {
	NameContains *string  `json:"name_contains"`
	CPUAbove     *float64 `json:"cpu_above"`
}

func TestDecodeStrictEmptyInputIsNoop(t *testing.T) {
	var dst strictFilterDecodeTarget
	require.NoError(t, DecodeStrict(nil, &dst))
}

func TestDecodeStrictAcceptsKnownFields(t *testing.T) {
	var dst strictFilterDecodeTarget
	err := DecodeStrict([]byte(`{"name_contains":"nginx"}`), &dst)
	require.NoError(t, err)
	require.NotNil(t, dst.NameContains)
	assert.Equal(t, "nginx", *dst.NameContains)
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	var dst strictFilterDecodeTarget
	err := DecodeStrict([]byte(`{"name_contains":"nginx","bogus_key":1}`), &dst)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidArgument, err.(*Error).Code)
}
