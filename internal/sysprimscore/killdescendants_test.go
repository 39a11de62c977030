package sysprimscore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtectedPIDsForceReturnsEmptySet(t *testing.T) {
	protected := protectedPIDs(true)
	assert.Empty(t, protected)
}

func TestProtectedPIDsAlwaysIncludesSelfAndInit(t *testing.T) {
	protected := protectedPIDs(false)
	_, hasSelf := protected[uint32(os.Getpid())]
	_, hasInit := protected[1]
	assert.True(t, hasSelf)
	assert.True(t, hasInit)
}

func TestKillDescendantsRejectsInvalidRootPID(t *testing.T) {
	_, err := KillDescendants(KillDescendantsOptions{RootPID: 0, Signal: 15})
	if err == nil {
		t.Fatal("expected an error for root pid 0")
	}
	assert.Equal(t, ErrInvalidArgument, err.(*Error).Code)
}

// TestKillDescendantsFilteredWithoutYesDefaultsToDryRun checks that a
// filtered selection is previewed, never signaled, unless the caller
// explicitly opts in with Yes.
func TestKillDescendantsFilteredWithoutYesDefaultsToDryRun(t *testing.T) {
	self := uint32(os.Getpid())
	result, err := KillDescendants(KillDescendantsOptions{
		RootPID: self,
		Signal:  15,
		Filter:  &ProcessFilter{NameContains: strPtr("definitely-not-a-real-process-name")},
	})
	if err != nil {
		t.Skipf("descendant enumeration unavailable in this environment: %v", err)
	}
	assert.True(t, result.DryRun)
	assert.Nil(t, result.Succeeded)
}

// TestKillDescendantsForceIncludesRootPID: the root pid is excluded unless
// Force is set. Descendants never reports rootPID itself among its Levels,
// so root only ever comes from an explicit append in KillDescendants.
// DryRun keeps this from actually signaling the test process.
func TestKillDescendantsForceIncludesRootPID(t *testing.T) {
	self := uint32(os.Getpid())
	result, err := KillDescendants(KillDescendantsOptions{
		RootPID: self,
		Signal:  15,
		Force:   true,
		DryRun:  true,
	})
	if err != nil {
		t.Skipf("descendant enumeration unavailable in this environment: %v", err)
	}
	assert.Contains(t, result.Targets, self)
}

// TestKillDescendantsWithoutForceExcludesRootPID confirms the default
// (non-forced) behavior never targets the root pid.
func TestKillDescendantsWithoutForceExcludesRootPID(t *testing.T) {
	self := uint32(os.Getpid())
	result, err := KillDescendants(KillDescendantsOptions{
		RootPID: self,
		Signal:  15,
		DryRun:  true,
	})
	if err != nil {
		t.Skipf("descendant enumeration unavailable in this environment: %v", err)
	}
	assert.NotContains(t, result.Targets, self)
}
