package sysprimscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string   { return &s }
func u64Ptr(v uint64) *uint64   { return &v }
func f64Ptr(v float64) *float64 { return &v }

func sampleProcess() ProcessInfo {
	user := "nginx"
	elapsed := uint64(120)
	return ProcessInfo{
		PID:            42,
		PPID:           1,
		Name:           "nginx-worker",
		User:           &user,
		CPUPercent:     12.5,
		MemoryKB:       4096,
		ElapsedSeconds: &elapsed,
	}
}

func TestMatchesProcessFilterNilMatchesEverything(t *testing.T) {
	assert.True(t, matchesProcessFilter(sampleProcess(), nil))
}

func TestMatchesProcessFilterNameContains(t *testing.T) {
	f := &ProcessFilter{NameContains: strPtr("nginx")}
	assert.True(t, matchesProcessFilter(sampleProcess(), f))

	f = &ProcessFilter{NameContains: strPtr("apache")}
	assert.False(t, matchesProcessFilter(sampleProcess(), f))
}

func TestMatchesProcessFilterNameContainsIsCaseInsensitive(t *testing.T) {
	f := &ProcessFilter{NameContains: strPtr("NGINX")}
	assert.True(t, matchesProcessFilter(sampleProcess(), f))
}

func TestMatchesProcessFilterNameEquals(t *testing.T) {
	f := &ProcessFilter{NameEquals: strPtr("nginx-worker")}
	assert.True(t, matchesProcessFilter(sampleProcess(), f))

	f = &ProcessFilter{NameEquals: strPtr("nginx")}
	assert.False(t, matchesProcessFilter(sampleProcess(), f))
}

func TestMatchesProcessFilterUserEqualsRejectsMissingUser(t *testing.T) {
	p := sampleProcess()
	p.User = nil
	f := &ProcessFilter{UserEquals: strPtr("nginx")}
	assert.False(t, matchesProcessFilter(p, f))
}

func TestMatchesProcessFilterPIDIn(t *testing.T) {
	f := &ProcessFilter{PIDIn: []uint32{1, 2, 42}}
	assert.True(t, matchesProcessFilter(sampleProcess(), f))

	f = &ProcessFilter{PIDIn: []uint32{1, 2}}
	assert.False(t, matchesProcessFilter(sampleProcess(), f))
}

func TestMatchesProcessFilterCPUAboveIsStrict(t *testing.T) {
	f := &ProcessFilter{CPUAbove: f64Ptr(12.5)}
	assert.False(t, matchesProcessFilter(sampleProcess(), f), "equal to threshold must not match")

	f = &ProcessFilter{CPUAbove: f64Ptr(12.4)}
	assert.True(t, matchesProcessFilter(sampleProcess(), f))
}

func TestMatchesProcessFilterRunningForAtLeastSecs(t *testing.T) {
	f := &ProcessFilter{RunningForAtLeastSecs: u64Ptr(120)}
	assert.True(t, matchesProcessFilter(sampleProcess(), f))

	f = &ProcessFilter{RunningForAtLeastSecs: u64Ptr(121)}
	assert.False(t, matchesProcessFilter(sampleProcess(), f))
}

func TestMatchesProcessFilterConjunction(t *testing.T) {
	f := &ProcessFilter{
		NameContains: strPtr("nginx"),
		CPUAbove:     f64Ptr(100), // fails even though name matches
	}
	assert.False(t, matchesProcessFilter(sampleProcess(), f))
}

func TestComputeMonitorCPUDerivesIntervalRate(t *testing.T) {
	a := ProcessInfo{CPUPercent: 10, ElapsedSeconds: u64Ptr(10)}
	b := ProcessInfo{CPUPercent: 15, ElapsedSeconds: u64Ptr(12)}
	// a: 1.0 cpu-second consumed by t=10; b: 1.8 cpu-seconds by t=12.
	// delta = 0.8 cpu-seconds over 2 wall seconds = 40%.
	got := computeMonitorCPU(a, b)
	assert.InDelta(t, 40.0, got, 0.01)
}

func TestComputeMonitorCPUFallsBackWithoutElapsedSamples(t *testing.T) {
	a := ProcessInfo{CPUPercent: 10}
	b := ProcessInfo{CPUPercent: 15}
	assert.Equal(t, 15.0, computeMonitorCPU(a, b))
}

func TestComputeMonitorCPUClampsNegativeDelta(t *testing.T) {
	a := ProcessInfo{CPUPercent: 50, ElapsedSeconds: u64Ptr(100)}
	b := ProcessInfo{CPUPercent: 1, ElapsedSeconds: u64Ptr(101)}
	assert.Equal(t, 0.0, computeMonitorCPU(a, b))
}
