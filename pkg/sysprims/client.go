// Package sysprims is the public, cgo-free Go API for the process-control
// engine implemented in internal/sysprimscore. It mirrors the function
// names and doc-comment style of the project's C-ABI bindings package so a
// caller moving between the two feels at home, but talks to the engine
// in-process: no JSON string marshaling across an FFI boundary, no
// thread-local error state to manage.
//
// # Replacing Shell-outs
//
// Prefer typed APIs over parsing process tool output:
//   - `ps eww -p <pid>`            -> [ProcessGetWithOptions] with [ProcessOptions.IncludeEnv]
//   - `ps -M -p <pid>`             -> [ProcessGetWithOptions] with [ProcessOptions.IncludeThreads]
//   - `lsof -p <pid>`              -> [ListFds]
//   - `kill -9 <pid>`              -> [Kill] with [SIGKILL]
//   - `kill` loops for process trees -> [KillDescendantsWithOptions] with a filter
package sysprims

import (
	"time"

	"github.com/coreproc/sysprims/internal/sysprimscore"
)

// Re-exported types so callers of this package never need to import the
// internal engine package directly.
type (
	ErrorCode              = sysprimscore.ErrorCode
	Error                  = sysprimscore.Error
	ProcessInfo            = sysprimscore.ProcessInfo
	ProcessSnapshot        = sysprimscore.ProcessSnapshot
	ProcessFilter          = sysprimscore.ProcessFilter
	ProcessOptions         = sysprimscore.ProcessOptions
	CpuMode                = sysprimscore.CpuMode
	FdInfo                 = sysprimscore.FdInfo
	FdFilter               = sysprimscore.FdFilter
	FdSnapshot             = sysprimscore.FdSnapshot
	Protocol               = sysprimscore.Protocol
	PortFilter             = sysprimscore.PortFilter
	PortBinding            = sysprimscore.PortBinding
	PortBindingsSnapshot   = sysprimscore.PortBindingsSnapshot
	WaitPidResult          = sysprimscore.WaitPidResult
	DescendantsLevel       = sysprimscore.DescendantsLevel
	DescendantsResult      = sysprimscore.DescendantsResult
	KillDescendantsFail    = sysprimscore.KillDescendantsFail
	KillDescendantsResult  = sysprimscore.KillDescendantsResult
	GroupingMode           = sysprimscore.GroupingMode
	SpawnInGroupConfig     = sysprimscore.SpawnInGroupConfig
	SpawnInGroupResult     = sysprimscore.SpawnInGroupResult
	TerminateTreeConfig    = sysprimscore.TerminateTreeConfig
	TerminateTreeResult    = sysprimscore.TerminateTreeResult
)

// Error codes, re-exported for type-asserting a returned [Error].
const (
	ErrOK                  = sysprimscore.ErrOK
	ErrInvalidArgument     = sysprimscore.ErrInvalidArgument
	ErrSpawnFailed         = sysprimscore.ErrSpawnFailed
	ErrTimeout             = sysprimscore.ErrTimeout
	ErrPermissionDenied    = sysprimscore.ErrPermissionDenied
	ErrNotFound            = sysprimscore.ErrNotFound
	ErrNotSupported        = sysprimscore.ErrNotSupported
	ErrGroupCreationFailed = sysprimscore.ErrGroupCreationFailed
	ErrSystem              = sysprimscore.ErrSystem
	ErrInternal            = sysprimscore.ErrInternal
)

const (
	SIGINT  = 2
	SIGKILL = 9
	SIGTERM = 15
)

const (
	CpuModeLifetime = sysprimscore.CpuModeLifetime
	CpuModeMonitor  = sysprimscore.CpuModeMonitor
)

const (
	ProtocolTCP = sysprimscore.ProtocolTCP
	ProtocolUDP = sysprimscore.ProtocolUDP
)

const (
	GroupByDefault = sysprimscore.GroupByDefault
	Foreground     = sysprimscore.Foreground
)

// Platform returns the current platform name ("linux", "macos", "windows").
func Platform() string {
	return sysprimscore.Current.Name()
}

// DecodeStrict decodes a JSON filter/config payload into dst, rejecting
// unknown fields. FFI callers use this for every filter and config
// payload crossing the C ABI boundary; a nil or empty payload is treated
// as "use defaults" and leaves dst untouched.
func DecodeStrict(data []byte, dst interface{}) error {
	return sysprimscore.DecodeStrict(data, dst)
}

// Kill sends a signal to a process.
//
// On Unix, this calls kill(pid, signal). On Windows, SIGTERM and SIGKILL
// are mapped to TerminateProcess and SIGINT to a console Ctrl+C event;
// other signals return [ErrNotSupported].
func Kill(pid uint32, signal int) error {
	return sysprimscore.Send(pid, signal)
}

// Terminate sends SIGTERM to a process. Convenience wrapper for
// Kill(pid, SIGTERM).
func Terminate(pid uint32) error {
	return sysprimscore.Terminate(pid)
}

// ForceKill sends SIGKILL to a process. Convenience wrapper for
// Kill(pid, SIGKILL).
func ForceKill(pid uint32) error {
	return sysprimscore.ForceKill(pid)
}

// KillGroup sends a signal to a process group. Returns [ErrNotSupported]
// on Windows, which has no concept of process groups.
func KillGroup(pgid uint32, signal int) error {
	return sysprimscore.SendGroup(pgid, signal)
}

// SignalResult pairs a pid with the outcome of signaling it in a batch
// call.
type SignalResult = sysprimscore.SignalResult

// KillBatch validates every pid before signaling any of them, then
// signals each independently, returning a per-pid outcome.
func KillBatch(pids []uint32, signal int) []SignalResult {
	return sysprimscore.SendBatch(pids, signal)
}

// ProcessList returns a snapshot of running processes, optionally
// filtered. Pass nil for filter to return all processes.
func ProcessList(filter *ProcessFilter) (*ProcessSnapshot, []string, error) {
	return ProcessListWithOptions(filter, nil)
}

// ProcessListWithOptions returns a snapshot of running processes,
// optionally filtered, with opt-in extended fields.
func ProcessListWithOptions(filter *ProcessFilter, opts *ProcessOptions) (*ProcessSnapshot, []string, error) {
	var o ProcessOptions
	if opts != nil {
		o = *opts
	}
	return sysprimscore.Snapshot(filter, o)
}

// ProcessGet returns information for a single process by pid.
func ProcessGet(pid uint32) (*ProcessInfo, error) {
	return ProcessGetWithOptions(pid, nil)
}

// ProcessGetWithOptions returns information for a single process by pid,
// with opt-in extended fields.
func ProcessGetWithOptions(pid uint32, opts *ProcessOptions) (*ProcessInfo, error) {
	var o ProcessOptions
	if opts != nil {
		o = *opts
	}
	return sysprimscore.GetProcess(pid, o)
}

// WaitPID waits for a pid to exit up to the provided timeout.
func WaitPID(pid uint32, timeout time.Duration) (*WaitPidResult, error) {
	return sysprimscore.WaitPID(pid, uint64(timeout/time.Millisecond))
}

// ListFds returns a snapshot of open file descriptors for the given pid.
// Returns [ErrNotSupported] on Windows.
func ListFds(pid uint32, filter *FdFilter) (*FdSnapshot, error) {
	return sysprimscore.ListFds(pid, filter)
}

// ListeningPorts returns a snapshot of listening ports, optionally
// filtered.
func ListeningPorts(filter *PortFilter) (*PortBindingsSnapshot, error) {
	return sysprimscore.ListeningPorts(filter)
}

// DescendantsOptions configures a descendants traversal beyond the
// root/max-levels/filter triple.
type DescendantsOptions struct {
	MaxLevels      *uint32
	Filter         *ProcessFilter
	CpuMode        CpuMode
	SampleDuration time.Duration
}

// Descendants returns the process subtree rooted at pid. maxLevels
// controls the traversal depth (1 = children only); pass 0 to traverse
// all levels.
func Descendants(pid uint32, maxLevels uint32, filter *ProcessFilter) (*DescendantsResult, error) {
	return DescendantsWithOptions(pid, &DescendantsOptions{MaxLevels: &maxLevels, Filter: filter})
}

// DescendantsWithOptions returns descendants using an optional CPU
// sampling mode for filter evaluation.
func DescendantsWithOptions(pid uint32, opts *DescendantsOptions) (*DescendantsResult, error) {
	var maxLevels uint32
	var filter *ProcessFilter
	cfg := sysprimscore.DescendantsConfig{}
	if opts != nil {
		if opts.MaxLevels != nil {
			maxLevels = *opts.MaxLevels
		}
		filter = opts.Filter
		cfg.CpuMode = opts.CpuMode
		cfg.SampleDurationMS = uint64(opts.SampleDuration / time.Millisecond)
	}
	return sysprimscore.Descendants(pid, maxLevels, filter, cfg)
}

// KillDescendantsOptions configures KillDescendantsWithOptions.
type KillDescendantsOptions struct {
	Signal         int
	MaxLevels      *uint32
	Filter         *ProcessFilter
	CpuMode        CpuMode
	SampleDuration time.Duration
	DryRun         bool
	Yes            bool
	Force          bool
}

// KillDescendants sends a signal to descendants of a process.
//
// Safety rules are always enforced unless Force is set: the caller's own
// pid, pid 1, and the caller's ancestry are excluded from the kill list.
// The result includes a SkippedSafety count.
func KillDescendants(pid uint32, signal int, maxLevels uint32, filter *ProcessFilter) (*KillDescendantsResult, error) {
	return KillDescendantsWithOptions(pid, &KillDescendantsOptions{
		Signal: signal, MaxLevels: &maxLevels, Filter: filter, Yes: true,
	})
}

// KillDescendantsWithOptions sends a signal to descendants using the full
// option set, including the dry-run-by-default-under-a-filter safety
// policy: pass Yes to actually send signals when Filter is set.
func KillDescendantsWithOptions(pid uint32, opts *KillDescendantsOptions) (*KillDescendantsResult, error) {
	o := sysprimscore.KillDescendantsOptions{RootPID: pid, Signal: SIGTERM}
	if opts != nil {
		if opts.Signal != 0 {
			o.Signal = opts.Signal
		}
		if opts.MaxLevels != nil {
			o.MaxLevels = *opts.MaxLevels
		}
		o.Filter = opts.Filter
		o.CpuMode = opts.CpuMode
		o.SampleMS = uint64(opts.SampleDuration / time.Millisecond)
		o.DryRun = opts.DryRun
		o.Yes = opts.Yes
		o.Force = opts.Force
	}
	return sysprimscore.KillDescendants(o)
}

// SpawnInGroup starts a process in a new process group (Unix) or Job
// Object (Windows).
func SpawnInGroup(cfg SpawnInGroupConfig, grouping GroupingMode) (*SpawnInGroupResult, error) {
	proc, err := sysprimscore.Current.SpawnInGroup(cfg, grouping)
	if err != nil {
		return nil, err
	}
	defer proc.Close()
	result := proc.Result
	return &result, nil
}

// DefaultTimeoutConfig returns sensible defaults for timeout execution:
// SIGTERM, 10s kill-after, GroupByDefault, PreserveStatus false.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Signal:         SIGTERM,
		KillAfter:      10 * time.Second,
		Grouping:       GroupByDefault,
		PreserveStatus: false,
	}
}

// TimeoutConfig configures the behavior of [RunWithTimeout].
type TimeoutConfig struct {
	Signal         int
	KillAfter      time.Duration
	Grouping       GroupingMode
	PreserveStatus bool
}

// TimeoutResult represents the outcome of a timeout execution.
type TimeoutResult = sysprimscore.TimeoutOutcome

// RunWithTimeout executes a command with a timeout. If the command
// doesn't complete within timeout, it is signaled, given config.KillAfter
// to exit gracefully, then force-killed.
//
// When using [GroupByDefault] (the default), the entire process tree is
// killed.
func RunWithTimeout(command string, args []string, timeout time.Duration, config TimeoutConfig) (*TimeoutResult, error) {
	return sysprimscore.RunWithTimeout(sysprimscore.TimeoutConfig{
		Command:        command,
		Args:           args,
		Deadline:       uint64(timeout / time.Millisecond),
		KillAfter:      uint64(config.KillAfter / time.Millisecond),
		Signal:         config.Signal,
		Grouping:       config.Grouping,
		PreserveStatus: config.PreserveStatus,
	})
}

// TerminateTree sends a graceful signal to pid and every descendant
// discovered at call time, waits, then escalates to KillSignal if any
// member is still alive.
func TerminateTree(pid uint32, config TerminateTreeConfig) (*TerminateTreeResult, error) {
	return sysprimscore.TerminateTree(pid, config)
}

// SelfPGID returns the current process's group ID. Returns
// [ErrNotSupported] on Windows.
func SelfPGID() (uint32, error) {
	return sysprimscore.Current.SelfPGID()
}

// SelfSID returns the current process's session ID. Returns
// [ErrNotSupported] on Windows.
func SelfSID() (uint32, error) {
	return sysprimscore.Current.SelfSID()
}
