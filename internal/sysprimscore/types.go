package sysprimscore

// Schema URIs. Every schema-tagged structure in this package carries one of
// these as its SchemaID field. Bindings may route to a version-specific
// parser based on it.
const (
	SchemaProcessSnapshot       = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/process-snapshot.schema.json"
	SchemaDescendantsResult     = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/descendants-result.schema.json"
	SchemaKillDescendantsResult = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/kill-descendants-result.schema.json"
	SchemaFdSnapshot            = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/fd-snapshot.schema.json"
	SchemaPortBindingsSnapshot  = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/port-bindings-snapshot.schema.json"
	SchemaWaitPidResult         = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/wait-pid-result.schema.json"
	SchemaSpawnInGroupResult    = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/spawn-in-group-result.schema.json"
	SchemaTimeoutOutcome        = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/timeout-outcome.schema.json"
	SchemaTerminateTreeResult   = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/terminate-tree-result.schema.json"
)

// ProcessState enumerates the reported process lifecycle states.
type ProcessState string

const (
	StateRunning  ProcessState = "running"
	StateSleeping ProcessState = "sleeping"
	StateStopped  ProcessState = "stopped"
	StateZombie   ProcessState = "zombie"
	StateUnknown  ProcessState = "unknown"
)

// Reliability describes whether the tree-kill isolation mechanism
// (process group / Job Object) was established.
type Reliability string

const (
	ReliabilityGuaranteed Reliability = "guaranteed"
	ReliabilityBestEffort Reliability = "best_effort"
)

// ProcessInfo is the identity and state snapshot of a single process.
// Produced on demand, never mutated; the caller owns the returned copy.
type ProcessInfo struct {
	PID             uint32            `json:"pid"`
	PPID            uint32            `json:"ppid"`
	Name            string            `json:"name"`
	User            *string           `json:"user,omitempty"`
	CPUPercent      float64           `json:"cpu_percent"`
	MemoryKB        uint64            `json:"memory_kb"`
	ElapsedSeconds  *uint64           `json:"elapsed_seconds,omitempty"`
	StartTimeUnixMS *uint64           `json:"start_time_unix_ms,omitempty"`
	ExePath         *string           `json:"exe_path,omitempty"`
	State           *ProcessState     `json:"state,omitempty"`
	Cmdline         []string          `json:"cmdline,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	ThreadCount     *uint32           `json:"thread_count,omitempty"`
}

// ProcessSnapshot is a point-in-time listing of processes.
type ProcessSnapshot struct {
	SchemaID  string        `json:"schema_id"`
	Timestamp string        `json:"timestamp"`
	Processes []ProcessInfo `json:"processes"`
}

// ProcessFilter is a conjunction of optional predicates. Unknown keys in
// the JSON encoding are rejected by DecodeStrict, never silently ignored.
type ProcessFilter struct {
	NameContains          *string  `json:"name_contains,omitempty"`
	NameEquals            *string  `json:"name_equals,omitempty"`
	UserEquals            *string  `json:"user_equals,omitempty"`
	PIDIn                 []uint32 `json:"pid_in,omitempty"`
	PPID                  *uint32  `json:"ppid,omitempty"`
	StateIn               []string `json:"state_in,omitempty"`
	CPUAbove              *float64 `json:"cpu_above,omitempty"`
	MemoryAboveKB         *uint64  `json:"memory_above_kb,omitempty"`
	RunningForAtLeastSecs *uint64  `json:"running_for_at_least_secs,omitempty"`
}

// ProcessOptions controls optional, opt-in process detail collection.
// Defaults are false/zero-value.
type ProcessOptions struct {
	IncludeEnv     bool `json:"include_env,omitempty"`
	IncludeThreads bool `json:"include_threads,omitempty"`
}

// CpuMode selects between a single-sample lifetime average and a two-sample
// monitor-mode measurement.
type CpuMode string

const (
	CpuModeLifetime CpuMode = "lifetime"
	CpuModeMonitor  CpuMode = "monitor"
)

// DescendantsConfig configures a descendants traversal beyond the
// root/max-levels/filter triple.
type DescendantsConfig struct {
	CpuMode          CpuMode `json:"cpu_mode,omitempty"`
	SampleDurationMS uint64  `json:"sample_duration_ms,omitempty"`
}

// DescendantsLevel is one BFS depth level of a descendants traversal.
type DescendantsLevel struct {
	Level     uint32        `json:"level"`
	Processes []ProcessInfo `json:"processes"`
}

// DescendantsResult is the outcome of a descendants traversal.
type DescendantsResult struct {
	SchemaID        string             `json:"schema_id"`
	RootPID         uint32             `json:"root_pid"`
	MaxLevels       uint32             `json:"max_levels"`
	Levels          []DescendantsLevel `json:"levels"`
	TotalFound      int                `json:"total_found"`
	MatchedByFilter int                `json:"matched_by_filter"`
	Timestamp       string             `json:"timestamp"`
	Platform        string             `json:"platform"`
}

// KillDescendantsFail pairs a pid with the reason it could not be signaled.
type KillDescendantsFail struct {
	PID   uint32 `json:"pid"`
	Error string `json:"error"`
}

// KillDescendantsResult is the outcome of a kill-descendants call.
type KillDescendantsResult struct {
	SchemaID      string                `json:"schema_id"`
	SignalSent    int                   `json:"signal_sent"`
	RootPID       uint32                `json:"root_pid"`
	Succeeded     []uint32              `json:"succeeded"`
	Failed        []KillDescendantsFail `json:"failed"`
	SkippedSafety int                   `json:"skipped_safety"`
	DryRun        bool                  `json:"dry_run"`
	Targets       []uint32              `json:"targets,omitempty"`
}

// FdKind classifies an open file descriptor.
type FdKind string

const (
	FdKindFile    FdKind = "file"
	FdKindSocket  FdKind = "socket"
	FdKindPipe    FdKind = "pipe"
	FdKindUnknown FdKind = "unknown"
)

// FdInfo describes a single open file descriptor.
type FdInfo struct {
	Fd   uint32  `json:"fd"`
	Kind FdKind  `json:"kind"`
	Path *string `json:"path,omitempty"`
}

// FdFilter filters an fd listing by kind.
type FdFilter struct {
	Kind *string `json:"kind,omitempty"`
}

// FdSnapshot is a point-in-time listing of open file descriptors for a pid.
type FdSnapshot struct {
	SchemaID  string   `json:"schema_id"`
	Timestamp string   `json:"timestamp"`
	Platform  string   `json:"platform"`
	Pid       uint32   `json:"pid"`
	Fds       []FdInfo `json:"fds"`
	Warnings  []string `json:"warnings"`
}

// Protocol is a transport-layer protocol for a listening socket.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortFilter filters a listening-ports listing.
type PortFilter struct {
	Protocol  *Protocol `json:"protocol,omitempty"`
	LocalPort *uint16   `json:"local_port,omitempty"`
}

// PortBinding is one listening socket, best-effort attributed to a pid.
type PortBinding struct {
	Protocol  Protocol     `json:"protocol"`
	LocalAddr *string      `json:"local_addr,omitempty"`
	LocalPort uint16       `json:"local_port"`
	State     *string      `json:"state,omitempty"`
	PID       *uint32      `json:"pid,omitempty"`
	Process   *ProcessInfo `json:"process,omitempty"`
}

// PortBindingsSnapshot is a point-in-time listing of listening sockets.
type PortBindingsSnapshot struct {
	SchemaID  string        `json:"schema_id"`
	Timestamp string        `json:"timestamp"`
	Platform  string        `json:"platform"`
	Bindings  []PortBinding `json:"bindings"`
	Warnings  []string      `json:"warnings"`
}

// WaitPidResult is the outcome of waiting for a pid to exit.
type WaitPidResult struct {
	SchemaID  string   `json:"schema_id"`
	Timestamp string   `json:"timestamp"`
	Platform  string   `json:"platform"`
	PID       uint32   `json:"pid"`
	Exited    bool     `json:"exited"`
	TimedOut  bool     `json:"timed_out"`
	ExitCode  *int32   `json:"exit_code,omitempty"`
	Warnings  []string `json:"warnings"`
}

// GroupingMode controls process-group/Job-Object creation for timeout
// execution.
type GroupingMode int32

const (
	// GroupByDefault creates a new process group (POSIX) or Job Object
	// (Windows) so the whole subtree can be killed on timeout. Default.
	GroupByDefault GroupingMode = 0
	// Foreground signals only the direct child. Legacy compatibility only.
	Foreground GroupingMode = 1
)

// TimeoutConfig configures RunWithTimeout.
type TimeoutConfig struct {
	Command        string
	Args           []string
	Deadline       uint64 // milliseconds
	KillAfter      uint64 // milliseconds
	Signal         int
	Grouping       GroupingMode
	PreserveStatus bool
	Cwd            *string
	Env            map[string]string
}

// TimeoutStatus is the terminal status of a RunWithTimeout call.
type TimeoutStatus string

const (
	StatusCompleted TimeoutStatus = "completed"
	StatusTimedOut  TimeoutStatus = "timed_out"
)

// TimeoutOutcome is the result of RunWithTimeout.
type TimeoutOutcome struct {
	SchemaID            string       `json:"schema_id"`
	Status              TimeoutStatus `json:"status"`
	ExitCode            *int         `json:"exit_code,omitempty"`
	SignalSent          *int         `json:"signal_sent,omitempty"`
	Escalated           *bool        `json:"escalated,omitempty"`
	TreeKillReliability *Reliability `json:"tree_kill_reliability,omitempty"`
	Warnings            []string     `json:"warnings,omitempty"`
}

// SpawnInGroupConfig spawns a process in a new group/job.
type SpawnInGroupConfig struct {
	Argv []string          `json:"argv"`
	Cwd  *string           `json:"cwd,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
}

// SpawnInGroupResult is the outcome of SpawnInGroup.
type SpawnInGroupResult struct {
	SchemaID            string      `json:"schema_id"`
	Timestamp           string      `json:"timestamp"`
	Platform            string      `json:"platform"`
	PID                 uint32      `json:"pid"`
	PGID                *uint32     `json:"pgid,omitempty"`
	TreeKillReliability Reliability `json:"tree_kill_reliability"`
	Warnings            []string    `json:"warnings"`
}

// TerminateTreeConfig configures TerminateTree.
type TerminateTreeConfig struct {
	GraceTimeoutMS       *uint64 `json:"grace_timeout_ms,omitempty"`
	KillTimeoutMS        *uint64 `json:"kill_timeout_ms,omitempty"`
	Signal               *int32  `json:"signal,omitempty"`
	KillSignal           *int32  `json:"kill_signal,omitempty"`
	RequireExePath       *string `json:"require_exe_path,omitempty"`
	RequireStartTimeMS   *uint64 `json:"require_start_time_unix_ms,omitempty"`
}

// TerminateTreeResult is the outcome of TerminateTree.
type TerminateTreeResult struct {
	SchemaID            string      `json:"schema_id"`
	Timestamp           string      `json:"timestamp"`
	Platform            string      `json:"platform"`
	PID                 uint32      `json:"pid"`
	PGID                *uint32     `json:"pgid,omitempty"`
	SignalSent          int32       `json:"signal_sent"`
	KillSignal          *int32      `json:"kill_signal,omitempty"`
	Escalated           bool        `json:"escalated"`
	Exited              bool        `json:"exited"`
	TimedOut            bool        `json:"timed_out"`
	TreeKillReliability Reliability `json:"tree_kill_reliability"`
	Warnings            []string    `json:"warnings"`
}

// KillDescendantsOptions composes the kill-descendants policy inputs.
type KillDescendantsOptions struct {
	RootPID   uint32
	MaxLevels uint32 // 0 means unbounded
	Signal    int
	Filter    *ProcessFilter
	CpuMode   CpuMode
	SampleMS  uint64
	DryRun    bool
	Yes       bool
	Force     bool
}
