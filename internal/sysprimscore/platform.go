package sysprimscore

import "time"

// Platform is the thin, uniform interface the rest of the engine is built
// on. Exactly one implementation is compiled in, selected at
// compile time per target OS (platform_linux.go, platform_darwin.go,
// platform_windows.go).
type Platform interface {
	// Name returns the platform identifier used in schema output
	// ("linux", "macos", "windows", ...).
	Name() string

	// SpawnInGroup starts argv[0] with the given args, isolating it into a
	// fresh process group (POSIX) or Job Object (Windows) unless grouping
	// is Foreground.
	SpawnInGroup(cfg SpawnInGroupConfig, grouping GroupingMode) (*SpawnedProcess, error)

	// SignalSend delivers a signal to a single pid.
	SignalSend(pid uint32, signo int) error

	// SignalSendGroup delivers a signal to every process in a group.
	// Returns ErrNotSupported on platforms without process groups.
	SignalSendGroup(pgid uint32, signo int) error

	// ListProcesses enumerates every visible process.
	ListProcesses(opts ProcessOptions) ([]ProcessInfo, []string, error)

	// GetProcess looks up a single pid. Returns ErrNotFound if absent.
	GetProcess(pid uint32, opts ProcessOptions) (*ProcessInfo, error)

	// ListFds enumerates open file descriptors for a pid.
	ListFds(pid uint32) ([]FdInfo, []string, error)

	// ListeningPorts enumerates listening sockets, best-effort attributed
	// to owning pids.
	ListeningPorts() ([]PortBinding, []string, error)

	// WaitPID polls for pid exit up to timeoutMS.
	WaitPID(pid uint32, timeoutMS uint64) (*WaitPidResult, error)

	// SelfPGID/SelfSID return session/group identity. ErrNotSupported on
	// platforms without the concept.
	SelfPGID() (uint32, error)
	SelfSID() (uint32, error)

	// SignalNumber resolves a named signal to this platform's number,
	// applying any platform-specific overrides (e.g. SIGUSR1 differs
	// between Linux and macOS) on top of the portable table in ids.go.
	SignalNumber(name string) (int, error)
}

// groupHandle is the per-OS isolation mechanism retained for the lifetime
// of a timeout wait: a POSIX process group or a Windows Job Object.
type groupHandle interface {
	// SignalGroup delivers signo to every member of the group. On
	// Windows this is approximated: SIGTERM/SIGKILL both request
	// termination via the Job Object since Windows has no equivalent of
	// a catchable group signal.
	SignalGroup(signo int) error

	// TerminateGroup forces every member of the group to exit
	// immediately: killpg(SIGKILL) on POSIX, closing the Job Object on
	// Windows.
	TerminateGroup() error

	// Close releases OS resources (the Job Object handle; a no-op on
	// POSIX, where the group dies with its last member).
	Close()
}

// SpawnedProcess is the live handle to a process started by SpawnInGroup,
// retained by the timeout engine for the duration of its wait.
type SpawnedProcess struct {
	Result SpawnInGroupResult

	pid    uint32
	wait   func(timeout time.Duration) (exited bool, exitCode int, err error)
	group  groupHandle
	signal func(signo int) error
}

// PID returns the spawned child's process id.
func (s *SpawnedProcess) PID() uint32 { return s.pid }

// Wait blocks until the direct child exits or timeout elapses.
func (s *SpawnedProcess) Wait(timeout time.Duration) (exited bool, exitCode int, err error) {
	return s.wait(timeout)
}

// SignalDirect signals only the direct child, used in Foreground grouping
// mode or when no group/job could be established.
func (s *SpawnedProcess) SignalDirect(signo int) error {
	return s.signal(signo)
}

// SignalGroup signals the whole group/job, falling back to the direct
// child when group is nil (best-effort reliability).
func (s *SpawnedProcess) SignalGroup(signo int) error {
	if s.group == nil {
		return s.signal(signo)
	}
	return s.group.SignalGroup(signo)
}

// TerminateGroup force-kills the whole group/job, falling back to the
// direct child when group is nil.
func (s *SpawnedProcess) TerminateGroup() error {
	if s.group == nil {
		return s.signal(SignalForceKill(s.Result.Platform))
	}
	return s.group.TerminateGroup()
}

// Close releases resources tied to the spawn (Job Object handle on
// Windows).
func (s *SpawnedProcess) Close() {
	if s.group != nil {
		s.group.Close()
	}
}

// Current is the compiled-in platform implementation, assigned by each
// platform_<os>.go file's init().
var Current Platform

// SignalForceKill returns the platform's unconditional-kill signal number.
// Kept as a free function (rather than a Platform method) because it is
// needed without an instance in a couple of fallback paths.
func SignalForceKill(platformName string) int {
	if platformName == "windows" {
		return 9
	}
	return 9 // SIGKILL is 9 on every sysprims-supported POSIX target.
}
