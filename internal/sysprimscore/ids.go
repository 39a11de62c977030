package sysprimscore

import (
	"strconv"
	"strings"
)

// PIDMaxSafe is the upper inclusive bound for any pid/pgid accepted at a
// public entry point. Values above this would narrow to a negative int32 on
// the OS side, where negative pids and pid 0 carry broadcast semantics
// (caller's group, or every signalable process) that this library must
// never reach by accident.
const PIDMaxSafe uint32 = 2147483647

// ValidatePID rejects pid 0 and anything above PIDMaxSafe before any
// platform call is made. This executes in every signal-dispatch,
// inspection and kill-descendants path, individually and in batch.
func ValidatePID(pid uint32) error {
	if pid == 0 {
		return NewError(ErrInvalidArgument, "pid must be > 0")
	}
	if pid > PIDMaxSafe {
		return NewError(ErrInvalidArgument,
			"pid %d exceeds maximum safe value %d; larger values overflow to negative PIDs with dangerous semantics", pid, PIDMaxSafe)
	}
	return nil
}

// ValidatePGID applies the identical rule to process-group ids.
func ValidatePGID(pgid uint32) error {
	if pgid == 0 {
		return NewError(ErrInvalidArgument, "pgid must be > 0")
	}
	if pgid > PIDMaxSafe {
		return NewError(ErrInvalidArgument,
			"pgid %d exceeds maximum safe value %d; larger values overflow to negative PGIDs with dangerous semantics", pgid, PIDMaxSafe)
	}
	return nil
}

// ValidatePIDs validates an entire batch before any of them is used, so a
// batch send never delivers a partial prefix of signals and then fails
// validation halfway through.
func ValidatePIDs(pids []uint32) error {
	for _, pid := range pids {
		if err := ValidatePID(pid); err != nil {
			return err
		}
	}
	return nil
}

// namedSignals maps canonical (uppercase, "SIG"-prefixed) signal names to
// their Linux numbers, which serve as the portable default table. Names
// whose number differs on another OS (e.g. SIGUSR1 on macOS) are
// re-numbered by that platform's SignalNumber override table; names
// missing from this table are not known to any platform.
var namedSignals = map[string]int{
	"SIGHUP":  1,
	"SIGINT":  2,
	"SIGQUIT": 3,
	"SIGKILL": 9,
	"SIGUSR1": 10,
	"SIGUSR2": 12,
	"SIGTERM": 15,
	"SIGCONT": 18,
	"SIGSTOP": 19,
}

// ResolveSignal accepts a signal name — with or without the "SIG" prefix,
// case-insensitively — and returns the signal number from the portable
// table above. Platform-specific overrides (e.g. SIGUSR1 differing between
// Linux and macOS) are applied by each Platform implementation's
// SignalNumber method, which consults its override table first and falls
// back to this function; a name in neither is rejected.
func ResolveSignal(name string) (int, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return 0, NewError(ErrInvalidArgument, "signal name must not be empty")
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}

	if n, ok := namedSignals[upper]; ok {
		return n, nil
	}
	return 0, NewError(ErrInvalidArgument, "unknown signal name: %q", name)
}

// ResolveSignalInput accepts either a numeric string ("15") or a name
// ("SIGTERM", "TERM", "term") and resolves to a signal number from the
// portable table. Each platform's resolveXSignal wraps this with its own
// override table before falling back to it, so numeric input always wins.
func ResolveSignalInput(input string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(input)); err == nil {
		return n, nil
	}
	return ResolveSignal(input)
}
