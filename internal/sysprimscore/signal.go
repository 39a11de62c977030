package sysprimscore

// SignalResult pairs a pid with the outcome of signaling it, used by the
// batch dispatch functions below.
type SignalResult struct {
	PID   uint32 `json:"pid"`
	Error string `json:"error,omitempty"`
}

// Send delivers signo to a single pid. pid 0 and anything above PIDMaxSafe
// are rejected before any platform call is made.
func Send(pid uint32, signo int) error {
	if err := ValidatePID(pid); err != nil {
		return err
	}
	return Current.SignalSend(pid, signo)
}

// SendGroup delivers signo to every process in the group identified by
// pgid. Returns ErrNotSupported on platforms without process groups
// (Windows).
func SendGroup(pgid uint32, signo int) error {
	if err := ValidatePGID(pgid); err != nil {
		return err
	}
	return Current.SignalSendGroup(pgid, signo)
}

// Terminate sends the platform's graceful-terminate signal (SIGTERM on
// POSIX, TerminateProcess via console-event-free path on Windows).
func Terminate(pid uint32) error {
	signo, err := Current.SignalNumber("SIGTERM")
	if err != nil {
		return err
	}
	return Send(pid, signo)
}

// ForceKill sends the platform's unconditional-kill signal.
func ForceKill(pid uint32) error {
	return Send(pid, SignalForceKill(Current.Name()))
}

// SendBatch validates every pid before signaling any of them, then signals
// each independently, collecting per-pid outcomes rather than aborting on
// the first failure.
func SendBatch(pids []uint32, signo int) []SignalResult {
	if err := ValidatePIDs(pids); err != nil {
		out := make([]SignalResult, len(pids))
		for i, pid := range pids {
			out[i] = SignalResult{PID: pid, Error: err.Error()}
		}
		return out
	}

	out := make([]SignalResult, 0, len(pids))
	for _, pid := range pids {
		res := SignalResult{PID: pid}
		if err := Current.SignalSend(pid, signo); err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}
