//go:build windows

package sysprimscore

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
	"unsafe"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	gopsproc "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"
)

func init() {
	Current = &windowsPlatform{}
}

// windowsPlatform backs tree-kill with a Job Object configured to kill its
// members when the handle closes. Process enumeration and stats reuse
// gopsutil/v3 (same as darwinPlatform) since Windows has no /proc to read
// directly.
type windowsPlatform struct{}

func (p *windowsPlatform) Name() string { return "windows" }

// windowsJob is the groupHandle backing tree-kill reliability on Windows:
// closing the Job Object handle terminates every process still assigned
// to it (JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE).
type windowsJob struct {
	handle windows.Handle
}

func (j *windowsJob) SignalGroup(signo int) error {
	// Windows has no catchable group signal; the configured initial
	// signal is delivered by closing the job, same as TerminateGroup.
	return j.TerminateGroup()
}

func (j *windowsJob) TerminateGroup() error {
	if err := windows.CloseHandle(j.handle); err != nil {
		return NewError(ErrSystem, "close job object: %v", err)
	}
	return nil
}

func (j *windowsJob) Close() {
	_ = windows.CloseHandle(j.handle)
}

func (p *windowsPlatform) SpawnInGroup(cfg SpawnInGroupConfig, grouping GroupingMode) (*SpawnedProcess, error) {
	if len(cfg.Argv) == 0 {
		return nil, NewError(ErrInvalidArgument, "argv must not be empty")
	}

	cmd := exec.Command(cfg.Argv[0], cfg.Argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if cfg.Cwd != nil {
		cmd.Dir = *cfg.Cwd
	}
	if len(cfg.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	}

	if err := cmd.Start(); err != nil {
		return nil, mapSpawnErrorWindows(err)
	}
	pid := uint32(cmd.Process.Pid)

	var warnings []string
	reliability := ReliabilityBestEffort
	var group groupHandle

	if grouping == GroupByDefault {
		job, werr := createKillOnCloseJob()
		if werr != nil {
			warnings = append(warnings, "job object creation failed, falling back to direct-child signaling: "+werr.Error())
		} else if aerr := assignProcessToJob(job, cmd.Process.Pid); aerr != nil {
			// Nested-job restrictions can prevent assignment; fall
			// back to plain spawn.
			_ = windows.CloseHandle(job)
			warnings = append(warnings, "could not assign process to job object: "+aerr.Error())
		} else {
			reliability = ReliabilityGuaranteed
			group = &windowsJob{handle: job}
		}
	}

	result := SpawnInGroupResult{
		SchemaID: SchemaSpawnInGroupResult, Timestamp: nowISO8601(), Platform: "windows",
		PID: pid, TreeKillReliability: reliability, Warnings: warnings,
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	return &SpawnedProcess{
		Result: result,
		pid:    pid,
		group:  group,
		signal: func(signo int) error { return terminateProcessWindows(cmd, signo) },
		wait: func(timeout time.Duration) (bool, int, error) {
			select {
			case err := <-done:
				return true, exitCodeOf(err), nil
			case <-time.After(timeout):
				return false, 0, nil
			}
		},
	}, nil
}

func createKillOnCloseJob() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, err
	}
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		_ = windows.CloseHandle(job)
		return 0, err
	}
	return job, nil
}

func assignProcessToJob(job windows.Handle, pid int) error {
	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(proc)
	return windows.AssignProcessToJobObject(job, proc)
}

func terminateProcessWindows(cmd *exec.Cmd, signo int) error {
	// SIGINT maps to a best-effort console-event broadcast; everything
	// else (graceful-terminate, force-kill) maps to native termination.
	if signo == 2 {
		proc, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
		if err == nil {
			defer windows.CloseHandle(proc)
			_ = windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(cmd.Process.Pid))
			return nil
		}
	}
	if err := cmd.Process.Kill(); err != nil && err != os.ErrProcessDone {
		return NewError(ErrSystem, "TerminateProcess: %v", err)
	}
	return nil
}

func mapSpawnErrorWindows(err error) error {
	if os.IsNotExist(err) || errors.Is(err, exec.ErrNotFound) {
		return NewError(ErrNotFound, "command not found: %v", err)
	}
	if os.IsPermission(err) {
		return NewError(ErrPermissionDenied, "command not executable: %v", err)
	}
	return NewError(ErrSpawnFailed, "spawn failed: %v", err)
}

// SignalSend maps the portable signal subset onto native Windows calls:
// SIGTERM/SIGKILL -> TerminateProcess, SIGINT -> console event, everything
// else -> NotSupported.
func (p *windowsPlatform) SignalSend(pid uint32, signo int) error {
	if err := ValidatePID(pid); err != nil {
		return err
	}
	switch signo {
	case 15, 9: // SIGTERM, SIGKILL
		proc, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
		if err != nil {
			return mapWindowsOpenError(err, pid)
		}
		defer windows.CloseHandle(proc)
		if err := windows.TerminateProcess(proc, 1); err != nil {
			return NewError(ErrSystem, "TerminateProcess(%d): %v", pid, err)
		}
		return nil
	case 2: // SIGINT
		if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_C_EVENT, pid); err != nil {
			return NewError(ErrSystem, "GenerateConsoleCtrlEvent(%d): %v", pid, err)
		}
		return nil
	default:
		return NewError(ErrNotSupported, "signal %d not supported on windows", signo)
	}
}

func mapWindowsOpenError(err error, pid uint32) error {
	switch err {
	case windows.ERROR_INVALID_PARAMETER:
		return NewError(ErrNotFound, "process %d not found", pid)
	case windows.ERROR_ACCESS_DENIED:
		return NewError(ErrPermissionDenied, "access denied to process %d", pid)
	default:
		return NewError(ErrSystem, "OpenProcess(%d): %v", pid, err)
	}
}

// SignalSendGroup has no Windows equivalent to POSIX process groups.
func (p *windowsPlatform) SignalSendGroup(pgid uint32, signo int) error {
	return NewError(ErrNotSupported, "process groups are not supported on windows")
}

func (p *windowsPlatform) SelfPGID() (uint32, error) {
	return 0, NewError(ErrNotSupported, "pgid is not a windows concept")
}

func (p *windowsPlatform) SelfSID() (uint32, error) {
	return 0, NewError(ErrNotSupported, "sid is not a windows concept in this sense")
}

func (p *windowsPlatform) SignalNumber(name string) (int, error) {
	return ResolveSignalInput(name)
}

func (p *windowsPlatform) ListProcesses(opts ProcessOptions) ([]ProcessInfo, []string, error) {
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, nil, NewError(ErrSystem, "enumerate processes: %v", err)
	}
	var out []ProcessInfo
	for _, gp := range procs {
		if running, err := gp.IsRunning(); err != nil || !running {
			continue
		}
		out = append(out, *windowsProcessInfo(gp, opts))
	}
	return out, nil, nil
}

func windowsProcessInfo(gp *gopsproc.Process, opts ProcessOptions) *ProcessInfo {
	info := &ProcessInfo{PID: uint32(gp.Pid)}
	if name, err := gp.Name(); err == nil {
		info.Name = name
	}
	if ppid, err := gp.Ppid(); err == nil {
		info.PPID = uint32(ppid)
	}
	if user, err := gp.Username(); err == nil {
		info.User = &user
	}
	if cpu, err := gp.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}
	if mem, err := gp.MemoryInfo(); err == nil && mem != nil {
		info.MemoryKB = mem.RSS / 1024
	}
	if ct, err := gp.CreateTime(); err == nil && ct > 0 {
		ms := uint64(ct)
		info.StartTimeUnixMS = &ms
		elapsed := uint64(time.Since(time.UnixMilli(ct)).Seconds())
		info.ElapsedSeconds = &elapsed
	}
	if exe, err := gp.Exe(); err == nil && exe != "" {
		info.ExePath = &exe
	}
	if cmdline, err := gp.CmdlineSlice(); err == nil {
		info.Cmdline = sanitizeArgv(cmdline)
	}
	if opts.IncludeThreads {
		if n, err := gp.NumThreads(); err == nil {
			tc := uint32(n)
			info.ThreadCount = &tc
		}
	}
	st := StateRunning
	info.State = &st
	return info
}

func (p *windowsPlatform) GetProcess(pid uint32, opts ProcessOptions) (*ProcessInfo, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	gp, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, NewError(ErrNotFound, "process %d not found: %v", pid, err)
	}
	return windowsProcessInfo(gp, opts), nil
}

// ListFds is not supported on Windows: there is no POSIX fd table to
// enumerate.
func (p *windowsPlatform) ListFds(pid uint32) ([]FdInfo, []string, error) {
	return nil, nil, NewError(ErrNotSupported, "fd listing is not supported on windows")
}

func (p *windowsPlatform) ListeningPorts() ([]PortBinding, []string, error) {
	conns, err := gopsnet.ConnectionsWithContext(context.Background(), "inet")
	if err != nil {
		return nil, nil, NewError(ErrSystem, "enumerate sockets: %v", err)
	}
	var out []PortBinding
	var warnings []string
	for _, c := range conns {
		if c.Status != "LISTEN" && c.Type != 2 {
			continue
		}
		proto := ProtocolTCP
		if c.Type == 2 {
			proto = ProtocolUDP
		}
		addr := c.Laddr.IP
		port := uint16(c.Laddr.Port)
		binding := PortBinding{Protocol: proto, LocalAddr: &addr, LocalPort: port}
		if c.Pid != 0 {
			pid := uint32(c.Pid)
			binding.PID = &pid
		}
		out = append(out, binding)
	}
	return out, warnings, nil
}

func (p *windowsPlatform) WaitPID(pid uint32, timeoutMS uint64) (*WaitPidResult, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	gp, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, NewError(ErrNotFound, "process %d not found: %v", pid, err)
	}
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	backoff := 10 * time.Millisecond
	const maxBackoff = 250 * time.Millisecond
	for {
		running, err := gp.IsRunning()
		if err != nil || !running {
			return &WaitPidResult{SchemaID: SchemaWaitPidResult, Timestamp: nowISO8601(), Platform: "windows", PID: pid, Exited: true}, nil
		}
		if time.Now().After(deadline) {
			return &WaitPidResult{SchemaID: SchemaWaitPidResult, Timestamp: nowISO8601(), Platform: "windows", PID: pid, TimedOut: true}, nil
		}
		remaining := time.Until(deadline)
		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	out := append([]string{}, base...)
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
