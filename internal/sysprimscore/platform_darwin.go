//go:build darwin

package sysprimscore

import (
	"context"
	"fmt"
	"time"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	gopsproc "github.com/shirou/gopsutil/v3/process"
)

func init() {
	Current = &darwinPlatform{}
}

// darwinPlatform enumerates through gopsutil/v3's process and net
// packages, which wrap the libproc/sysctl calls macOS needs (argv via the
// kernel's KERN_PROCARGS2 interface, not the short name) without requiring
// this module to carry its own cgo.
type darwinPlatform struct{}

func (p *darwinPlatform) Name() string { return "macos" }

func (p *darwinPlatform) SpawnInGroup(cfg SpawnInGroupConfig, grouping GroupingMode) (*SpawnedProcess, error) {
	return spawnPosix("macos", cfg, grouping)
}

func (p *darwinPlatform) SignalSend(pid uint32, signo int) error      { return signalSendPosix(pid, signo) }
func (p *darwinPlatform) SignalSendGroup(pgid uint32, signo int) error { return signalSendGroupPosix(pgid, signo) }
func (p *darwinPlatform) SelfPGID() (uint32, error)                  { return selfPGIDPosix() }
func (p *darwinPlatform) SelfSID() (uint32, error)                   { return selfSIDPosix() }
func (p *darwinPlatform) SignalNumber(name string) (int, error)      { return resolveDarwinSignal(name) }

func gopsToProcessInfo(gp *gopsproc.Process, opts ProcessOptions) *ProcessInfo {
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
	// argv must be the full vector, retrieved via the kernel's argv
	// interface (sysctl KERN_PROCARGS2 under the hood on darwin), never
	// truncated to the short name.
	if cmdline, err := gp.CmdlineSlice(); err == nil {
		info.Cmdline = sanitizeArgv(cmdline)
	}
	if statuses, err := gp.Status(); err == nil && len(statuses) > 0 {
		st := mapGopsutilState(statuses[0])
		info.State = &st
	}
	if opts.IncludeThreads {
		if n, err := gp.NumThreads(); err == nil {
			tc := uint32(n)
			info.ThreadCount = &tc
		}
	}
	if opts.IncludeEnv {
		if env, err := gp.Environ(); err == nil {
			info.Env = envSliceToMap(env)
		}
	}
	return info
}

// sanitizeArgv bounds argc to guard against malformed kernel responses and
// drops empty entries.
func sanitizeArgv(argv []string) []string {
	const maxArgc = 4096
	if len(argv) > maxArgc {
		argv = argv[:maxArgc]
	}
	out := make([]string, 0, len(argv))
	for _, a := range argv {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func envSliceToMap(env []string) map[string]string {
	out := map[string]string{}
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

func mapGopsutilState(s string) ProcessState {
	switch s {
	case gopsproc.Running:
		return StateRunning
	case gopsproc.Sleep, gopsproc.Idle, gopsproc.Wait:
		return StateSleeping
	case gopsproc.Stop:
		return StateStopped
	case gopsproc.Zombie:
		return StateZombie
	default:
		return StateUnknown
	}
}

func (p *darwinPlatform) ListProcesses(opts ProcessOptions) ([]ProcessInfo, []string, error) {
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil, nil, NewError(ErrSystem, "enumerate processes: %v", err)
	}
	var out []ProcessInfo
	for _, gp := range procs {
		// A process can exit between enumeration and inspection; drop
		// it silently rather than erroring the whole snapshot.
		if running, err := gp.IsRunning(); err != nil || !running {
			continue
		}
		out = append(out, *gopsToProcessInfo(gp, opts))
	}
	return out, nil, nil
}

func (p *darwinPlatform) GetProcess(pid uint32, opts ProcessOptions) (*ProcessInfo, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	gp, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, NewError(ErrNotFound, "process %d not found: %v", pid, err)
	}
	return gopsToProcessInfo(gp, opts), nil
}

func (p *darwinPlatform) ListFds(pid uint32) ([]FdInfo, []string, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, nil, err
	}
	gp, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil, nil, NewError(ErrNotFound, "process %d not found: %v", pid, err)
	}
	files, err := gp.OpenFiles()
	if err != nil {
		// macOS SIP/TCC can restrict this even for same-user processes.
		return nil, []string{fmt.Sprintf("fd listing restricted for pid %d: %v", pid, err)}, nil
	}
	out := make([]FdInfo, 0, len(files))
	for _, f := range files {
		path := f.Path
		out = append(out, FdInfo{Fd: uint32(f.Fd), Kind: FdKindFile, Path: &path})
	}
	return out, nil, nil
}

func (p *darwinPlatform) ListeningPorts() ([]PortBinding, []string, error) {
	conns, err := gopsnet.ConnectionsWithContext(context.Background(), "inet")
	if err != nil {
		return nil, nil, NewError(ErrPermissionDenied, "enumerate sockets: %v", err)
	}
	var out []PortBinding
	var warnings []string
	for _, c := range conns {
		if c.Status != "LISTEN" && c.Type != 2 /* SOCK_DGRAM */ {
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
		} else {
			warnings = append(warnings, "socket attribution unavailable for one or more bindings (SIP/TCC)")
		}
		out = append(out, binding)
	}
	return out, warnings, nil
}

func (p *darwinPlatform) WaitPID(pid uint32, timeoutMS uint64) (*WaitPidResult, error) {
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
			return &WaitPidResult{SchemaID: SchemaWaitPidResult, Timestamp: nowISO8601(), Platform: "macos", PID: pid, Exited: true}, nil
		}
		if time.Now().After(deadline) {
			return &WaitPidResult{SchemaID: SchemaWaitPidResult, Timestamp: nowISO8601(), Platform: "macos", PID: pid, TimedOut: true}, nil
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
