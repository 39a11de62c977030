//go:build linux

package sysprimscore

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func init() {
	Current = &linuxPlatform{clockTicks: clockTicksLinux()}
}

// linuxPlatform reads directly from /proc: stat, cmdline, exe, statm,
// status and environ per pid, plus /proc/stat btime for start-time
// arithmetic. Reading /proc/<pid>/cmdline is what keeps Cmdline the full
// argv rather than the 15-char comm short name.
type linuxPlatform struct {
	clockTicks int
	bootTime   time.Time
	bootOnce   bool
}

func (p *linuxPlatform) Name() string { return "linux" }

func (p *linuxPlatform) SpawnInGroup(cfg SpawnInGroupConfig, grouping GroupingMode) (*SpawnedProcess, error) {
	return spawnPosix("linux", cfg, grouping)
}

func (p *linuxPlatform) SignalSend(pid uint32, signo int) error      { return signalSendPosix(pid, signo) }
func (p *linuxPlatform) SignalSendGroup(pgid uint32, signo int) error { return signalSendGroupPosix(pgid, signo) }
func (p *linuxPlatform) SelfPGID() (uint32, error)                  { return selfPGIDPosix() }
func (p *linuxPlatform) SelfSID() (uint32, error)                   { return selfSIDPosix() }

func (p *linuxPlatform) SignalNumber(name string) (int, error) {
	return resolveLinuxSignal(name)
}

// clockTicksLinux prefers a CLK_TCK env override (eases hermetic
// testing), else the common default.
func clockTicksLinux() int {
	if v, err := strconv.Atoi(os.Getenv("CLK_TCK")); err == nil && v > 0 {
		return v
	}
	return 100
}

func (p *linuxPlatform) bootTimeUnix() (time.Time, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "btime ") {
			secs, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "btime ")), 10, 64)
			if err != nil {
				return time.Time{}, err
			}
			return time.Unix(secs, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no btime in /proc/stat")
}

// procStatFields holds the subset of /proc/<pid>/stat this engine needs.
type procStatFields struct {
	comm       string
	state      string
	ppid       int
	utime      uint64
	stime      uint64
	starttime  uint64
	numThreads uint32
}

func readProcStat(pid int) (procStatFields, error) {
	var f procStatFields
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return f, err
	}
	line := string(data)

	open := strings.IndexByte(line, '(')
	close := strings.LastIndexByte(line, ')')
	if open < 0 || close < 0 || close < open {
		return f, NewError(ErrSystem, "malformed /proc/%d/stat", pid)
	}
	f.comm = line[open+1 : close]

	rest := strings.Fields(line[close+2:])
	// rest[0]=state, rest[1]=ppid, ... rest[11]=utime, rest[12]=stime,
	// rest[17]=num_threads, rest[19]=starttime (all 0-indexed from state).
	get := func(idx int) string {
		if idx < len(rest) {
			return rest[idx]
		}
		return "0"
	}
	f.state = get(0)
	ppid, _ := strconv.Atoi(get(1))
	f.ppid = ppid
	f.utime, _ = strconv.ParseUint(get(11), 10, 64)
	f.stime, _ = strconv.ParseUint(get(12), 10, 64)
	threads, _ := strconv.ParseUint(get(17), 10, 64)
	f.numThreads = uint32(threads)
	f.starttime, _ = strconv.ParseUint(get(19), 10, 64)
	return f, nil
}

func procStateName(code string) ProcessState {
	switch code {
	case "R":
		return StateRunning
	case "S", "D":
		return StateSleeping
	case "T", "t":
		return StateStopped
	case "Z":
		return StateZombie
	default:
		return StateUnknown
	}
}

// readProcCmdline reads the NUL-separated argv from /proc/<pid>/cmdline.
// Never truncated to the short name.
func readProcCmdline(pid int) []string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil || len(data) == 0 {
		return nil
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return append([]string{}, out...)
}

func readProcExePath(pid int) *string {
	target, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return nil
	}
	return &target
}

func readProcRSSKB(pid int) uint64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, _ := strconv.ParseUint(fields[1], 10, 64)
	return pages * uint64(os.Getpagesize()) / 1024
}

func readProcUser(pid int) *string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Uid:") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil
			}
			if u, err := user.LookupId(fields[1]); err == nil {
				return &u.Username
			}
			return nil
		}
	}
	return nil
}

func (p *linuxPlatform) buildProcessInfo(pid int, opts ProcessOptions) (*ProcessInfo, error) {
	stat, err := readProcStat(pid)
	if err != nil {
		return nil, NewError(ErrNotFound, "process %d not found: %v", pid, err)
	}

	if !p.bootOnce {
		if bt, err := p.bootTimeUnix(); err == nil {
			p.bootTime = bt
		}
		p.bootOnce = true
	}

	info := &ProcessInfo{
		PID:     uint32(pid),
		PPID:    uint32(stat.ppid),
		Name:    stat.comm,
		Cmdline: readProcCmdline(pid),
		ExePath: readProcExePath(pid),
		User:    readProcUser(pid),
	}
	state := procStateName(stat.state)
	info.State = &state

	totalTicks := stat.utime + stat.stime
	info.MemoryKB = readProcRSSKB(pid)

	if !p.bootTime.IsZero() {
		startTime := p.bootTime.Add(time.Duration(stat.starttime) * time.Second / time.Duration(p.clockTicks))
		ms := uint64(startTime.UnixMilli())
		info.StartTimeUnixMS = &ms

		elapsed := time.Since(startTime).Seconds()
		if elapsed < 0 {
			elapsed = 0
		}
		el := uint64(elapsed)
		info.ElapsedSeconds = &el

		if elapsed > 0 {
			cpuSeconds := float64(totalTicks) / float64(p.clockTicks)
			info.CPUPercent = (cpuSeconds / elapsed) * 100
		}
	}

	if opts.IncludeThreads {
		tc := stat.numThreads
		info.ThreadCount = &tc
	}
	if opts.IncludeEnv {
		info.Env = readProcEnviron(pid)
	}

	return info, nil
}

func readProcEnviron(pid int) map[string]string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/environ", pid))
	if err != nil {
		return nil
	}
	out := map[string]string{}
	for _, kv := range strings.Split(strings.TrimRight(string(data), "\x00"), "\x00") {
		if kv == "" {
			continue
		}
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

func listLinuxPids() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if pid, err := strconv.Atoi(e.Name()); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (p *linuxPlatform) ListProcesses(opts ProcessOptions) ([]ProcessInfo, []string, error) {
	pids, err := listLinuxPids()
	if err != nil {
		return nil, nil, NewError(ErrSystem, "read /proc: %v", err)
	}

	infos := make([]ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		info, err := p.buildProcessInfo(pid, opts)
		if err != nil {
			// Enumerations that race process exits drop disappeared
			// entries silently.
			continue
		}
		infos = append(infos, *info)
	}
	return infos, nil, nil
}

func (p *linuxPlatform) GetProcess(pid uint32, opts ProcessOptions) (*ProcessInfo, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	return p.buildProcessInfo(int(pid), opts)
}

func (p *linuxPlatform) ListFds(pid uint32) ([]FdInfo, []string, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, nil, err
	}
	dir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			return nil, nil, NewError(ErrPermissionDenied, "cannot read %s: %v", dir, err)
		}
		if os.IsNotExist(err) {
			return nil, nil, NewError(ErrNotFound, "process %d not found", pid)
		}
		return nil, nil, NewError(ErrSystem, "read %s: %v", dir, err)
	}

	var out []FdInfo
	var warnings []string
	for _, e := range entries {
		fdNum, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			// The fd can close between readdir and readlink; drop
			// it silently rather than erroring the whole snapshot.
			continue
		}
		fd := FdInfo{Fd: uint32(fdNum)}
		switch {
		case strings.HasPrefix(target, "socket:["):
			fd.Kind = FdKindSocket
		case strings.HasPrefix(target, "pipe:["):
			fd.Kind = FdKindPipe
		case strings.HasPrefix(target, "/"):
			fd.Kind = FdKindFile
			path := target
			fd.Path = &path
		default:
			fd.Kind = FdKindUnknown
		}
		out = append(out, fd)
	}
	return out, warnings, nil
}

func (p *linuxPlatform) WaitPID(pid uint32, timeoutMS uint64) (*WaitPidResult, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	if !processExistsLinux(pid) {
		return nil, NewError(ErrNotFound, "process %d not found", pid)
	}

	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	backoff := 10 * time.Millisecond
	const maxBackoff = 250 * time.Millisecond

	for {
		if !processExistsLinux(pid) {
			return &WaitPidResult{
				SchemaID: SchemaWaitPidResult, Timestamp: nowISO8601(), Platform: "linux",
				PID: pid, Exited: true,
			}, nil
		}
		if time.Now().After(deadline) {
			return &WaitPidResult{
				SchemaID: SchemaWaitPidResult, Timestamp: nowISO8601(), Platform: "linux",
				PID: pid, Exited: false, TimedOut: true,
			}, nil
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

func processExistsLinux(pid uint32) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}
