package sysprimscore

import (
	"strings"
	"time"
)

// Snapshot lists every visible process, applying an optional filter. A nil
// filter matches everything.
func Snapshot(filter *ProcessFilter, opts ProcessOptions) (*ProcessSnapshot, []string, error) {
	procs, warnings, err := Current.ListProcesses(opts)
	if err != nil {
		return nil, nil, err
	}
	filtered := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if matchesProcessFilter(p, filter) {
			filtered = append(filtered, p)
		}
	}
	return &ProcessSnapshot{
		SchemaID:  SchemaProcessSnapshot,
		Timestamp: nowISO8601(),
		Processes: filtered,
	}, warnings, nil
}

// GetProcess looks up a single pid's full detail.
func GetProcess(pid uint32, opts ProcessOptions) (*ProcessInfo, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	return Current.GetProcess(pid, opts)
}

func matchesProcessFilter(p ProcessInfo, f *ProcessFilter) bool {
	if f == nil {
		return true
	}
	if f.NameContains != nil && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(*f.NameContains)) {
		return false
	}
	if f.NameEquals != nil && p.Name != *f.NameEquals {
		return false
	}
	if f.UserEquals != nil {
		if p.User == nil || *p.User != *f.UserEquals {
			return false
		}
	}
	if len(f.PIDIn) > 0 {
		found := false
		for _, pid := range f.PIDIn {
			if pid == p.PID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PPID != nil && p.PPID != *f.PPID {
		return false
	}
	if len(f.StateIn) > 0 {
		if p.State == nil {
			return false
		}
		found := false
		for _, s := range f.StateIn {
			if string(*p.State) == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CPUAbove != nil && p.CPUPercent <= *f.CPUAbove {
		return false
	}
	if f.MemoryAboveKB != nil && p.MemoryKB <= *f.MemoryAboveKB {
		return false
	}
	if f.RunningForAtLeastSecs != nil {
		if p.ElapsedSeconds == nil || *p.ElapsedSeconds < *f.RunningForAtLeastSecs {
			return false
		}
	}
	return true
}

// maxDescendantSafetyDepth bounds BFS traversal even when max_levels is 0
// (unbounded), guarding against a pathological ppid cycle reported by a
// racing OS snapshot.
const maxDescendantSafetyDepth = 4096

// Descendants performs a breadth-first traversal of rootPID's process
// tree, grouping matches by depth level. maxLevels == 0 means unbounded
// (subject to maxDescendantSafetyDepth). CPU sampling mode
// controls whether CPUPercent on each returned ProcessInfo is the
// platform's lifetime average or a short-window monitor-mode delta.
func Descendants(rootPID uint32, maxLevels uint32, filter *ProcessFilter, cfg DescendantsConfig) (*DescendantsResult, error) {
	if err := ValidatePID(rootPID); err != nil {
		return nil, err
	}

	opts := ProcessOptions{}
	first, _, err := Current.ListProcesses(opts)
	if err != nil {
		return nil, err
	}

	byPID := make(map[uint32]ProcessInfo, len(first))
	children := make(map[uint32][]uint32)
	for _, p := range first {
		byPID[p.PID] = p
		children[p.PPID] = append(children[p.PPID], p.PID)
	}

	if _, ok := byPID[rootPID]; !ok {
		return nil, NewError(ErrNotFound, "process %d not found", rootPID)
	}

	var monitorSecond map[uint32]ProcessInfo
	if cfg.CpuMode == CpuModeMonitor {
		sampleMS := cfg.SampleDurationMS
		if sampleMS == 0 {
			sampleMS = 200
		}
		time.Sleep(time.Duration(sampleMS) * time.Millisecond)
		second, _, err := Current.ListProcesses(opts)
		if err == nil {
			monitorSecond = make(map[uint32]ProcessInfo, len(second))
			for _, p := range second {
				monitorSecond[p.PID] = p
			}
		}
	}

	limit := maxLevels
	if limit == 0 || limit > maxDescendantSafetyDepth {
		limit = maxDescendantSafetyDepth
	}

	result := &DescendantsResult{
		SchemaID:  SchemaDescendantsResult,
		RootPID:   rootPID,
		MaxLevels: maxLevels,
		Timestamp: nowISO8601(),
		Platform:  Current.Name(),
	}

	frontier := children[rootPID]
	for level := uint32(1); level <= limit && len(frontier) > 0; level++ {
		var procsAtLevel []ProcessInfo
		var next []uint32
		for _, pid := range frontier {
			info, ok := byPID[pid]
			if !ok {
				continue
			}
			if cfg.CpuMode == CpuModeMonitor && monitorSecond != nil {
				if second, ok := monitorSecond[pid]; ok {
					info.CPUPercent = computeMonitorCPU(info, second)
				}
			}
			result.TotalFound++
			if matchesProcessFilter(info, filter) {
				procsAtLevel = append(procsAtLevel, info)
				result.MatchedByFilter++
			}
			next = append(next, children[pid]...)
		}
		if len(procsAtLevel) > 0 {
			result.Levels = append(result.Levels, DescendantsLevel{Level: level, Processes: procsAtLevel})
		}
		frontier = next
	}

	return result, nil
}

// computeMonitorCPU derives a short-window CPU percentage from two
// lifetime-average samples, each of which reports a percentage computed
// over its own elapsed-since-start window. Subtracting the implied
// cpu-seconds consumed at each sample and dividing by the elapsed wall
// time between samples yields the interval rate. The result can exceed
// 100 on multi-core hosts and is deliberately not clamped.
func computeMonitorCPU(a, b ProcessInfo) float64 {
	if a.ElapsedSeconds == nil || b.ElapsedSeconds == nil {
		return b.CPUPercent
	}
	elapsedA := float64(*a.ElapsedSeconds)
	elapsedB := float64(*b.ElapsedSeconds)
	deltaWall := elapsedB - elapsedA
	if deltaWall <= 0 {
		return b.CPUPercent
	}
	cpuSecondsA := a.CPUPercent / 100 * elapsedA
	cpuSecondsB := b.CPUPercent / 100 * elapsedB
	deltaCPU := cpuSecondsB - cpuSecondsA
	if deltaCPU < 0 {
		deltaCPU = 0
	}
	return deltaCPU / deltaWall * 100
}

// ListFds lists a pid's open file descriptors, optionally filtered by
// kind.
func ListFds(pid uint32, filter *FdFilter) (*FdSnapshot, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	fds, warnings, err := Current.ListFds(pid)
	if err != nil {
		return nil, err
	}
	filtered := make([]FdInfo, 0, len(fds))
	for _, fd := range fds {
		if filter != nil && filter.Kind != nil && string(fd.Kind) != *filter.Kind {
			continue
		}
		filtered = append(filtered, fd)
	}
	return &FdSnapshot{
		SchemaID:  SchemaFdSnapshot,
		Timestamp: nowISO8601(),
		Platform:  Current.Name(),
		Pid:       pid,
		Fds:       filtered,
		Warnings:  warnings,
	}, nil
}

// ListeningPorts lists listening sockets, optionally filtered by protocol
// and/or local port, best-effort attributed to owning pids.
func ListeningPorts(filter *PortFilter) (*PortBindingsSnapshot, error) {
	bindings, warnings, err := Current.ListeningPorts()
	if err != nil {
		return nil, err
	}
	filtered := make([]PortBinding, 0, len(bindings))
	for _, b := range bindings {
		if filter != nil {
			if filter.Protocol != nil && b.Protocol != *filter.Protocol {
				continue
			}
			if filter.LocalPort != nil && b.LocalPort != *filter.LocalPort {
				continue
			}
		}
		// Attribution is best-effort twice over: the pid may be unknown,
		// and the owning process may exit between the socket scan and
		// this lookup.
		if b.PID != nil {
			if info, err := Current.GetProcess(*b.PID, ProcessOptions{}); err == nil {
				b.Process = info
			}
		}
		filtered = append(filtered, b)
	}
	return &PortBindingsSnapshot{
		SchemaID:  SchemaPortBindingsSnapshot,
		Timestamp: nowISO8601(),
		Platform:  Current.Name(),
		Bindings:  filtered,
		Warnings:  warnings,
	}, nil
}

// WaitPID blocks until pid exits or timeoutMS elapses.
func WaitPID(pid uint32, timeoutMS uint64) (*WaitPidResult, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}
	return Current.WaitPID(pid, timeoutMS)
}
