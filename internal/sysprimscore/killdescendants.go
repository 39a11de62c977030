package sysprimscore

import (
	"os"

	"github.com/mitchellh/go-ps"
)

// KillDescendants discovers rootPID's descendants and signals them, with
// two safety interlocks that cannot be bypassed except by explicit opt-in:
//
//   - self, pid 1, and the calling process's own ancestry are never
//     signaled unless opts.Force is set (a filter or a misconfigured
//     root could otherwise walk back up to something the caller did not
//     intend to kill).
//   - when opts.Filter narrows the selection, the call defaults to a
//     dry run (no signal sent, just a preview of targets) unless
//     opts.Yes is set. An unfiltered kill of every descendant is
//     considered an explicit-enough ask and is not forced dry.
func KillDescendants(opts KillDescendantsOptions) (*KillDescendantsResult, error) {
	if err := ValidatePID(opts.RootPID); err != nil {
		return nil, err
	}

	descendants, err := Descendants(opts.RootPID, opts.MaxLevels, opts.Filter, DescendantsConfig{
		CpuMode:          opts.CpuMode,
		SampleDurationMS: opts.SampleMS,
	})
	if err != nil {
		return nil, err
	}

	protected := protectedPIDs(opts.Force)

	var targets []uint32
	skippedSafety := 0
	for _, level := range descendants.Levels {
		for _, p := range level.Processes {
			if !opts.Force {
				if _, blocked := protected[p.PID]; blocked {
					skippedSafety++
					continue
				}
			}
			targets = append(targets, p.PID)
		}
	}

	// Descendants never includes the root itself (its BFS starts at
	// rootPID's children), so the root-of-tree exclusion is otherwise
	// unconditional. Force is the documented escape hatch for that
	// exclusion too, so it is the only place rootPID can enter targets.
	if opts.Force {
		targets = append(targets, opts.RootPID)
	}

	dryRun := opts.DryRun || (opts.Filter != nil && !opts.Yes)

	result := &KillDescendantsResult{
		SchemaID:      SchemaKillDescendantsResult,
		SignalSent:    opts.Signal,
		RootPID:       opts.RootPID,
		SkippedSafety: skippedSafety,
		DryRun:        dryRun,
	}

	if dryRun {
		result.Targets = targets
		return result, nil
	}

	for _, res := range SendBatch(targets, opts.Signal) {
		if res.Error != "" {
			result.Failed = append(result.Failed, KillDescendantsFail{PID: res.PID, Error: res.Error})
			continue
		}
		result.Succeeded = append(result.Succeeded, res.PID)
	}
	return result, nil
}

// protectedPIDs returns the set of pids that KillDescendants refuses to
// signal unless force is set: the caller's own pid, init (pid 1), and the
// caller's ancestry up to pid 1. force is already known true or false by
// the caller, kept here only to make the empty-set short-circuit explicit.
//
// The ancestry walk uses a single go-ps.Processes() snapshot to build a
// pid/ppid map rather than one platform GetProcess call per ancestor hop.
func protectedPIDs(force bool) map[uint32]struct{} {
	protected := map[uint32]struct{}{}
	if force {
		return protected
	}

	self := uint32(os.Getpid())
	protected[self] = struct{}{}
	protected[1] = struct{}{}

	ppidOf := map[uint32]uint32{}
	if procs, err := ps.Processes(); err == nil {
		for _, proc := range procs {
			ppidOf[uint32(proc.Pid())] = uint32(proc.PPid())
		}
	}

	pid := uint32(os.Getppid())
	for depth := 0; depth < 4096 && pid > 1; depth++ {
		if _, ok := protected[pid]; ok {
			break
		}
		protected[pid] = struct{}{}
		next, ok := ppidOf[pid]
		if !ok {
			break
		}
		pid = next
	}
	return protected
}
