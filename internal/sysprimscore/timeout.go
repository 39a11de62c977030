package sysprimscore

import "time"

// RunWithTimeout spawns cfg.Command in a fresh process group (or Job
// Object) and drives the Spawning -> Running -> Completed | Terminating ->
// Escalating state machine:
//
//  1. Spawn the child, isolated unless Grouping is Foreground.
//  2. Wait up to Deadline for it to exit on its own (Running).
//  3. On deadline expiry, signal the whole group with cfg.Signal
//     (default SIGTERM) and wait up to KillAfter (Terminating).
//  4. If still alive, force-kill the group and wait a bounded grace
//     period for the OS to reap it (Escalating).
func RunWithTimeout(cfg TimeoutConfig) (*TimeoutOutcome, error) {
	argv := append([]string{cfg.Command}, cfg.Args...)
	proc, err := Current.SpawnInGroup(SpawnInGroupConfig{Argv: argv, Cwd: cfg.Cwd, Env: cfg.Env}, cfg.Grouping)
	if err != nil {
		return nil, err
	}
	defer proc.Close()

	warnings := append([]string{}, proc.Result.Warnings...)
	reliability := proc.Result.TreeKillReliability

	// Running: wait for natural completion within the deadline.
	exited, exitCode, err := proc.Wait(time.Duration(cfg.Deadline) * time.Millisecond)
	if err != nil {
		return nil, NewError(ErrSystem, "wait for child: %v", err)
	}
	if exited {
		code := exitCode
		outcome := &TimeoutOutcome{
			SchemaID: SchemaTimeoutOutcome,
			Status:   StatusCompleted,
			Warnings: warnings,
		}
		if cfg.PreserveStatus {
			outcome.ExitCode = &code
		}
		return outcome, nil
	}

	// Terminating: deadline expired, signal the whole group and give it
	// KillAfter to exit gracefully.
	signo := cfg.Signal
	if signo == 0 {
		signo, err = Current.SignalNumber("SIGTERM")
		if err != nil {
			signo = 15
		}
	}
	if err := proc.SignalGroup(signo); err != nil {
		warnings = append(warnings, "signal on timeout failed: "+err.Error())
	}

	exited, exitCode, err = proc.Wait(time.Duration(cfg.KillAfter) * time.Millisecond)
	if err != nil {
		warnings = append(warnings, "wait after signal failed: "+err.Error())
	}
	if exited {
		escalated := false
		code := exitCode
		signalSent := signo
		outcome := &TimeoutOutcome{
			SchemaID:            SchemaTimeoutOutcome,
			Status:              StatusTimedOut,
			SignalSent:          &signalSent,
			Escalated:           &escalated,
			TreeKillReliability: &reliability,
			Warnings:            warnings,
		}
		if cfg.PreserveStatus {
			outcome.ExitCode = &code
		}
		return outcome, nil
	}

	// Escalating: the child ignored the first signal (or the group
	// delivery was only best-effort); force-kill and give the OS a
	// bounded grace period to reap it before giving up.
	if err := proc.TerminateGroup(); err != nil {
		warnings = append(warnings, "force-kill on escalation failed: "+err.Error())
	}
	exited, exitCode, _ = proc.Wait(2 * time.Second)

	escalated := true
	signalSent := signo
	code := exitCode
	outcome := &TimeoutOutcome{
		SchemaID:            SchemaTimeoutOutcome,
		Status:              StatusTimedOut,
		SignalSent:          &signalSent,
		Escalated:           &escalated,
		TreeKillReliability: &reliability,
		Warnings:            warnings,
	}
	if cfg.PreserveStatus && exited {
		outcome.ExitCode = &code
	}
	return outcome, nil
}

// TerminateTree gracefully, then forcefully, terminates pid and every
// descendant discovered at call time. It is the RunWithTimeout companion
// for a pid the caller already holds rather than one this process spawned.
// When RequireExePath or RequireStartTimeMS is set, the target's identity
// is verified first so a recycled pid belonging to an unrelated process is
// never acted on.
func TerminateTree(pid uint32, cfg TerminateTreeConfig) (*TerminateTreeResult, error) {
	if err := ValidatePID(pid); err != nil {
		return nil, err
	}

	target, err := Current.GetProcess(pid, ProcessOptions{})
	if err != nil {
		return nil, err
	}
	if err := verifyTargetIdentity(target, cfg); err != nil {
		return nil, err
	}

	signal := int32(15) // SIGTERM
	if cfg.Signal != nil {
		signal = *cfg.Signal
	}
	killSignal := int32(9) // SIGKILL
	if cfg.KillSignal != nil {
		killSignal = *cfg.KillSignal
	}
	graceMS := uint64(3000)
	if cfg.GraceTimeoutMS != nil {
		graceMS = *cfg.GraceTimeoutMS
	}
	killMS := uint64(2000)
	if cfg.KillTimeoutMS != nil {
		killMS = *cfg.KillTimeoutMS
	}

	members, err := collectTreeMembers(pid)
	if err != nil {
		return nil, err
	}

	result := &TerminateTreeResult{
		SchemaID:            SchemaTerminateTreeResult,
		Timestamp:           nowISO8601(),
		Platform:            Current.Name(),
		PID:                 pid,
		SignalSent:          signal,
		TreeKillReliability: ReliabilityBestEffort,
	}

	for _, res := range SendBatch(members, int(signal)) {
		if res.Error != "" {
			result.Warnings = append(result.Warnings, res.Error)
		}
	}

	if waitAllExited(members, time.Duration(graceMS)*time.Millisecond) {
		result.Exited = true
		return result, nil
	}

	result.Escalated = true
	result.KillSignal = &killSignal
	for _, res := range SendBatch(members, int(killSignal)) {
		if res.Error != "" {
			result.Warnings = append(result.Warnings, res.Error)
		}
	}

	if waitAllExited(members, time.Duration(killMS)*time.Millisecond) {
		result.Exited = true
	} else {
		result.TimedOut = true
	}
	return result, nil
}

func verifyTargetIdentity(target *ProcessInfo, cfg TerminateTreeConfig) error {
	if cfg.RequireExePath != nil {
		if target.ExePath == nil || *target.ExePath != *cfg.RequireExePath {
			return NewError(ErrInvalidArgument, "process %d exe path does not match require_exe_path; refusing to act on a possibly recycled pid", target.PID)
		}
	}
	if cfg.RequireStartTimeMS != nil {
		if target.StartTimeUnixMS == nil || *target.StartTimeUnixMS != *cfg.RequireStartTimeMS {
			return NewError(ErrInvalidArgument, "process %d start time does not match require_start_time_unix_ms; refusing to act on a possibly recycled pid", target.PID)
		}
	}
	return nil
}

// collectTreeMembers returns rootPID plus every descendant discovered via
// an unbounded BFS, without applying any filter.
func collectTreeMembers(rootPID uint32) ([]uint32, error) {
	descendants, err := Descendants(rootPID, 0, nil, DescendantsConfig{})
	if err != nil {
		return nil, err
	}
	members := []uint32{rootPID}
	for _, level := range descendants.Levels {
		for _, p := range level.Processes {
			members = append(members, p.PID)
		}
	}
	return members, nil
}

// waitAllExited polls every member pid until all have exited or timeout
// elapses, using GetProcess's ErrNotFound as the exit signal (the same
// race-tolerant approach platform_linux.go and platform_darwin.go use for
// enumeration).
func waitAllExited(pids []uint32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	backoff := 20 * time.Millisecond
	const maxBackoff = 250 * time.Millisecond

	for {
		allExited := true
		for _, pid := range pids {
			if _, err := Current.GetProcess(pid, ProcessOptions{}); err == nil {
				allExited = false
				break
			}
		}
		if allExited {
			return true
		}
		if time.Now().After(deadline) {
			return false
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
