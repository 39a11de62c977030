//go:build !windows

package sysprimscore

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// posixGroup is the groupHandle implementation backing SpawnInGroup's
// tree-kill guarantee on POSIX: the child is made a process-group leader
// via setpgid(0,0) before exec, and the whole group is signaled with
// killpg.
type posixGroup struct {
	pgid int
}

func (g *posixGroup) SignalGroup(signo int) error {
	err := unix.Kill(-g.pgid, syscall.Signal(signo))
	if err != nil && err != unix.ESRCH {
		return NewError(ErrSystem, "killpg(%d, %d): %v", g.pgid, signo, err)
	}
	return nil
}

func (g *posixGroup) TerminateGroup() error {
	return g.SignalGroup(int(syscall.SIGKILL))
}

func (g *posixGroup) Close() {}

// spawnPosix starts cfg.Argv[0] under a fresh process group unless
// grouping is Foreground, and returns a SpawnedProcess the timeout engine
// can wait on and signal.
func spawnPosix(platformName string, cfg SpawnInGroupConfig, grouping GroupingMode) (*SpawnedProcess, error) {
	if len(cfg.Argv) == 0 {
		return nil, NewError(ErrInvalidArgument, "argv must not be empty")
	}

	cmd := exec.Command(cfg.Argv[0], cfg.Argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if cfg.Cwd != nil {
		cmd.Dir = *cfg.Cwd
	}
	if len(cfg.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	}

	var warnings []string
	reliability := ReliabilityBestEffort
	if grouping == GroupByDefault {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, mapSpawnError(err)
	}

	pid := uint32(cmd.Process.Pid)
	var pgidPtr *uint32
	var group groupHandle

	if grouping == GroupByDefault {
		pgid, err := unix.Getpgid(cmd.Process.Pid)
		if err != nil {
			warnings = append(warnings, "could not confirm process group after setpgid: "+err.Error())
		} else {
			u := uint32(pgid)
			pgidPtr = &u
			reliability = ReliabilityGuaranteed
			group = &posixGroup{pgid: pgid}
		}
	}

	result := SpawnInGroupResult{
		SchemaID:            SchemaSpawnInGroupResult,
		Timestamp:           nowISO8601(),
		Platform:            platformName,
		PID:                 pid,
		PGID:                pgidPtr,
		TreeKillReliability: reliability,
		Warnings:            warnings,
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	return &SpawnedProcess{
		Result: result,
		pid:    pid,
		group:  group,
		signal: func(signo int) error {
			if err := cmd.Process.Signal(syscall.Signal(signo)); err != nil && err != os.ErrProcessDone {
				return NewError(ErrSystem, "signal direct child: %v", err)
			}
			return nil
		},
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

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return -1
}

func mapSpawnError(err error) error {
	if os.IsNotExist(err) || errors.Is(err, exec.ErrNotFound) {
		return NewError(ErrNotFound, "command not found: %v", err)
	}
	if os.IsPermission(err) {
		return NewError(ErrPermissionDenied, "command not executable: %v", err)
	}
	return NewError(ErrSpawnFailed, "spawn failed: %v", err)
}

func mergeEnv(base []string, overrides map[string]string) []string {
	out := append([]string{}, base...)
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}

// selfPGIDPosix / selfSIDPosix back Platform.SelfPGID/SelfSID on every
// POSIX target.
func selfPGIDPosix() (uint32, error) {
	pgid, err := unix.Getpgid(0)
	if err != nil {
		return 0, NewError(ErrSystem, "getpgid: %v", err)
	}
	return uint32(pgid), nil
}

func selfSIDPosix() (uint32, error) {
	sid, err := unix.Getsid(0)
	if err != nil {
		return 0, NewError(ErrSystem, "getsid: %v", err)
	}
	return uint32(sid), nil
}

// signalSendPosix validates and dispatches a single-pid signal, mapping OS
// errors into the sysprims taxonomy.
func signalSendPosix(pid uint32, signo int) error {
	if err := ValidatePID(pid); err != nil {
		return err
	}
	err := unix.Kill(int(pid), syscall.Signal(signo))
	return mapSignalError(err, pid)
}

func signalSendGroupPosix(pgid uint32, signo int) error {
	if err := ValidatePGID(pgid); err != nil {
		return err
	}
	err := unix.Kill(-int(pgid), syscall.Signal(signo))
	return mapSignalError(err, pgid)
}

func mapSignalError(err error, target uint32) error {
	switch {
	case err == nil:
		return nil
	case err == unix.ESRCH:
		return NewError(ErrNotFound, "no such process: %d", target)
	case err == unix.EPERM:
		return NewError(ErrPermissionDenied, "permission denied signaling %d", target)
	case err == unix.EINVAL:
		return NewError(ErrInvalidArgument, "invalid signal")
	default:
		return NewError(ErrSystem, "kill(%d): %v", target, err)
	}
}
