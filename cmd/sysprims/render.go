package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/coreproc/sysprims/pkg/sysprims"
)

// newTable returns the two-space-padded tabwriter every table renderer
// shares.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optStr(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func optU64(p *uint64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatUint(*p, 10)
}

func renderProcessTable(w io.Writer, snap *sysprims.ProcessSnapshot) {
	tw := newTable(w)
	fmt.Fprintln(tw, "PID\tPPID\tUSER\tSTATE\tCPU%\tMEM(KB)\tNAME")
	for _, p := range snap.Processes {
		state := "-"
		if p.State != nil {
			state = string(*p.State)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%.1f\t%d\t%s\n",
			p.PID, p.PPID, optStr(p.User), state, p.CPUPercent, p.MemoryKB, p.Name)
	}
	tw.Flush()
}

func renderProcessInfo(w io.Writer, p *sysprims.ProcessInfo) {
	tw := newTable(w)
	fmt.Fprintf(tw, "pid\t%d\n", p.PID)
	fmt.Fprintf(tw, "ppid\t%d\n", p.PPID)
	fmt.Fprintf(tw, "name\t%s\n", p.Name)
	fmt.Fprintf(tw, "user\t%s\n", optStr(p.User))
	fmt.Fprintf(tw, "cpu_percent\t%.1f\n", p.CPUPercent)
	fmt.Fprintf(tw, "memory_kb\t%d\n", p.MemoryKB)
	fmt.Fprintf(tw, "elapsed_seconds\t%s\n", optU64(p.ElapsedSeconds))
	if p.ExePath != nil {
		fmt.Fprintf(tw, "exe_path\t%s\n", *p.ExePath)
	}
	if len(p.Cmdline) > 0 {
		fmt.Fprintf(tw, "cmdline\t%v\n", p.Cmdline)
	}
	tw.Flush()
}

func renderDescendants(w io.Writer, r *sysprims.DescendantsResult) {
	tw := newTable(w)
	fmt.Fprintln(tw, "LEVEL\tPID\tPPID\tNAME")
	for _, lvl := range r.Levels {
		for _, p := range lvl.Processes {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", lvl.Level, p.PID, p.PPID, p.Name)
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "total_found=%d matched_by_filter=%d\n", r.TotalFound, r.MatchedByFilter)
}

func renderKillDescendants(w io.Writer, r *sysprims.KillDescendantsResult) {
	if r.DryRun {
		fmt.Fprintf(w, "dry run: %d target(s) would receive signal %d (skipped_safety=%d)\n",
			len(r.Targets), r.SignalSent, r.SkippedSafety)
		for _, pid := range r.Targets {
			fmt.Fprintf(w, "  %d\n", pid)
		}
		return
	}
	fmt.Fprintf(w, "signaled %d, failed %d, skipped_safety=%d\n",
		len(r.Succeeded), len(r.Failed), r.SkippedSafety)
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  %d: %s\n", f.PID, f.Error)
	}
}

func renderFds(w io.Writer, s *sysprims.FdSnapshot) {
	tw := newTable(w)
	fmt.Fprintln(tw, "FD\tKIND\tPATH")
	for _, fd := range s.Fds {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", fd.Fd, fd.Kind, optStr(fd.Path))
	}
	tw.Flush()
	for _, warn := range s.Warnings {
		logger.Warn(warn)
	}
}

func renderPorts(w io.Writer, s *sysprims.PortBindingsSnapshot) {
	tw := newTable(w)
	fmt.Fprintln(tw, "PROTO\tLOCAL\tPORT\tSTATE\tPID")
	for _, b := range s.Bindings {
		pid := "-"
		if b.PID != nil {
			pid = strconv.FormatUint(uint64(*b.PID), 10)
		}
		var state string
		if b.State != nil {
			state = *b.State
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", b.Protocol, optStr(b.LocalAddr), b.LocalPort, state, pid)
	}
	tw.Flush()
	for _, warn := range s.Warnings {
		logger.Warn(warn)
	}
}

func renderTimeoutOutcome(w io.Writer, r *sysprims.TimeoutResult) {
	fmt.Fprintf(w, "status=%s", r.Status)
	if r.ExitCode != nil {
		fmt.Fprintf(w, " exit_code=%d", *r.ExitCode)
	}
	if r.SignalSent != nil {
		fmt.Fprintf(w, " signal_sent=%d", *r.SignalSent)
	}
	if r.Escalated != nil {
		fmt.Fprintf(w, " escalated=%v", *r.Escalated)
	}
	if r.TreeKillReliability != nil {
		fmt.Fprintf(w, " reliability=%s", *r.TreeKillReliability)
	}
	fmt.Fprintln(w)
	for _, warn := range r.Warnings {
		logger.Warn(warn)
	}
}

func renderTerminateTree(w io.Writer, r *sysprims.TerminateTreeResult) {
	fmt.Fprintf(w, "pid=%d signal_sent=%d escalated=%v exited=%v timed_out=%v reliability=%s\n",
		r.PID, r.SignalSent, r.Escalated, r.Exited, r.TimedOut, r.TreeKillReliability)
	for _, warn := range r.Warnings {
		logger.Warn(warn)
	}
}

func renderWaitPID(w io.Writer, r *sysprims.WaitPidResult) {
	fmt.Fprintf(w, "pid=%d exited=%v timed_out=%v", r.PID, r.Exited, r.TimedOut)
	if r.ExitCode != nil {
		fmt.Fprintf(w, " exit_code=%d", *r.ExitCode)
	}
	fmt.Fprintln(w)
}

