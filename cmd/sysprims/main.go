// Command sysprims is a thin CLI front end over the pkg/sysprims engine
// API. It never contains process-control logic of its own:
// every subcommand parses flags, calls into pkg/sysprims, and renders the
// result as a table or, under --json, as the same schema-tagged structure
// the FFI layer returns.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreproc/sysprims/internal/sysprimscore"
	"github.com/coreproc/sysprims/pkg/sysprims"
)

var jsonOutput bool

// logger carries diagnostics (warnings, best-effort degradation notes) to
// stderr, keeping stdout clean for machine-readable output.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
			if jsonOutput {
				_ = printJSON(os.Stdout, errorEnvelope(err))
			}
		}
		os.Exit(exitCodeFor(err))
	}
}

// errorShape is the schema-tagged error object printed under --json: CLI
// error reporting mirrors the structured result any other command prints,
// rather than going out as a bare string.
type errorShape struct {
	SchemaID string `json:"schema_id"`
	Code     int32  `json:"code"`
	CodeName string `json:"code_name"`
	Message  string `json:"message"`
}

const schemaCLIError = "https://schemas.coreproc.dev/sysprims/process/v1.0.0/cli-error.schema.json"

func errorEnvelope(err error) errorShape {
	se := sysprimscore.AsError(unwrapCLIExit(err))
	return errorShape{
		SchemaID: schemaCLIError,
		Code:     int32(se.Code),
		CodeName: se.Code.String(),
		Message:  se.Message,
	}
}

// cliExit overrides the exit code main() reports for RunE without
// disturbing ordinary error-message printing or --json envelope
// rendering. Used only by the timeout subcommand, whose exit codes
// follow the timeout(1) convention rather than every other
// subcommand's "exit code equals engine error code" rule: success = 0
// (or the child's own exit code under --preserve-status), timed_out =
// 124, spawn-not-executable = 126, spawn-not-found = 127, killed by
// signal N = 128+N, and any other engine error = 125. A nil Err means
// the underlying call succeeded and only the exit code carries meaning;
// main() prints nothing for it.
type cliExit struct {
	code int
	err  error
}

func (c *cliExit) Error() string {
	if c.err == nil {
		return ""
	}
	return c.err.Error()
}

func (c *cliExit) Unwrap() error { return c.err }

func unwrapCLIExit(err error) error {
	var ce *cliExit
	if errors.As(err, &ce) && ce.err != nil {
		return ce.err
	}
	return err
}

// exitCodeFor maps an error to a process exit code using the engine's
// stable numeric error taxonomy: the CLI's exit code is the
// same number a caller would see in last_error_code(). Errors this
// process raised itself (bad flags, etc.) fall back to InvalidArgument.
// A *cliExit overrides this with the timeout subcommand's own convention.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ce *cliExit
	if errors.As(err, &ce) {
		return ce.code
	}
	var se *sysprimscore.Error
	if errors.As(err, &se) {
		return int(se.Code)
	}
	return int(sysprimscore.ErrInvalidArgument)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sysprims",
		Short:         "Cross-platform process control: timeouts, signals, inspection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit structured JSON instead of a table")

	root.AddCommand(
		newTimeoutCmd(),
		newSignalCmd(),
		newPsCmd(),
		newDescendantsCmd(),
		newKillDescendantsCmd(),
		newFdsCmd(),
		newPortsCmd(),
		newWaitCmd(),
		newTerminateTreeCmd(),
	)
	return root
}

func newTimeoutCmd() *cobra.Command {
	var (
		deadline       time.Duration
		killAfter      time.Duration
		signal         string
		foreground     bool
		preserveStatus bool
	)

	cmd := &cobra.Command{
		Use:   "timeout -- <command> [args...]",
		Short: "Run a command, killing its process tree if it exceeds a deadline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signo, err := sysprimscore.ResolveSignalInput(signal)
			if err != nil {
				return err
			}
			grouping := sysprims.GroupByDefault
			if foreground {
				grouping = sysprims.Foreground
			}
			result, err := sysprims.RunWithTimeout(args[0], args[1:], deadline, sysprims.TimeoutConfig{
				Signal:    signo,
				KillAfter: killAfter,
				Grouping:  grouping,
				// Always ask the engine for the child's exit code;
				// without --preserve-status it is dropped below, from
				// the rendered result and from the process exit
				// status alike.
				PreserveStatus: true,
			})
			if err != nil {
				return &cliExit{code: timeoutSpawnExitCode(err), err: err}
			}
			if !preserveStatus {
				result.ExitCode = nil
			}
			if jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				renderTimeoutOutcome(cmd.OutOrStdout(), result)
			}
			return &cliExit{code: timeoutExitCode(result)}
		},
	}
	cmd.Flags().DurationVar(&deadline, "deadline", 10*time.Second, "time allowed before the process is signaled")
	cmd.Flags().DurationVar(&killAfter, "kill-after", 5*time.Second, "grace period after signaling before force-kill")
	cmd.Flags().StringVar(&signal, "signal", "SIGTERM", "signal to send on deadline expiry (name or number)")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "signal only the direct child, not its process group")
	cmd.Flags().BoolVar(&preserveStatus, "preserve-status", false, "exit with the child's own exit code on normal completion")
	return cmd
}

func newSignalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Send signals to processes or process groups",
	}
	cmd.AddCommand(newSignalSendCmd(), newSignalGroupCmd(), newSignalTerminateCmd(), newSignalForceKillCmd())
	return cmd
}

func newSignalSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <pid> <signal>",
		Short: "Send a named or numeric signal to a pid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			signo, err := sysprimscore.ResolveSignalInput(args[1])
			if err != nil {
				return err
			}
			if err := sysprims.Kill(pid, signo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent signal %d to pid %d\n", signo, pid)
			return nil
		},
	}
}

func newSignalGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "group <pgid> <signal>",
		Short: "Send a signal to a process group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pgid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			signo, err := sysprimscore.ResolveSignalInput(args[1])
			if err != nil {
				return err
			}
			if err := sysprims.KillGroup(pgid, signo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent signal %d to pgid %d\n", signo, pgid)
			return nil
		},
	}
}

func newSignalTerminateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminate <pid>",
		Short: "Send SIGTERM to a pid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			if err := sysprims.Terminate(pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "terminated pid %d\n", pid)
			return nil
		},
	}
}

func newSignalForceKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force-kill <pid>",
		Short: "Send SIGKILL to a pid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			if err := sysprims.ForceKill(pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "force-killed pid %d\n", pid)
			return nil
		},
	}
}

func newPsCmd() *cobra.Command {
	var (
		nameContains   string
		userEquals     string
		includeEnv     bool
		includeThreads bool
	)

	list := &cobra.Command{
		Use:   "ps",
		Short: "List running processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := buildProcessFilter(nameContains, userEquals)
			snap, warnings, err := sysprims.ProcessListWithOptions(filter, &sysprims.ProcessOptions{
				IncludeEnv:     includeEnv,
				IncludeThreads: includeThreads,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			renderProcessTable(cmd.OutOrStdout(), snap)
			for _, w := range warnings {
				logger.Warn(w)
			}
			return nil
		},
	}
	list.Flags().StringVar(&nameContains, "name-contains", "", "filter by substring of process name")
	list.Flags().StringVar(&userEquals, "user", "", "filter by exact username")
	list.Flags().BoolVar(&includeEnv, "include-env", false, "include each process's environment")
	list.Flags().BoolVar(&includeThreads, "include-threads", false, "include each process's thread count")

	get := &cobra.Command{
		Use:   "get <pid>",
		Short: "Show a single process by pid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			info, err := sysprims.ProcessGetWithOptions(pid, &sysprims.ProcessOptions{
				IncludeEnv:     includeEnv,
				IncludeThreads: includeThreads,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), info)
			}
			renderProcessInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
	get.Flags().BoolVar(&includeEnv, "include-env", false, "include the process's environment")
	get.Flags().BoolVar(&includeThreads, "include-threads", false, "include the process's thread count")

	list.AddCommand(get)
	return list
}

func newDescendantsCmd() *cobra.Command {
	var (
		maxLevels    uint32
		nameContains string
	)
	cmd := &cobra.Command{
		Use:   "descendants <pid>",
		Short: "List a process's descendant tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			filter := buildProcessFilter(nameContains, "")
			result, err := sysprims.Descendants(pid, maxLevels, filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			renderDescendants(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&maxLevels, "max-levels", 0, "traversal depth; 0 means unbounded")
	cmd.Flags().StringVar(&nameContains, "name-contains", "", "filter by substring of process name")
	return cmd
}

func newKillDescendantsCmd() *cobra.Command {
	var (
		maxLevels    uint32
		signal       string
		nameContains string
		dryRun       bool
		yes          bool
		force        bool
	)
	cmd := &cobra.Command{
		Use:   "kill-descendants <pid>",
		Short: "Signal a process's descendants",
		Long: `Signal a process's descendants.

Self, pid 1, and the caller's own ancestry are never targeted unless
--force is given. When --name-contains narrows the selection, the
command defaults to a dry run (no signal sent) unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			signo, err := sysprimscore.ResolveSignalInput(signal)
			if err != nil {
				return err
			}
			filter := buildProcessFilter(nameContains, "")
			result, err := sysprims.KillDescendantsWithOptions(pid, &sysprims.KillDescendantsOptions{
				Signal:    signo,
				MaxLevels: &maxLevels,
				Filter:    filter,
				DryRun:    dryRun,
				Yes:       yes,
				Force:     force,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			renderKillDescendants(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&maxLevels, "max-levels", 0, "traversal depth; 0 means unbounded")
	cmd.Flags().StringVar(&signal, "signal", "SIGTERM", "signal to send (name or number)")
	cmd.Flags().StringVar(&nameContains, "name-contains", "", "filter by substring of process name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview targets without signaling")
	cmd.Flags().BoolVar(&yes, "yes", false, "actually signal targets when a filter is set")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the self/pid1/ancestry safety exclusion")
	return cmd
}

func newFdsCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "fds <pid>",
		Short: "List a process's open file descriptors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			var filter *sysprims.FdFilter
			if kind != "" {
				filter = &sysprims.FdFilter{Kind: &kind}
			}
			snap, err := sysprims.ListFds(pid, filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			renderFds(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by fd kind: file, socket, pipe")
	return cmd
}

func newPortsCmd() *cobra.Command {
	var (
		protocol string
		port     uint16
	)
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List listening ports, best-effort attributed to a pid",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *sysprims.PortFilter
			if protocol != "" || port != 0 {
				filter = &sysprims.PortFilter{}
				if protocol != "" {
					p := sysprims.Protocol(protocol)
					filter.Protocol = &p
				}
				if port != 0 {
					filter.LocalPort = &port
				}
			}
			snap, err := sysprims.ListeningPorts(filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			renderPorts(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "filter by protocol: tcp, udp")
	cmd.Flags().Uint16Var(&port, "port", 0, "filter by local port")
	return cmd
}

func newWaitCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <pid>",
		Short: "Wait for a pid to exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			result, err := sysprims.WaitPID(pid, timeout)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			renderWaitPID(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait before giving up")
	return cmd
}

func newTerminateTreeCmd() *cobra.Command {
	var (
		graceTimeout time.Duration
		killTimeout  time.Duration
		signal       string
		killSignal   string
	)
	cmd := &cobra.Command{
		Use:   "terminate-tree <pid>",
		Short: "Signal a pid and every descendant discovered at call time, escalating if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			cfg := sysprims.TerminateTreeConfig{}
			if graceTimeout > 0 {
				ms := uint64(graceTimeout / time.Millisecond)
				cfg.GraceTimeoutMS = &ms
			}
			if killTimeout > 0 {
				ms := uint64(killTimeout / time.Millisecond)
				cfg.KillTimeoutMS = &ms
			}
			if signal != "" {
				signo, err := sysprimscore.ResolveSignalInput(signal)
				if err != nil {
					return err
				}
				s := int32(signo)
				cfg.Signal = &s
			}
			if killSignal != "" {
				signo, err := sysprimscore.ResolveSignalInput(killSignal)
				if err != nil {
					return err
				}
				s := int32(signo)
				cfg.KillSignal = &s
			}
			result, err := sysprims.TerminateTree(pid, cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			renderTerminateTree(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().DurationVar(&graceTimeout, "grace-timeout", 3*time.Second, "time to wait after the graceful signal before escalating")
	cmd.Flags().DurationVar(&killTimeout, "kill-timeout", 2*time.Second, "time to wait after the kill signal before giving up")
	cmd.Flags().StringVar(&signal, "signal", "SIGTERM", "graceful signal to send first (name or number)")
	cmd.Flags().StringVar(&killSignal, "kill-signal", "SIGKILL", "escalation signal (name or number)")
	return cmd
}

// timeoutExitCode implements the timeout(1) exit-code convention for a
// completed-or-timed-out run: timed_out always exits 124 regardless of
// whether the group cooperated with the signal; a normal completion
// exits with the child's own status when the result still carries it
// (--preserve-status; already 128+N if the child died from an uncaught
// signal of its own, via exitCodeOf), and with 0 otherwise.
func timeoutExitCode(result *sysprims.TimeoutResult) int {
	if result.Status == sysprimscore.StatusTimedOut {
		return 124
	}
	if result.ExitCode != nil {
		return *result.ExitCode
	}
	return 0
}

// timeoutSpawnExitCode classifies a spawn-time failure into the
// remaining slots of that convention: 126 for a target that
// exists but can't execute, 127 for one that doesn't exist at all, 125
// for anything else the engine couldn't otherwise classify.
func timeoutSpawnExitCode(err error) int {
	switch sysprimscore.AsError(err).Code {
	case sysprimscore.ErrPermissionDenied:
		return 126
	case sysprimscore.ErrNotFound:
		return 127
	default:
		return 125
	}
}

func parsePID(s string) (uint32, error) {
	var pid uint64
	_, err := fmt.Sscanf(s, "%d", &pid)
	if err != nil || pid > 0xFFFFFFFF {
		return 0, sysprimscore.NewError(sysprimscore.ErrInvalidArgument, "invalid pid: %q", s)
	}
	return uint32(pid), nil
}

func buildProcessFilter(nameContains, userEquals string) *sysprims.ProcessFilter {
	if nameContains == "" && userEquals == "" {
		return nil
	}
	f := &sysprims.ProcessFilter{}
	if nameContains != "" {
		f.NameContains = &nameContains
	}
	if userEquals != "" {
		f.UserEquals = &userEquals
	}
	return f
}
