//go:build darwin

package sysprimscore

import "strings"

// darwinSignalOverrides holds the handful of signal numbers that differ
// between Linux and macOS; everything else resolves through the portable
// table in ids.go.
var darwinSignalOverrides = map[string]int{
	"SIGUSR1": 30,
	"SIGUSR2": 31,
	"SIGSTOP": 17,
	"SIGCONT": 19,
}

func resolveDarwinSignal(name string) (int, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(trimmed, "SIG") {
		trimmed = "SIG" + trimmed
	}
	if n, ok := darwinSignalOverrides[trimmed]; ok {
		return n, nil
	}
	return ResolveSignalInput(name)
}
