//go:build linux

package sysprimscore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tcpStateNames mirrors the kernel's tcp_states enum as surfaced in
// /proc/net/tcp's "st" column.
var tcpStateNames = map[string]string{
	"01": "ESTABLISHED", "02": "SYN_SENT", "03": "SYN_RECV",
	"04": "FIN_WAIT1", "05": "FIN_WAIT2", "06": "TIME_WAIT",
	"07": "CLOSE", "08": "CLOSE_WAIT", "09": "LAST_ACK",
	"0A": "LISTEN", "0B": "CLOSING",
}

// inodeToPid cross-references socket inodes ("socket:[12345]" fd targets)
// with owning pids by scanning every process's /proc/<pid>/fd directory.
func inodeToPid() map[string]uint32 {
	out := map[string]uint32{}
	pids, err := listLinuxPids()
	if err != nil {
		return out
	}
	for _, pid := range pids {
		dir := fmt.Sprintf("/proc/%d/fd", pid)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			target, err := os.Readlink(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			if strings.HasPrefix(target, "socket:[") {
				inode := strings.TrimSuffix(strings.TrimPrefix(target, "socket:["), "]")
				out[inode] = uint32(pid)
			}
		}
	}
	return out
}

// parseNetFile parses one of /proc/net/{tcp,tcp6,udp,udp6}. Only
// listening-state entries are of interest to sysprims; for UDP, every bound
// socket counts as "listening" in the absence of a connection concept.
func parseNetFile(path string, proto Protocol, listenStateOnly bool, inodes map[string]uint32) ([]PortBinding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []PortBinding
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue // header line
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 10 {
			continue
		}
		localAddr := fields[1]
		state := fields[3]
		inode := fields[9]

		if listenStateOnly && state != "0A" {
			continue
		}

		parts := strings.Split(localAddr, ":")
		if len(parts) != 2 {
			continue
		}
		port, err := strconv.ParseUint(parts[1], 16, 16)
		if err != nil {
			continue
		}
		addr := decodeHexAddr(parts[0])

		binding := PortBinding{
			Protocol:  proto,
			LocalAddr: &addr,
			LocalPort: uint16(port),
		}
		if proto == ProtocolTCP {
			if name, ok := tcpStateNames[state]; ok {
				binding.State = &name
			}
		}
		if pid, ok := inodes[inode]; ok && pid != 0 {
			binding.PID = &pid
		}
		out = append(out, binding)
	}
	return out, sc.Err()
}

// decodeHexAddr converts /proc/net/tcp's little-endian hex-encoded address
// into dotted-quad (IPv4) or best-effort hex (IPv6, left as-is since sysprims
// treats local_addr as opaque display data).
func decodeHexAddr(hex string) string {
	if len(hex) == 8 {
		var b [4]byte
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return hex
			}
			b[3-i] = byte(v)
		}
		return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
	}
	return hex
}

func (p *linuxPlatform) ListeningPorts() ([]PortBinding, []string, error) {
	var warnings []string
	inodes := inodeToPid()

	sources := []struct {
		path     string
		proto    Protocol
		listenOK bool
	}{
		{"/proc/net/tcp", ProtocolTCP, true},
		{"/proc/net/tcp6", ProtocolTCP, true},
		{"/proc/net/udp", ProtocolUDP, false},
		{"/proc/net/udp6", ProtocolUDP, false},
	}

	var all []PortBinding
	for _, s := range sources {
		bindings, err := parseNetFile(s.path, s.proto, s.listenOK, inodes)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not read %s: %v", s.path, err))
			continue
		}
		all = append(all, bindings...)
	}
	return all, warnings, nil
}
