// Command sysprims-ffi is the cgo entry point compiled with
// -buildmode=c-shared into a C ABI library (sysprims.h). It is a thin,
// JSON-at-the-boundary wrapper over pkg/sysprims: every exported function
// here does argument marshaling and thread-local error bookkeeping only,
// never engine logic.
package main

/*
#include "sysprims.h"
#include <stdlib.h>
*/
import "C"

import (
	"encoding/json"
	"fmt"
	"time"
	"unsafe"

	client "github.com/coreproc/sysprims/pkg/sysprims"
)

// decodeStrict wraps client.DecodeStrict with the FFI convention that a
// decode failure is always reported as ErrInvalidArgument, with msg
// naming which payload failed.
func decodeStrict(data []byte, dst interface{}, msg string) error {
	if err := client.DecodeStrict(data, dst); err != nil {
		if se, ok := err.(*client.Error); ok {
			return &client.Error{Code: se.Code, Message: msg + ": " + se.Message}
		}
		return &client.Error{Code: client.ErrInvalidArgument, Message: msg + ": " + err.Error()}
	}
	return nil
}

func main() {}

const abiVersion = 1

var versionCStr = C.CString("0.1.0")

//export sysprims_version
func sysprims_version() *C.char {
	return versionCStr
}

//export sysprims_abi_version
func sysprims_abi_version() C.uint32_t {
	return C.uint32_t(abiVersion)
}

//export sysprims_get_platform
func sysprims_get_platform() *C.char {
	return C.CString(client.Platform())
}

//export sysprims_last_error
func sysprims_last_error() *C.char {
	return C.CString(takeLastError())
}

//export sysprims_last_error_code
func sysprims_last_error_code() C.int32_t {
	return C.int32_t(takeLastErrorCode())
}

//export sysprims_clear_error
func sysprims_clear_error() {
	clearLastError()
}

//export sysprims_free_string
func sysprims_free_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

// finish records err (if any) in the calling thread's last-error slot and
// returns the code the C caller should see.
func finish(err error) C.SysprimsErrorCode {
	if err == nil {
		clearLastError()
		return C.SYSPRIMS_ERROR_CODE_OK
	}
	se := clientError(err)
	setLastError(int32(se.Code), se.Message)
	return C.SysprimsErrorCode(se.Code)
}

// protect converts a panic escaping an exported call into an Internal
// error code; a panic must never unwind across the C boundary.
func protect(code *C.SysprimsErrorCode) {
	if r := recover(); r != nil {
		*code = finish(&client.Error{Code: client.ErrInternal, Message: fmt.Sprintf("internal panic: %v", r)})
	}
}

func clientError(err error) *client.Error {
	if se, ok := err.(*client.Error); ok {
		return se
	}
	return &client.Error{Code: client.ErrSystem, Message: err.Error()}
}

// emit marshals v to JSON and writes a newly allocated C string through
// out. Called only after err == nil has already been confirmed by the
// caller.
func emit(out **C.char, v interface{}) C.SysprimsErrorCode {
	b, err := json.Marshal(v)
	if err != nil {
		return finish(&client.Error{Code: client.ErrInternal, Message: "failed to marshal response: " + err.Error()})
	}
	*out = C.CString(string(b))
	return finish(nil)
}

func goOptionalString(s *C.char) *string {
	if s == nil {
		return nil
	}
	str := C.GoString(s)
	if str == "" {
		return nil
	}
	return &str
}

func decodeFilter(s *C.char) (*client.ProcessFilter, error) {
	raw := goOptionalString(s)
	if raw == nil {
		return nil, nil
	}
	var f client.ProcessFilter
	if err := decodeStrict([]byte(*raw), &f, "invalid filter JSON"); err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeOptions(s *C.char) (*client.ProcessOptions, error) {
	raw := goOptionalString(s)
	if raw == nil {
		return nil, nil
	}
	var o client.ProcessOptions
	if err := decodeStrict([]byte(*raw), &o, "invalid options JSON"); err != nil {
		return nil, err
	}
	return &o, nil
}

// --- Signals ---------------------------------------------------------------

//export sysprims_signal_send
func sysprims_signal_send(pid C.uint32_t, signal C.int32_t) (code C.SysprimsErrorCode) {
	defer protect(&code)
	return finish(client.Kill(uint32(pid), int(signal)))
}

//export sysprims_signal_send_group
func sysprims_signal_send_group(pgid C.uint32_t, signal C.int32_t) (code C.SysprimsErrorCode) {
	defer protect(&code)
	return finish(client.KillGroup(uint32(pgid), int(signal)))
}

//export sysprims_terminate
func sysprims_terminate(pid C.uint32_t) (code C.SysprimsErrorCode) {
	defer protect(&code)
	return finish(client.Terminate(uint32(pid)))
}

//export sysprims_force_kill
func sysprims_force_kill(pid C.uint32_t) (code C.SysprimsErrorCode) {
	defer protect(&code)
	return finish(client.ForceKill(uint32(pid)))
}

// --- Process inspection ------------------------------------------------

//export sysprims_proc_list_ex
func sysprims_proc_list_ex(filterJSON, optionsJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	filter, err := decodeFilter(filterJSON)
	if err != nil {
		return finish(err)
	}
	opts, err := decodeOptions(optionsJSON)
	if err != nil {
		return finish(err)
	}
	snapshot, _, err := client.ProcessListWithOptions(filter, opts)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, snapshot)
}

//export sysprims_proc_get_ex
func sysprims_proc_get_ex(pid C.uint32_t, optionsJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	opts, err := decodeOptions(optionsJSON)
	if err != nil {
		return finish(err)
	}
	info, err := client.ProcessGetWithOptions(uint32(pid), opts)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, info)
}

//export sysprims_proc_list_fds
func sysprims_proc_list_fds(pid C.uint32_t, filterJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	raw := goOptionalString(filterJSON)
	var filter *client.FdFilter
	if raw != nil {
		filter = &client.FdFilter{}
		if err := decodeStrict([]byte(*raw), filter, "invalid filter JSON"); err != nil {
			return finish(err)
		}
	}
	snapshot, err := client.ListFds(uint32(pid), filter)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, snapshot)
}

//export sysprims_proc_wait_pid
func sysprims_proc_wait_pid(pid C.uint32_t, timeoutMS C.uint64_t, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	result, err := client.WaitPID(uint32(pid), time.Duration(timeoutMS)*time.Millisecond)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, result)
}

type descendantsConfigJSON struct {
	client.ProcessFilter
	CpuMode        client.CpuMode `json:"cpu_mode,omitempty"`
	SampleDuration uint64         `json:"sample_duration_ms,omitempty"`
}

//export sysprims_proc_descendants_ex
func sysprims_proc_descendants_ex(rootPID, maxLevels C.uint32_t, configJSON, reserved *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	opts, err := decodeDescendantsConfig(configJSON)
	if err != nil {
		return finish(err)
	}
	result, err := client.DescendantsWithOptions(uint32(rootPID), &client.DescendantsOptions{
		MaxLevels:      levelsPtr(uint32(maxLevels)),
		Filter:         opts.filter,
		CpuMode:        opts.cpuMode,
		SampleDuration: opts.sampleDuration,
	})
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, result)
}

type killDescendantsConfigJSON struct {
	descendantsConfigJSON
	DryRun bool `json:"dry_run,omitempty"`
	Yes    bool `json:"yes,omitempty"`
	Force  bool `json:"force,omitempty"`
}

//export sysprims_proc_kill_descendants_ex
func sysprims_proc_kill_descendants_ex(rootPID, maxLevels C.uint32_t, signal C.int32_t, configJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	raw := goOptionalString(configJSON)
	var cfg killDescendantsConfigJSON
	if raw != nil {
		if err := decodeStrict([]byte(*raw), &cfg, "invalid kill-descendants config JSON"); err != nil {
			return finish(err)
		}
	}
	var filter *client.ProcessFilter
	if !isEmptyProcessFilter(cfg.ProcessFilter) {
		f := cfg.ProcessFilter
		filter = &f
	}

	result, err := client.KillDescendantsWithOptions(uint32(rootPID), &client.KillDescendantsOptions{
		Signal:         int(signal),
		MaxLevels:      levelsPtr(uint32(maxLevels)),
		Filter:         filter,
		CpuMode:        cfg.CpuMode,
		SampleDuration: time.Duration(cfg.SampleDuration) * time.Millisecond,
		DryRun:         cfg.DryRun,
		Yes:            cfg.Yes,
		Force:          cfg.Force,
	})
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, result)
}

// isEmptyProcessFilter reports whether no predicate field was set, so
// callers can distinguish "filter omitted" from "filter present but
// matches everything" (the latter still triggers the dry-run-by-default
// safety policy in sysprimscore.KillDescendants).
func isEmptyProcessFilter(f client.ProcessFilter) bool {
	return f.NameContains == nil && f.NameEquals == nil && f.UserEquals == nil &&
		len(f.PIDIn) == 0 && f.PPID == nil && len(f.StateIn) == 0 &&
		f.CPUAbove == nil && f.MemoryAboveKB == nil && f.RunningForAtLeastSecs == nil
}

// levelsPtr passes max_levels through unchanged; 0 already means
// unbounded all the way down.
func levelsPtr(v uint32) *uint32 {
	return &v
}

type decodedDescendantsConfig struct {
	filter         *client.ProcessFilter
	cpuMode        client.CpuMode
	sampleDuration time.Duration
}

func decodeDescendantsConfig(s *C.char) (decodedDescendantsConfig, error) {
	raw := goOptionalString(s)
	if raw == nil {
		return decodedDescendantsConfig{}, nil
	}
	var cfg descendantsConfigJSON
	if err := decodeStrict([]byte(*raw), &cfg, "invalid descendants config JSON"); err != nil {
		return decodedDescendantsConfig{}, err
	}
	filter := cfg.ProcessFilter
	return decodedDescendantsConfig{
		filter:         &filter,
		cpuMode:        cfg.CpuMode,
		sampleDuration: time.Duration(cfg.SampleDuration) * time.Millisecond,
	}, nil
}

//export sysprims_proc_listening_ports
func sysprims_proc_listening_ports(filterJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	raw := goOptionalString(filterJSON)
	var filter *client.PortFilter
	if raw != nil {
		filter = &client.PortFilter{}
		if err := decodeStrict([]byte(*raw), filter, "invalid filter JSON"); err != nil {
			return finish(err)
		}
	}
	snapshot, err := client.ListeningPorts(filter)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, snapshot)
}

// --- Spawn / timeout / terminate-tree -----------------------------------

//export sysprims_spawn_in_group
func sysprims_spawn_in_group(configJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	var cfg client.SpawnInGroupConfig
	if err := decodeStrict([]byte(C.GoString(configJSON)), &cfg, "invalid spawn config JSON"); err != nil {
		return finish(err)
	}
	result, err := client.SpawnInGroup(cfg, client.GroupByDefault)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, result)
}

//export sysprims_timeout_run
func sysprims_timeout_run(config *C.SysprimsTimeoutConfig, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	command := C.GoString(config.command)

	var args []string
	n := int(config.args_len)
	if n > 0 && config.args != nil {
		argv := unsafe.Slice(config.args, n)
		args = make([]string, n)
		for i := 0; i < n; i++ {
			args[i] = C.GoString(argv[i])
		}
	}

	result, err := client.RunWithTimeout(command, args, time.Duration(config.timeout_ms)*time.Millisecond, client.TimeoutConfig{
		Signal:         int(config.signal),
		KillAfter:      time.Duration(config.kill_after_ms) * time.Millisecond,
		Grouping:       client.GroupingMode(config.grouping),
		PreserveStatus: bool(config.preserve_status),
	})
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, result)
}

//export sysprims_terminate_tree
func sysprims_terminate_tree(pid C.uint32_t, configJSON *C.char, outJSON **C.char) (code C.SysprimsErrorCode) {
	defer protect(&code)
	var cfg client.TerminateTreeConfig
	raw := goOptionalString(configJSON)
	if raw != nil {
		if err := decodeStrict([]byte(*raw), &cfg, "invalid terminate-tree config JSON"); err != nil {
			return finish(err)
		}
	}
	result, err := client.TerminateTree(uint32(pid), cfg)
	if err != nil {
		return finish(err)
	}
	return emit(outJSON, result)
}

// --- Session identity ----------------------------------------------------

//export sysprims_self_getpgid
func sysprims_self_getpgid(out *C.uint32_t) (code C.SysprimsErrorCode) {
	defer protect(&code)
	pgid, err := client.SelfPGID()
	if err != nil {
		return finish(err)
	}
	*out = C.uint32_t(pgid)
	return finish(nil)
}

//export sysprims_self_getsid
func sysprims_self_getsid(out *C.uint32_t) (code C.SysprimsErrorCode) {
	defer protect(&code)
	sid, err := client.SelfSID()
	if err != nil {
		return finish(err)
	}
	*out = C.uint32_t(sid)
	return finish(nil)
}
