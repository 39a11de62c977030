package main

/*
#ifdef _WIN32
#include <windows.h>
static unsigned long long sysprims_ffi_thread_id(void) { return (unsigned long long)GetCurrentThreadId(); }
#else
#include <pthread.h>
#include <stdint.h>
static unsigned long long sysprims_ffi_thread_id(void) { return (unsigned long long)(uintptr_t)pthread_self(); }
#endif
*/
import "C"

import "sync"

// threadError is one thread's last-failure record: the numeric code
// returned by the failing call plus the detailed message read back through
// sysprims_last_error().
type threadError struct {
	code int32
	msg  string
}

// lastError is the thread-local error slot. Go has no public
// OS-thread-local storage, so the slot is keyed by the real OS thread id
// obtained from pthread_self()/GetCurrentThreadId() via cgo: a single
// exported call always executes on the OS thread that invoked it, and host
// bindings must pin that same thread across the failing call and the
// immediately following sysprims_last_error()/sysprims_last_error_code()
// read.
var (
	lastErrorMu sync.Mutex
	lastError   = map[uint64]threadError{}
)

func currentThreadID() uint64 {
	return uint64(C.sysprims_ffi_thread_id())
}

func setLastError(code int32, msg string) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	lastError[currentThreadID()] = threadError{code: code, msg: msg}
}

func clearLastError() {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	delete(lastError, currentThreadID())
}

func takeLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError[currentThreadID()].msg
}

func takeLastErrorCode() int32 {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError[currentThreadID()].code
}
