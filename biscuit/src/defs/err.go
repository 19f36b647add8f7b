package defs

import "fmt"

/// Err_t is the kernel's signed error-code type. Zero is success;
/// the positive constants below name a failure kind. Syscalls return it directly or
/// embed it in a result struct.
type Err_t int

/// Tid_t identifies a thread within the current process.
type Tid_t int

/// Pid_t identifies a process.
type Pid_t int

// Error kinds surfaced to userspace unchanged (disposition class 1).
const (
	EINVAL      Err_t = 1  /// invalid_arg
	ENOMEM      Err_t = 2  /// no_memory
	ENOHANDLES  Err_t = 3  /// no_handles
	EACCES      Err_t = 4  /// access_denied
	EPERM       Err_t = 5  /// perm_denied
	ENOENT      Err_t = 6  /// not_found
	ENOTSUP     Err_t = 7  /// not_supported
	EEXIST      Err_t = 8  /// already_exists
	EWOULDBLOCK Err_t = 9  /// would_block
	ETIMEDOUT   Err_t = 10 /// timed_out
	EINTR       Err_t = 11 /// interrupted
	EHUNGUP     Err_t = 12 /// conn_hungup
	E2BIG       Err_t = 13 /// too_large
	EFAULT      Err_t = 14 /// bad address / unmapped region
	ENAMETOOLONG Err_t = 15
	ENOHEAP     Err_t = 16 /// transient local-allocation pressure; retry under lock
)

var errNames = map[Err_t]string{
	EINVAL:       "invalid_arg",
	ENOMEM:       "no_memory",
	ENOHANDLES:   "no_handles",
	EACCES:       "access_denied",
	EPERM:        "perm_denied",
	ENOENT:       "not_found",
	ENOTSUP:      "not_supported",
	EEXIST:       "already_exists",
	EWOULDBLOCK:  "would_block",
	ETIMEDOUT:    "timed_out",
	EINTR:        "interrupted",
	EHUNGUP:      "conn_hungup",
	E2BIG:        "too_large",
	EFAULT:       "fault",
	ENAMETOOLONG: "name_too_long",
	ENOHEAP:      "no_heap",
}

/// String renders the error kind's name, or a numeric fallback for an
/// unrecognized (possibly embedder-defined) code.
func (e Err_t) String() string {
	if e == 0 {
		return "ok"
	}
	neg := e
	if neg < 0 {
		neg = -neg
	}
	if n, ok := errNames[neg]; ok {
		return n
	}
	return fmt.Sprintf("err(%d)", int(e))
}

/// Error satisfies the standard error interface so Err_t can be used
/// anywhere Go code expects one, without losing the signed-int ABI
/// value syscalls return.
func (e Err_t) Error() string {
	return e.String()
}
