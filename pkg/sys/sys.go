// Package sys defines the benchix userspace syscall surface: the ABI
// constants shared with the kernel and the signed-result error encoding.
// Raw trap wrappers live in sys_linux.go; hosted code uses pkg/kernel.
package sys

import "fmt"

// Open flags understood by the kernel.
const (
	O_RDONLY = 0
	O_WRONLY = 1
	O_RDWR   = 2
)

// Console file descriptors, established by each program opening
// ConsolePath three times at startup.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2
)

// ConsolePath is the device every program opens for fds 0/1/2.
const ConsolePath = "/dev/console"

// BinPrefix is where the shell resolves non-absolute commands.
const BinPrefix = "/bin/"

// P_PID selects a single child by pid in waitid.
const P_PID = 1

// Errno is a kernel error code. The kernel reports errors as negative
// syscall results in [-MaxErrno, -1]; Errno holds the positive value.
type Errno int64

// MaxErrno bounds the reserved error range of a syscall result.
const MaxErrno = 4095

// Errnos used across the runtime.
const (
	EPERM   Errno = 1
	ENOENT  Errno = 2
	EBADF   Errno = 9
	ECHILD  Errno = 10
	ENOMEM  Errno = 12
	EFAULT  Errno = 14
	EINVAL  Errno = 22
	ENOEXEC Errno = 8
)

var errnoNames = map[Errno]string{
	EPERM:   "operation not permitted",
	ENOENT:  "no such file or directory",
	ENOEXEC: "exec format error",
	EBADF:   "bad file descriptor",
	ECHILD:  "no child processes",
	ENOMEM:  "out of memory",
	EFAULT:  "bad address",
	EINVAL:  "invalid argument",
}

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", int64(e))
}

// IsErrno reports whether a signed syscall result encodes an error.
func IsErrno(ret int64) bool {
	return ret >= -MaxErrno && ret <= -1
}

// Result decodes a signed syscall return into a value or an Errno.
func Result(ret int64) (int64, error) {
	if IsErrno(ret) {
		return 0, Errno(-ret)
	}
	return ret, nil
}
