//go:build linux && amd64

package sys

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Raw trap wrappers for running this userspace against a real kernel.
// Each translates a named operation into a trap and decodes the signed
// result through the reserved errno range. These bypass the Go runtime's
// own resource management (brk in particular) and are only meant for a
// freestanding benchix image, not for hosted Linux processes.

func rawSyscall(trap uintptr, a1, a2, a3 uintptr) (int64, error) {
	r1, _, _ := unix.RawSyscall(trap, a1, a2, a3)
	return Result(int64(r1))
}

// Open issues the open trap for path with the given flags.
func Open(path string, flags int) (int, error) {
	p, err := unix.BytePtrFromString(path)
	if err != nil {
		return 0, EINVAL
	}
	fd, err := rawSyscall(unix.SYS_OPEN, uintptr(unsafe.Pointer(p)), uintptr(flags), 0)
	return int(fd), err
}

// Read reads up to len(buf) bytes from fd.
func Read(fd int, buf []byte) (int, error) {
	var p unsafe.Pointer
	if len(buf) > 0 {
		p = unsafe.Pointer(&buf[0])
	}
	n, err := rawSyscall(unix.SYS_READ, uintptr(fd), uintptr(p), uintptr(len(buf)))
	return int(n), err
}

// Write writes buf to fd.
func Write(fd int, buf []byte) (int, error) {
	var p unsafe.Pointer
	if len(buf) > 0 {
		p = unsafe.Pointer(&buf[0])
	}
	n, err := rawSyscall(unix.SYS_WRITE, uintptr(fd), uintptr(p), uintptr(len(buf)))
	return int(n), err
}

// Fork duplicates the process image. Returns the child pid in the
// parent and 0 in the child.
func Fork() (int, error) {
	pid, err := rawSyscall(unix.SYS_FORK, 0, 0, 0)
	return int(pid), err
}

// Execve replaces the process image. Does not return on success.
func Execve(path string, argv []string) error {
	p, err := unix.BytePtrFromString(path)
	if err != nil {
		return EINVAL
	}
	// syscall's converter appends the NULL terminator execve requires.
	argvp, err := syscall.SlicePtrFromStrings(argv)
	if err != nil {
		return EINVAL
	}
	_, err = rawSyscall(unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(&argvp[0])), 0)
	return err
}

// Waitid blocks until the child selected by idType/id changes state.
func Waitid(idType, id int) (int, error) {
	r, err := rawSyscall(unix.SYS_WAITID, uintptr(idType), uintptr(id), 0)
	return int(r), err
}

// Brk sets the break to addr; Brk(0) queries the current break.
func Brk(addr uint64) (uint64, error) {
	r, err := rawSyscall(unix.SYS_BRK, uintptr(addr), 0, 0)
	return uint64(r), err
}

// Sbrk extends the break by incr rounded up to the next 8-byte
// boundary and returns the previous break.
func Sbrk(incr uint64) (uint64, error) {
	cur, err := Brk(0)
	if err != nil {
		return 0, err
	}
	if _, err := Brk(cur + (incr+7)/8*8); err != nil {
		return 0, err
	}
	return cur, nil
}

// Exit terminates the process with status.
func Exit(status int) {
	unix.Exit(status)
}
