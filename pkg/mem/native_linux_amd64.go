//go:build linux && amd64

package mem

import (
	"unsafe"

	"github.com/debater-coder/benchix/pkg/sys"
)

// Native is a Segment over the real process break, for freestanding
// benchix images where the runtime owns the data segment outright.
type Native struct {
	base uint64
}

// NewNative captures the current break as the segment base.
func NewNative() (*Native, error) {
	base, err := sys.Brk(0)
	if err != nil {
		return nil, err
	}
	return &Native{base: base}, nil
}

// Brk moves the real break. Brk(0) queries it.
func (n *Native) Brk(addr uint64) (uint64, error) {
	return sys.Brk(addr)
}

// Sbrk extends the real break and returns the previous one.
func (n *Native) Sbrk(incr uint64) (uint64, error) {
	return sys.Sbrk(incr)
}

// Slice maps the n bytes at addr directly.
func (n *Native) Slice(addr, num uint64) ([]byte, error) {
	end, err := sys.Brk(0)
	if err != nil {
		return nil, err
	}
	if addr < n.base || addr+num > end || addr+num < addr {
		return nil, sys.EFAULT
	}
	if num == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), num), nil
}
