// Package mem models a process data segment: a single contiguous region
// whose upper bound is the break address. The region grows forward only
// and never shrinks back to the kernel.
package mem

import (
	"encoding/binary"

	"github.com/debater-coder/benchix/pkg/sys"
)

// Segment is the growable memory region the heap allocator sits on.
// Brk(0) queries the current break; Brk(addr) moves it. Sbrk extends
// the break and returns the previous one. After any growth the break
// is a multiple of 8.
type Segment interface {
	Brk(addr uint64) (uint64, error)
	Sbrk(incr uint64) (uint64, error)
	Slice(addr, n uint64) ([]byte, error)
}

// DefaultBase is where an Image's data segment starts. Address 0 is
// never mapped, so 0 can serve as the null pointer.
const DefaultBase = 0x10000

// DefaultLimit caps Image growth so address-space exhaustion surfaces
// as ENOMEM instead of an unbounded host allocation.
const DefaultLimit = 1 << 30

// Image is an in-memory Segment: the data segment of a simulated
// process. Fresh growth is zero-filled. Clone supports fork.
type Image struct {
	base  uint64
	limit uint64
	data  []byte
}

// NewImage returns an empty Image with the default base and limit.
func NewImage() *Image {
	return &Image{base: DefaultBase, limit: DefaultLimit}
}

// NewImageWithLimit returns an Image whose growth is capped at limit
// bytes, for exercising growth failure.
func NewImageWithLimit(limit uint64) *Image {
	return &Image{base: DefaultBase, limit: limit}
}

// Base returns the lowest mapped address.
func (m *Image) Base() uint64 { return m.base }

// Brk moves the break to addr, rounded up to the next 8-byte boundary.
// Addresses at or below the base (including 0) query the current break.
func (m *Image) Brk(addr uint64) (uint64, error) {
	cur := m.base + uint64(len(m.data))
	if addr <= m.base {
		return cur, nil
	}
	addr = (addr + 7) / 8 * 8
	if addr < cur {
		// The segment never shrinks.
		return cur, nil
	}
	if addr-m.base > m.limit {
		return cur, sys.ENOMEM
	}
	m.data = append(m.data, make([]byte, addr-cur)...)
	return addr, nil
}

// Sbrk extends the break by incr rounded up to the next 8-byte
// boundary and returns the previous break.
func (m *Image) Sbrk(incr uint64) (uint64, error) {
	cur := m.base + uint64(len(m.data))
	if incr == 0 {
		return cur, nil
	}
	if _, err := m.Brk(cur + (incr+7)/8*8); err != nil {
		return 0, err
	}
	return cur, nil
}

// Slice returns the n bytes at addr, aliasing the segment's storage.
func (m *Image) Slice(addr, n uint64) ([]byte, error) {
	end := m.base + uint64(len(m.data))
	if addr < m.base || addr+n > end || addr+n < addr {
		return nil, sys.EFAULT
	}
	return m.data[addr-m.base : addr-m.base+n], nil
}

// Clone copies the segment, break included. Used for fork.
func (m *Image) Clone() *Image {
	data := make([]byte, len(m.data))
	copy(data, m.data)
	return &Image{base: m.base, limit: m.limit, data: data}
}

// Load32 reads a little-endian uint32 at addr.
func Load32(s Segment, addr uint64) (uint32, error) {
	b, err := s.Slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Store32 writes a little-endian uint32 at addr.
func Store32(s Segment, addr uint64, v uint32) error {
	b, err := s.Slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Load64 reads a little-endian uint64 at addr.
func Load64(s Segment, addr uint64) (uint64, error) {
	b, err := s.Slice(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Store64 writes a little-endian uint64 at addr.
func Store64(s Segment, addr uint64, v uint64) error {
	b, err := s.Slice(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

// StoreBytes copies p into the segment at addr.
func StoreBytes(s Segment, addr uint64, p []byte) error {
	b, err := s.Slice(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}

// CString reads the NUL-terminated string at addr. The scan is bounded
// by the break; a run that reaches the break unterminated is returned
// as-is, matching what a C strlen would see on zero-filled growth.
func CString(s Segment, addr uint64) (string, error) {
	if addr == 0 {
		return "", nil
	}
	end, err := s.Brk(0)
	if err != nil {
		return "", err
	}
	if addr >= end {
		return "", sys.EFAULT
	}
	b, err := s.Slice(addr, end-addr)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}
