// Package heap is the benchix userspace allocator. It serves requests
// from a singly-linked freelist with first-fit reuse and obtains fresh
// memory by extending the segment break. Blocks are never split and
// never coalesced; fragmentation only shrinks through LIFO reuse.
package heap

import (
	"errors"

	"github.com/debater-coder/benchix/pkg/mem"
)

// Magic tags every allocation header. Free and Realloc refuse pointers
// whose header does not carry it.
const Magic = 0xdeadbeef

// HeaderSize is the fixed metadata footprint before every block:
// requested size (4), magic (4), freelist link (8). The link is only
// meaningful while the block sits on the freelist; the size and magic
// fields are valid in both the live and the free state.
const HeaderSize = 16

const (
	offSize  = 0
	offMagic = 4
	offNext  = 8
)

// ErrBadHeader reports a pointer whose header sentinel does not match.
// The block is abandoned rather than freed so a stray pointer cannot
// corrupt the freelist or unrelated memory.
var ErrBadHeader = errors.New("heap: allocation header sentinel mismatch")

// Allocator manages one segment. The freelist head lives inside the
// segment itself (an 8-byte slot reserved at construction) so a forked
// image carries its allocator state the way a C global in the data
// segment would.
type Allocator struct {
	seg  mem.Segment
	head uint64
}

// New reserves the freelist head slot at the current break and returns
// an allocator with an empty freelist.
func New(seg mem.Segment) (*Allocator, error) {
	head, err := seg.Sbrk(8)
	if err != nil {
		return nil, err
	}
	if err := mem.Store64(seg, head, 0); err != nil {
		return nil, err
	}
	return &Allocator{seg: seg, head: head}, nil
}

// Attach rebinds an allocator to a segment whose head slot was
// reserved earlier, typically the forked copy of another image.
func Attach(seg mem.Segment, headAddr uint64) *Allocator {
	return &Allocator{seg: seg, head: headAddr}
}

// HeadAddr returns the address of the freelist head slot, for Attach
// after a fork.
func (a *Allocator) HeadAddr() uint64 { return a.head }

// Segment returns the segment this allocator manages.
func (a *Allocator) Segment() mem.Segment { return a.seg }

// Alloc returns the address of a usable region of at least size bytes,
// preceded by a valid header. The freelist is scanned head to tail and
// the first node large enough is reused whole; otherwise the segment
// grows. Growth failure is returned, never masked.
func (a *Allocator) Alloc(size uint64) (uint64, error) {
	var prev uint64
	cur, err := mem.Load64(a.seg, a.head)
	if err != nil {
		return 0, err
	}
	for cur != 0 {
		nodeSize, err := mem.Load32(a.seg, cur+offSize)
		if err != nil {
			return 0, err
		}
		next, err := mem.Load64(a.seg, cur+offNext)
		if err != nil {
			return 0, err
		}
		if uint64(nodeSize) >= size+HeaderSize {
			if prev != 0 {
				if err := mem.Store64(a.seg, prev+offNext, next); err != nil {
					return 0, err
				}
			} else if err := mem.Store64(a.seg, a.head, next); err != nil {
				return 0, err
			}
			// The recorded size is the requested size, not the
			// node's true footprint; the excess is wasted.
			if err := mem.Store32(a.seg, cur+offSize, uint32(size)); err != nil {
				return 0, err
			}
			if err := mem.Store32(a.seg, cur+offMagic, Magic); err != nil {
				return 0, err
			}
			return cur + HeaderSize, nil
		}
		prev = cur
		cur = next
	}

	base, err := a.seg.Sbrk(size + HeaderSize)
	if err != nil {
		return 0, err
	}
	if err := mem.Store32(a.seg, base+offSize, uint32(size)); err != nil {
		return 0, err
	}
	if err := mem.Store32(a.seg, base+offMagic, Magic); err != nil {
		return 0, err
	}
	if err := mem.Store64(a.seg, base+offNext, 0); err != nil {
		return 0, err
	}
	return base + HeaderSize, nil
}

// Free pushes the block at addr onto the freelist. Freeing address 0
// is a no-op. A sentinel mismatch returns ErrBadHeader and leaks the
// block instead of touching the list.
func (a *Allocator) Free(addr uint64) error {
	if addr == 0 {
		return nil
	}
	hdr, err := a.header(addr)
	if err != nil {
		return err
	}
	size, err := mem.Load32(a.seg, hdr+offSize)
	if err != nil {
		return err
	}
	head, err := mem.Load64(a.seg, a.head)
	if err != nil {
		return err
	}
	// Reinterpret the header as a free node: size becomes inclusive of
	// the metadata footprint, the link takes the old head.
	if err := mem.Store32(a.seg, hdr+offSize, size+HeaderSize); err != nil {
		return err
	}
	if err := mem.Store64(a.seg, hdr+offNext, head); err != nil {
		return err
	}
	return mem.Store64(a.seg, a.head, hdr)
}

// Realloc allocates a fresh block of size bytes and copies
// min(old requested size, size) bytes from addr, freeing the old block
// only after the copy. With addr 0 it is a plain Alloc. On a sentinel
// mismatch the new block is still returned, the copy is skipped, the
// old block is left alone, and ErrBadHeader reports the condition.
func (a *Allocator) Realloc(addr, size uint64) (uint64, error) {
	newAddr, err := a.Alloc(size)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return newAddr, nil
	}
	hdr, err := a.header(addr)
	if err != nil {
		return newAddr, err
	}
	oldSize, err := mem.Load32(a.seg, hdr+offSize)
	if err != nil {
		return newAddr, err
	}
	n := uint64(oldSize)
	if size < n {
		n = size
	}
	src, err := a.seg.Slice(addr, n)
	if err != nil {
		return newAddr, err
	}
	dst, err := a.seg.Slice(newAddr, n)
	if err != nil {
		return newAddr, err
	}
	copy(dst, src)
	if err := a.Free(addr); err != nil {
		return newAddr, err
	}
	return newAddr, nil
}

// AllocString copies s into a fresh NUL-terminated block and returns
// its address.
func (a *Allocator) AllocString(s string) (uint64, error) {
	addr, err := a.Alloc(uint64(len(s)) + 1)
	if err != nil {
		return 0, err
	}
	b, err := a.seg.Slice(addr, uint64(len(s))+1)
	if err != nil {
		return 0, err
	}
	copy(b, s)
	b[len(s)] = 0
	return addr, nil
}

// Stats describes the freelist.
type Stats struct {
	FreeBlocks int
	FreeBytes  uint64
}

// Stats walks the freelist. Node sizes are inclusive of their headers.
func (a *Allocator) Stats() (Stats, error) {
	var st Stats
	cur, err := mem.Load64(a.seg, a.head)
	if err != nil {
		return st, err
	}
	for cur != 0 {
		size, err := mem.Load32(a.seg, cur+offSize)
		if err != nil {
			return st, err
		}
		st.FreeBlocks++
		st.FreeBytes += uint64(size)
		cur, err = mem.Load64(a.seg, cur+offNext)
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

// header validates the sentinel behind addr and returns the header
// address.
func (a *Allocator) header(addr uint64) (uint64, error) {
	if addr < HeaderSize {
		return 0, ErrBadHeader
	}
	hdr := addr - HeaderSize
	magic, err := mem.Load32(a.seg, hdr+offMagic)
	if err != nil || magic != Magic {
		return 0, ErrBadHeader
	}
	return hdr, nil
}
