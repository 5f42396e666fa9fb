// Package ulib holds the string and line primitives of the benchix
// userspace: length, equality, concatenation, buffered line reading
// and destructive whitespace tokenization. Strings are NUL-terminated
// byte runs at segment addresses and every buffer comes from the heap
// allocator.
package ulib

import (
	"github.com/debater-coder/benchix/pkg/heap"
	"github.com/debater-coder/benchix/pkg/mem"
)

// Reader reads from a file descriptor into caller memory.
type Reader interface {
	Read(fd int, p []byte) (int, error)
}

// Writer writes caller memory to a file descriptor.
type Writer interface {
	Write(fd int, p []byte) (int, error)
}

// ReadLineIncrement is the fixed growth step of ReadLine's buffer.
const ReadLineIncrement = 100

// Strlen counts the bytes at addr before the first NUL. Address 0
// yields zero. An unterminated run is bounded by the break.
func Strlen(seg mem.Segment, addr uint64) uint64 {
	if addr == 0 {
		return 0
	}
	end, err := seg.Brk(0)
	if err != nil || addr >= end {
		return 0
	}
	b, err := seg.Slice(addr, end-addr)
	if err != nil {
		return 0
	}
	for i, c := range b {
		if c == 0 {
			return uint64(i)
		}
	}
	return uint64(len(b))
}

// Streq reports whether a and b are both non-null and byte-identical
// through their terminating NUL.
func Streq(seg mem.Segment, a, b uint64) bool {
	if a == 0 || b == 0 {
		return false
	}
	sa, err := mem.CString(seg, a)
	if err != nil {
		return false
	}
	sb, err := mem.CString(seg, b)
	if err != nil {
		return false
	}
	return sa == sb
}

// Concat allocates a fresh buffer of len(a)+len(b) bytes and copies a
// then b into it. No terminating NUL is appended: the result only
// reads as a string because fresh heap growth is zero-filled, the same
// contract the C original lived with.
func Concat(h *heap.Allocator, a, b uint64) (uint64, error) {
	seg := h.Segment()
	lena := Strlen(seg, a)
	lenb := Strlen(seg, b)
	addr, err := h.Alloc(lena + lenb)
	if err != nil {
		return 0, err
	}
	dst, err := seg.Slice(addr, lena+lenb)
	if err != nil {
		return 0, err
	}
	if lena > 0 {
		src, err := seg.Slice(a, lena)
		if err != nil {
			return 0, err
		}
		copy(dst, src)
	}
	if lenb > 0 {
		src, err := seg.Slice(b, lenb)
		if err != nil {
			return 0, err
		}
		copy(dst[lena:], src)
	}
	return addr, nil
}

// ReadLine grows a heap buffer by a fixed increment and issues
// blocking reads into the grown tail until a newline or a zero-length
// read arrives. A trailing newline is stripped in place. It returns
// the buffer address and the raw byte count before stripping: a blank
// line reads one byte, end of input reads zero.
func ReadLine(h *heap.Allocator, rd Reader, fd int) (uint64, uint64, error) {
	seg := h.Segment()
	var line, size uint64
	for {
		var err error
		line, err = h.Realloc(line, size+ReadLineIncrement)
		if err != nil {
			return 0, 0, err
		}
		tail, err := seg.Slice(line+size, ReadLineIncrement)
		if err != nil {
			return 0, 0, err
		}
		n, err := rd.Read(fd, tail)
		if err != nil {
			return 0, 0, err
		}
		size += uint64(n)
		if n == 0 {
			break
		}
		last := tail[n-1]
		if last == '\n' || last == 0 {
			break
		}
	}
	if size > 0 {
		b, err := seg.Slice(line+size-1, 1)
		if err != nil {
			return 0, 0, err
		}
		if b[0] == '\n' {
			b[0] = 0
		}
	}
	return line, size, nil
}

// Split destructively tokenizes the string at addr: delimiter runs
// are overwritten with NULs and the start of each token is recorded
// in a heap-allocated vector of 8-byte addresses terminated by a 0
// sentinel. Tokens alias the input buffer and share its lifetime;
// empty tokens are never produced.
func Split(h *heap.Allocator, addr uint64, delim byte) (uint64, error) {
	seg := h.Segment()
	n := Strlen(seg, addr)
	buf, err := seg.Slice(addr, n)
	if err != nil && n > 0 {
		return 0, err
	}

	var tokens []uint64
	for i := 0; i < len(buf); {
		for i < len(buf) && buf[i] == delim {
			buf[i] = 0
			i++
		}
		if i == len(buf) {
			break
		}
		tokens = append(tokens, addr+uint64(i))
		for i < len(buf) && buf[i] != delim {
			i++
		}
	}

	vec, err := h.Alloc(8 * uint64(len(tokens)+1))
	if err != nil {
		return 0, err
	}
	for i, tok := range tokens {
		if err := mem.Store64(seg, vec+8*uint64(i), tok); err != nil {
			return 0, err
		}
	}
	if err := mem.Store64(seg, vec+8*uint64(len(tokens)), 0); err != nil {
		return 0, err
	}
	return vec, nil
}

// Tokens decodes a token vector into Go strings, stopping at the
// sentinel.
func Tokens(seg mem.Segment, vec uint64) ([]string, error) {
	var out []string
	for i := uint64(0); ; i++ {
		entry, err := mem.Load64(seg, vec+8*i)
		if err != nil {
			return nil, err
		}
		if entry == 0 {
			return out, nil
		}
		s, err := mem.CString(seg, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// VecAt returns the i-th entry of a token vector, or 0 past the
// sentinel.
func VecAt(seg mem.Segment, vec uint64, i int) uint64 {
	for j := 0; j <= i; j++ {
		entry, err := mem.Load64(seg, vec+8*uint64(j))
		if err != nil || entry == 0 {
			return 0
		}
		if j == i {
			return entry
		}
	}
	return 0
}

// VecSet overwrites the i-th entry of a token vector.
func VecSet(seg mem.Segment, vec uint64, i int, addr uint64) error {
	return mem.Store64(seg, vec+8*uint64(i), addr)
}

// Putn writes n in decimal to fd through a heap scratch buffer.
func Putn(h *heap.Allocator, wr Writer, fd int, n uint64) error {
	seg := h.Segment()
	addr, err := h.Alloc(21)
	if err != nil {
		return err
	}
	buf, err := seg.Slice(addr, 21)
	if err != nil {
		h.Free(addr)
		return err
	}
	i := 0
	for {
		buf[i] = '0' + byte(n%10)
		n /= 10
		i++
		if n == 0 {
			break
		}
	}
	for j := 0; j < i/2; j++ {
		buf[j], buf[i-j-1] = buf[i-j-1], buf[j]
	}
	// The scratch goes back to the freelist whether or not the write
	// landed.
	_, werr := wr.Write(fd, buf[:i])
	if ferr := h.Free(addr); werr == nil {
		werr = ferr
	}
	return werr
}
