package kernel

import (
	"io"

	"github.com/debater-coder/benchix/pkg/mem"
	"github.com/debater-coder/benchix/pkg/sys"
)

func newImage() *mem.Image { return mem.NewImage() }

// Proc is one process: a pid, a data segment and a descriptor table.
// Descriptors 0/1/2 exist only once a program has opened the console
// device three times, or inherited them across fork or execve.
type Proc struct {
	k   *Kernel
	pid int
	img *mem.Image
	fds []*consoleFile
}

type consoleFile struct {
	c     *Console
	flags int
	w     io.Writer
}

// PID returns the process identifier.
func (p *Proc) PID() int { return p.pid }

// Image returns the process data segment.
func (p *Proc) Image() *mem.Image { return p.img }

// Open resolves path in the device namespace and allocates the lowest
// free descriptor. Only the console device exists.
func (p *Proc) Open(path string, flags int) (int, error) {
	if path != sys.ConsolePath {
		return 0, sys.ENOENT
	}
	fd := len(p.fds)
	w := p.k.console.Out
	if fd == sys.Stderr {
		w = p.k.console.Err
	}
	p.fds = append(p.fds, &consoleFile{c: p.k.console, flags: flags, w: w})
	return fd, nil
}

func (p *Proc) file(fd int) (*consoleFile, error) {
	if fd < 0 || fd >= len(p.fds) || p.fds[fd] == nil {
		return nil, sys.EBADF
	}
	return p.fds[fd], nil
}

// Read reads up to len(buf) bytes from fd. End of input is a
// zero-length read, not an error.
func (p *Proc) Read(fd int, buf []byte) (int, error) {
	f, err := p.file(fd)
	if err != nil {
		return 0, err
	}
	if f.flags != sys.O_RDONLY && f.flags != sys.O_RDWR {
		return 0, sys.EBADF
	}
	return f.c.read(buf)
}

// Write writes buf to fd.
func (p *Proc) Write(fd int, buf []byte) (int, error) {
	f, err := p.file(fd)
	if err != nil {
		return 0, err
	}
	if f.flags != sys.O_WRONLY && f.flags != sys.O_RDWR {
		return 0, sys.EBADF
	}
	return f.c.write(f.w, buf)
}

// WriteString writes s to fd.
func (p *Proc) WriteString(fd int, s string) (int, error) {
	return p.Write(fd, []byte(s))
}

// Reader adapts fd to io.Reader. A zero-length read becomes io.EOF.
func (p *Proc) Reader(fd int) io.Reader { return &fdReader{p: p, fd: fd} }

// Writer adapts fd to io.Writer.
func (p *Proc) Writer(fd int) io.Writer { return &fdWriter{p: p, fd: fd} }

type fdReader struct {
	p  *Proc
	fd int
}

func (r *fdReader) Read(b []byte) (int, error) {
	n, err := r.p.Read(r.fd, b)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

type fdWriter struct {
	p  *Proc
	fd int
}

func (w *fdWriter) Write(b []byte) (int, error) {
	return w.p.Write(w.fd, b)
}

// Fork duplicates the process: the child gets a copy of the data
// segment and the descriptor table and runs the given function on its
// own goroutine, fully independent of the parent from that point on.
// The parent gets the child's pid and does not block.
func (p *Proc) Fork(child func(c *Proc) int) (int, error) {
	cp := p.k.newProc()
	cp.img = p.img.Clone()
	cp.fds = append([]*consoleFile(nil), p.fds...)
	go func() {
		status := run(func(c *Proc, _ []string) int { return child(c) }, cp, nil)
		p.k.finish(cp.pid, status)
	}()
	return cp.pid, nil
}

// Execve replaces the process image with the program at path: same
// pid, same descriptors, a fresh data segment. On success the new
// image runs to completion and its exit status is returned; the caller
// must forward that status unchanged, since the old image's code has
// no further business running. On failure the image is untouched.
func (p *Proc) Execve(path string, argv []string) (int, error) {
	prog, ok := p.k.lookup(path)
	if !ok {
		return 0, sys.ENOENT
	}
	p.img = newImage()
	return prog(p, argv), nil
}

// Wait collects the exit status of the child identified by pid.
func (p *Proc) Wait(pid int) (int, error) {
	return p.k.Wait(pid)
}
