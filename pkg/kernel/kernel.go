// Package kernel hosts benchix userspace programs in-process: a
// program table under /bin, a console device, and a process model with
// fork, execve and wait. It is the hosted stand-in for the kernel
// boundary; the raw trap surface for freestanding images lives in
// pkg/sys.
package kernel

import (
	"bufio"
	"io"
	"sync"

	"github.com/debater-coder/benchix/pkg/sys"
)

// Program is the process entry contract: the trampoline invokes the
// entry with its argv and turns the return value into the process's
// exit status.
type Program func(p *Proc, args []string) int

// Console is the device behind /dev/console. Reads are cooked: one
// read delivers at most one line, the way a terminal line discipline
// would, so a buffered source does not collapse a whole session into a
// single read. Writes through the conventional stderr slot go to Err
// so hosts and tests can separate diagnostics. Reads and writes are
// serialized independently: a read parked on a terminal must not stop
// another process's output from reaching the screen.
type Console struct {
	rmu sync.Mutex
	wmu sync.Mutex
	In  io.Reader
	Out io.Writer
	Err io.Writer

	br *bufio.Reader
}

// read fills p up to and including the first newline. End of input is
// a zero-length read, not an error.
func (c *Console) read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	if c.br == nil {
		c.br = bufio.NewReader(c.In)
	}
	n := 0
	for n < len(p) {
		b, err := c.br.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	return n, nil
}

func (c *Console) write(w io.Writer, p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return w.Write(p)
}

// Kernel owns the program table, the console and the process table.
type Kernel struct {
	mu      sync.Mutex
	console *Console
	progs   map[string]Program
	nextPID int
	exits   map[int]*exitRecord
}

type exitRecord struct {
	done    chan struct{}
	status  int
	claimed bool
}

// New returns a kernel with an empty program table.
func New(console *Console) *Kernel {
	return &Kernel{
		console: console,
		progs:   map[string]Program{},
		nextPID: 1,
		exits:   map[int]*exitRecord{},
	}
}

// Register installs a program at an absolute path, typically under
// /bin.
func (k *Kernel) Register(path string, prog Program) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.progs[path] = prog
}

func (k *Kernel) lookup(path string) (Program, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	prog, ok := k.progs[path]
	return prog, ok
}

func (k *Kernel) newProc() *Proc {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := &Proc{k: k, pid: k.nextPID, img: newImage()}
	k.nextPID++
	k.exits[p.pid] = &exitRecord{done: make(chan struct{})}
	return p
}

func (k *Kernel) finish(pid, status int) {
	k.mu.Lock()
	rec := k.exits[pid]
	k.mu.Unlock()
	if rec != nil {
		rec.status = status
		close(rec.done)
	}
}

// Spawn boots the program at path as a process on the calling
// goroutine and returns its exit status.
func (k *Kernel) Spawn(path string, args []string) (int, error) {
	prog, ok := k.lookup(path)
	if !ok {
		return 0, sys.ENOENT
	}
	p := k.newProc()
	status := run(prog, p, args)
	k.finish(p.pid, status)
	k.remove(p.pid)
	return status, nil
}

// Wait blocks until the process identified by pid exits and collects
// its status. Waiting twice, or for an unknown pid, reports ECHILD.
func (k *Kernel) Wait(pid int) (int, error) {
	k.mu.Lock()
	rec, ok := k.exits[pid]
	if ok && rec.claimed {
		ok = false
	}
	if ok {
		// Claim now, remove after the exit: finish still needs the
		// record in the table to close done.
		rec.claimed = true
	}
	k.mu.Unlock()
	if !ok {
		return 0, sys.ECHILD
	}
	<-rec.done
	k.remove(pid)
	return rec.status, nil
}

func (k *Kernel) remove(pid int) {
	k.mu.Lock()
	delete(k.exits, pid)
	k.mu.Unlock()
}

// run invokes a program entry, containing a panic as an abnormal exit
// rather than taking the whole kernel down.
func run(prog Program, p *Proc, args []string) (status int) {
	defer func() {
		if r := recover(); r != nil {
			status = 128
		}
	}()
	return prog(p, args)
}
