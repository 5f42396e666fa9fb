// Package sh implements the benchix shell: a line-oriented dispatcher
// with two builtins and fork/execve launch of external commands.
package sh

import (
	"github.com/debater-coder/benchix/pkg/heap"
	"github.com/debater-coder/benchix/pkg/kernel"
	"github.com/debater-coder/benchix/pkg/mem"
	"github.com/debater-coder/benchix/pkg/sys"
	"github.com/debater-coder/benchix/pkg/ulib"
)

// Banner is what the shell prints at startup and for the help builtin.
const Banner = "Benchix sh (running in userspace). Type a command then press enter.\n"

// NotFoundExit is the child's exit status when command resolution
// fails at both candidate paths.
const NotFoundExit = 127

// Main is the shell's process entry, registered at /bin/sh. The
// console descriptors are inherited from whatever exec'd the shell.
func Main(p *kernel.Proc, args []string) int {
	h, err := heap.New(p.Image())
	if err != nil {
		return 1
	}
	s := &shell{
		proc:    p,
		heap:    h,
		running: true,
		cwd:     "/",
	}
	return s.run()
}

// shell threads the dispatcher's state explicitly: the running flag is
// flipped only by the exit builtin, and every launched child is
// recorded for reaping when the loop ends.
type shell struct {
	proc     *kernel.Proc
	heap     *heap.Allocator
	running  bool
	cwd      string
	children []int
}

func (s *shell) run() int {
	s.puts(sys.Stdout, Banner)

	for s.running {
		s.puts(sys.Stdout, "[benchix:"+s.cwd+"]$ ")

		line, n, err := ulib.ReadLine(s.heap, s.proc, sys.Stdin)
		if err != nil {
			s.puts(sys.Stderr, "sh: read: "+err.Error()+"\n")
			break
		}
		if n == 0 {
			// End of input behaves like exit.
			s.running = false
			s.free(line)
			break
		}

		vec, err := ulib.Split(s.heap, line, ' ')
		if err != nil {
			s.puts(sys.Stderr, "sh: "+err.Error()+"\n")
			s.free(line)
			break
		}

		s.dispatch(vec)

		s.free(vec)
		s.free(line)
	}

	s.reap()
	return 0
}

// dispatch interprets one tokenized line. A blank line carries no
// first token and loops straight back to the prompt.
func (s *shell) dispatch(vec uint64) {
	seg := s.proc.Image()
	tok0 := ulib.VecAt(seg, vec, 0)
	if tok0 == 0 {
		return
	}
	name, err := mem.CString(seg, tok0)
	if err != nil {
		s.puts(sys.Stderr, "sh: "+err.Error()+"\n")
		return
	}

	switch name {
	case "exit":
		s.running = false
	case "help":
		s.puts(sys.Stdout, Banner)
	default:
		s.launch(vec, name)
	}
}

// launch forks and lets the child resolve and replace its image. The
// parent does not wait: it reports the pid, records it for reaping at
// exit, and returns to the prompt.
func (s *shell) launch(vec uint64, name string) {
	headAddr := s.heap.HeadAddr()
	pid, err := s.proc.Fork(func(c *kernel.Proc) int {
		return execChild(c, headAddr, vec, name)
	})
	if err != nil {
		s.puts(sys.Stderr, "sh: fork: "+err.Error()+"\n")
		return
	}
	s.children = append(s.children, pid)

	s.puts(sys.Stdout, "Started process with PID ")
	if err := ulib.Putn(s.heap, s.proc, sys.Stdout, uint64(pid)); err != nil {
		s.puts(sys.Stderr, "sh: "+err.Error()+"\n")
	}
	s.puts(sys.Stdout, "\n")
}

// execChild runs in the forked copy. Resolution tries the first token
// directly as an absolute path, then /bin/ plus the token with the
// first argument slot rewritten to the resolved path. Either execve
// replaces the image and its status is forwarded unchanged; if both
// fail the child prints a diagnostic and terminates. Control never
// returns to the parent's loop from here.
func execChild(c *kernel.Proc, headAddr, vec uint64, name string) int {
	seg := c.Image()
	h := heap.Attach(seg, headAddr)

	argv, err := ulib.Tokens(seg, vec)
	if err != nil || len(argv) == 0 {
		return NotFoundExit
	}
	if status, err := c.Execve(argv[0], argv); err == nil {
		return status
	}

	prefix, err := h.AllocString(sys.BinPrefix)
	if err != nil {
		return NotFoundExit
	}
	path, err := ulib.Concat(h, prefix, ulib.VecAt(seg, vec, 0))
	if err != nil {
		return NotFoundExit
	}
	if err := ulib.VecSet(seg, vec, 0, path); err != nil {
		return NotFoundExit
	}
	argv, err = ulib.Tokens(seg, vec)
	if err != nil {
		return NotFoundExit
	}
	pathStr, err := mem.CString(seg, path)
	if err != nil {
		return NotFoundExit
	}
	if status, err := c.Execve(pathStr, argv); err == nil {
		return status
	}

	c.WriteString(sys.Stderr, "sh: "+name+": command not found\n")
	return NotFoundExit
}

// reap collects every outstanding child before the shell exits, so no
// process table entry is leaked.
func (s *shell) reap() {
	for _, pid := range s.children {
		if _, err := s.proc.Wait(pid); err != nil {
			s.puts(sys.Stderr, "sh: wait: "+err.Error()+"\n")
		}
	}
	s.children = nil
}

func (s *shell) free(addr uint64) {
	if err := s.heap.Free(addr); err != nil {
		s.puts(sys.Stderr, "sh: free: "+err.Error()+"\n")
	}
}

func (s *shell) puts(fd int, msg string) {
	_, _ = s.proc.WriteString(fd, msg)
}
