// Package programs holds the stock benchix userspace programs. They
// are thin exercises of the runtime: init boots the shell, echo prints
// its arguments, awk runs one-liners over the console.
package programs

import (
	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"

	"github.com/debater-coder/benchix/pkg/kernel"
	"github.com/debater-coder/benchix/pkg/sh"
	"github.com/debater-coder/benchix/pkg/sys"
)

// Register installs every stock program under /bin.
func Register(k *kernel.Kernel) {
	k.Register("/bin/init", Init)
	k.Register("/bin/sh", sh.Main)
	k.Register("/bin/echo", Echo)
	k.Register("/bin/awk", Awk)
}

// Init is the first userspace process: it establishes fds 0/1/2 by
// opening the console three times, then replaces itself with the
// shell, which inherits the descriptors.
func Init(p *kernel.Proc, args []string) int {
	if _, err := p.Open(sys.ConsolePath, sys.O_RDONLY); err != nil {
		return -1
	}
	if _, err := p.Open(sys.ConsolePath, sys.O_WRONLY); err != nil {
		return -1
	}
	if _, err := p.Open(sys.ConsolePath, sys.O_WRONLY); err != nil {
		return -1
	}

	status, err := p.Execve("/bin/sh", []string{"/bin/sh"})
	if err != nil {
		return -1
	}
	return status
}

// Echo prints its arguments separated by single spaces. The odd exit
// status is historical: the original used it to eyeball wait results.
func Echo(p *kernel.Proc, args []string) int {
	if len(args) >= 2 {
		p.WriteString(sys.Stdout, args[1])
		for _, arg := range args[2:] {
			p.WriteString(sys.Stdout, " ")
			p.WriteString(sys.Stdout, arg)
		}
	}
	p.WriteString(sys.Stdout, "\n")
	return 45
}

// Awk interprets args[1] as an AWK program over the console, the one
// real tool in the toy userland. File and exec access stay disabled:
// the kernel has no filesystem to offer.
func Awk(p *kernel.Proc, args []string) int {
	if len(args) < 2 {
		p.WriteString(sys.Stderr, "awk: missing program\n")
		return 2
	}
	prog, err := parser.ParseProgram([]byte(args[1]), nil)
	if err != nil {
		p.WriteString(sys.Stderr, "awk: "+err.Error()+"\n")
		return 2
	}
	config := &interp.Config{
		Stdin:        p.Reader(sys.Stdin),
		Output:       p.Writer(sys.Stdout),
		Error:        p.Writer(sys.Stderr),
		NoFileReads:  true,
		NoFileWrites: true,
		NoExec:       true,
	}
	status, err := interp.ExecProgram(prog, config)
	if err != nil {
		p.WriteString(sys.Stderr, "awk: "+err.Error()+"\n")
		return 1
	}
	return status
}
