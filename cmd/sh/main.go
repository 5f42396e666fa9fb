// Command sh boots the benchix userspace on the host: a simulated
// kernel with the console on the host's stdio, the stock programs
// under /bin, and init as the first process.
package main

import (
	"os"

	"golang.org/x/term"

	"github.com/debater-coder/benchix/pkg/kernel"
	"github.com/debater-coder/benchix/pkg/programs"
)

func main() {
	console := &kernel.Console{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}
	k := kernel.New(console)
	programs.Register(k)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		os.Stdout.WriteString("benchix userspace (hosted), ctrl-d to leave\n")
	}
	status, err := k.Spawn("/bin/init", []string{"/bin/init"})
	if err != nil {
		os.Stderr.WriteString("sh: " + err.Error() + "\n")
		os.Exit(1)
	}
	os.Exit(status)
}
