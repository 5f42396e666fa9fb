package programs_test

import (
	"strings"
	"testing"

	"github.com/debater-coder/benchix/pkg/kernel"
	"github.com/debater-coder/benchix/pkg/programs"
	"github.com/debater-coder/benchix/pkg/sys"
	"github.com/debater-coder/benchix/pkg/testutil"
)

// launch registers a trampoline that opens the console and execs the
// program under test, the way init would.
func launch(k *kernel.Kernel, argv []string) {
	k.Register("/bin/launcher", func(p *kernel.Proc, args []string) int {
		p.Open(sys.ConsolePath, sys.O_RDONLY)
		p.Open(sys.ConsolePath, sys.O_WRONLY)
		p.Open(sys.ConsolePath, sys.O_WRONLY)
		status, err := p.Execve(argv[0], argv)
		if err != nil {
			return -1
		}
		return status
	})
}

func boot(t *testing.T, input string, argv []string) (int, string, string) {
	t.Helper()
	console, out, errBuf := testutil.CaptureConsole(input)
	k := kernel.New(console)
	programs.Register(k)
	launch(k, argv)
	status, err := k.Spawn("/bin/launcher", []string{"/bin/launcher"})
	testutil.AssertNoError(t, err)
	return status, out.String(), errBuf.String()
}

func TestEcho(t *testing.T) {
	status, out, _ := boot(t, "", []string{"/bin/echo", "hello", "world"})
	testutil.AssertExitCode(t, status, 45)
	testutil.AssertOutput(t, out, "hello world\n")
}

func TestEchoNoArgs(t *testing.T) {
	status, out, _ := boot(t, "", []string{"/bin/echo"})
	testutil.AssertExitCode(t, status, 45)
	testutil.AssertOutput(t, out, "\n")
}

func TestAwkProgram(t *testing.T) {
	status, out, _ := boot(t, "3 4\n10 20\n",
		[]string{"/bin/awk", "{ print $1 + $2 }"})
	testutil.AssertExitCode(t, status, 0)
	testutil.AssertOutput(t, out, "7\n30\n")
}

func TestAwkMissingProgram(t *testing.T) {
	status, _, errOut := boot(t, "", []string{"/bin/awk"})
	testutil.AssertExitCode(t, status, 2)
	testutil.AssertOutputContains(t, errOut, "awk: missing program")
}

func TestInitBootsShell(t *testing.T) {
	console, out, _ := testutil.CaptureConsole("exit\n")
	k := kernel.New(console)
	programs.Register(k)

	status, err := k.Spawn("/bin/init", []string{"/bin/init"})
	testutil.AssertNoError(t, err)
	testutil.AssertExitCode(t, status, 0)
	if !strings.Contains(out.String(), "Benchix sh") {
		t.Errorf("init did not reach the shell: %q", out.String())
	}
}
