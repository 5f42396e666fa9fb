// Package testutil provides shared testing utilities for the benchix
// userspace: console capture, heap fixtures and a table runner for
// shell sessions.
package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/debater-coder/benchix/pkg/heap"
	"github.com/debater-coder/benchix/pkg/kernel"
	"github.com/debater-coder/benchix/pkg/mem"
)

// CaptureConsole returns a console fed from input with captured output
// buffers.
func CaptureConsole(input string) (*kernel.Console, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	return &kernel.Console{
		In:  strings.NewReader(input),
		Out: out,
		Err: errBuf,
	}, out, errBuf
}

// NewHeap returns a fresh image with an allocator over it.
func NewHeap(t *testing.T) (*heap.Allocator, *mem.Image) {
	t.Helper()
	img := mem.NewImage()
	h, err := heap.New(img)
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	return h, img
}

// AssertExitCode checks that the exit code matches expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("exit code = %d, want %d", got, want)
	}
}

// AssertOutput checks that output matches expected exactly.
func AssertOutput(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

// AssertOutputContains checks that output contains expected substring.
func AssertOutputContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("output %q does not contain %q", got, want)
	}
}

// AssertNoError fails if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// AssertError fails if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ClampString bounds fuzz input.
func ClampString(data string, max int) string {
	if len(data) > max {
		return data[:max]
	}
	return data
}

// RegisterFunc installs programs into a freshly booted kernel.
type RegisterFunc func(k *kernel.Kernel)

// ShellTestCase defines a parameterized shell session test. Input is
// what the console delivers; the session runs from /bin/init until the
// shell exits (explicitly or at end of input).
type ShellTestCase struct {
	Name        string   // Test name
	Input       string   // Console input, newline separated commands
	WantStatus  int      // Expected init exit status
	WantOut     []string // Substrings expected on stdout, in order
	WantOutAny  []string // Substrings expected on stdout, any order
	WantErr     []string // Substrings expected on stderr
	NotWantOut  []string // Substrings that must not appear on stdout
	PromptCount int      // If > 0, exact number of prompts expected
}

// RunShellTests boots a fresh kernel per case, registers programs via
// reg, spawns /bin/init and checks the captured console.
func RunShellTests(t *testing.T, reg RegisterFunc, tests []ShellTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			console, out, errBuf := CaptureConsole(tt.Input)
			k := kernel.New(console)
			reg(k)

			status, err := k.Spawn("/bin/init", []string{"/bin/init"})
			AssertNoError(t, err)
			AssertExitCode(t, status, tt.WantStatus)

			got := out.String()
			rest := got
			for _, want := range tt.WantOut {
				idx := strings.Index(rest, want)
				if idx < 0 {
					t.Errorf("stdout %q missing %q (in order)", got, want)
					break
				}
				rest = rest[idx+len(want):]
			}
			for _, want := range tt.WantOutAny {
				AssertOutputContains(t, got, want)
			}
			for _, want := range tt.WantErr {
				AssertOutputContains(t, errBuf.String(), want)
			}
			for _, not := range tt.NotWantOut {
				if strings.Contains(got, not) {
					t.Errorf("stdout %q unexpectedly contains %q", got, not)
				}
			}
			if tt.PromptCount > 0 {
				if n := strings.Count(got, "]$ "); n != tt.PromptCount {
					t.Errorf("prompt count = %d, want %d (stdout %q)", n, tt.PromptCount, got)
				}
			}
		})
	}
}
