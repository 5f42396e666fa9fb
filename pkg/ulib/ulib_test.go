package ulib_test

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/debater-coder/benchix/pkg/mem"
	"github.com/debater-coder/benchix/pkg/testutil"
	"github.com/debater-coder/benchix/pkg/ulib"
)

// lineSource adapts an io.Reader to the fd-style Reader the console
// presents: reads are cooked (at most one line per read) and end of
// input is a zero-length read.
type lineSource struct {
	r  io.Reader
	br *bufio.Reader
}

func (s *lineSource) Read(fd int, p []byte) (int, error) {
	if s.br == nil {
		s.br = bufio.NewReader(s.r)
	}
	n := 0
	for n < len(p) {
		b, err := s.br.ReadByte()
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

// sink collects fd writes.
type sink struct {
	b strings.Builder
}

func (s *sink) Write(fd int, p []byte) (int, error) {
	return s.b.Write(p)
}

func TestStrlen(t *testing.T) {
	h, img := testutil.NewHeap(t)
	addr, _ := h.AllocString("hello")

	if n := ulib.Strlen(img, addr); n != 5 {
		t.Errorf("Strlen = %d, want 5", n)
	}
	if n := ulib.Strlen(img, 0); n != 0 {
		t.Errorf("Strlen(0) = %d, want 0", n)
	}
}

func TestStreq(t *testing.T) {
	h, img := testutil.NewHeap(t)
	a, _ := h.AllocString("exit")
	b, _ := h.AllocString("exit")
	c, _ := h.AllocString("exi")

	if !ulib.Streq(img, a, b) {
		t.Error("identical strings compare unequal")
	}
	if ulib.Streq(img, a, c) {
		t.Error("prefix compares equal")
	}
	if ulib.Streq(img, a, 0) || ulib.Streq(img, 0, a) || ulib.Streq(img, 0, 0) {
		t.Error("null operand compares equal")
	}
}

func TestConcat(t *testing.T) {
	h, img := testutil.NewHeap(t)
	a, _ := h.AllocString("/bin/")
	b, _ := h.AllocString("ls")

	addr, err := ulib.Concat(h, a, b)
	testutil.AssertNoError(t, err)
	got, err := img.Slice(addr, 7)
	testutil.AssertNoError(t, err)
	if string(got) != "/bin/ls" {
		t.Errorf("Concat = %q", got)
	}
	// Fresh growth is zero-filled, so the run reads as a string
	// even though Concat appends no terminator.
	s, err := mem.CString(img, addr)
	testutil.AssertNoError(t, err)
	if s != "/bin/ls" {
		t.Errorf("CString over Concat = %q", s)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"collapses delimiter runs", "  ls  -a   test ", []string{"ls", "-a", "test"}},
		{"single token", "exit", []string{"exit"}},
		{"empty", "", nil},
		{"only delimiters", "     ", nil},
		{"trailing delimiters", "help   ", []string{"help"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, img := testutil.NewHeap(t)
			addr, _ := h.AllocString(tt.input)

			vec, err := ulib.Split(h, addr, ' ')
			testutil.AssertNoError(t, err)
			got, err := ulib.Tokens(img, vec)
			testutil.AssertNoError(t, err)
			if len(got) != len(tt.want) {
				t.Fatalf("tokens = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			// Tokens alias the input buffer.
			if first := ulib.VecAt(img, vec, 0); first != 0 {
				if first < addr || first >= addr+uint64(len(tt.input)) {
					t.Errorf("token at %#x does not alias buffer at %#x", first, addr)
				}
			}
		})
	}
}

func TestSplitSentinel(t *testing.T) {
	h, img := testutil.NewHeap(t)
	addr, _ := h.AllocString("a b")
	vec, err := ulib.Split(h, addr, ' ')
	testutil.AssertNoError(t, err)

	end, err := mem.Load64(img, vec+16)
	testutil.AssertNoError(t, err)
	if end != 0 {
		t.Errorf("vector sentinel = %#x, want 0", end)
	}
}

func TestReadLine(t *testing.T) {
	h, img := testutil.NewHeap(t)
	src := &lineSource{r: strings.NewReader("echo hello\nnext")}

	line, n, err := ulib.ReadLine(h, src, 0)
	testutil.AssertNoError(t, err)
	if n == 0 {
		t.Fatal("ReadLine reported end of input")
	}
	s, _ := mem.CString(img, line)
	if s != "echo hello" {
		t.Errorf("line = %q, want newline stripped", s)
	}
}

func TestReadLineLong(t *testing.T) {
	h, img := testutil.NewHeap(t)
	long := strings.Repeat("x", 3*ulib.ReadLineIncrement)
	src := &lineSource{r: strings.NewReader(long + "\n")}

	line, _, err := ulib.ReadLine(h, src, 0)
	testutil.AssertNoError(t, err)
	s, _ := mem.CString(img, line)
	if s != long {
		t.Errorf("long line length = %d, want %d", len(s), len(long))
	}
}

func TestReadLineEOF(t *testing.T) {
	h, img := testutil.NewHeap(t)
	src := &lineSource{r: strings.NewReader("")}

	line, n, err := ulib.ReadLine(h, src, 0)
	testutil.AssertNoError(t, err)
	if n != 0 {
		t.Errorf("raw size = %d, want 0 at end of input", n)
	}
	if s, _ := mem.CString(img, line); s != "" {
		t.Errorf("line = %q, want empty", s)
	}
}

func TestReadLineNoTrailingNewline(t *testing.T) {
	h, img := testutil.NewHeap(t)
	src := &lineSource{r: strings.NewReader("exit")}

	line, n, err := ulib.ReadLine(h, src, 0)
	testutil.AssertNoError(t, err)
	if n == 0 {
		t.Fatal("raw size = 0, want bytes before end of input")
	}
	if s, _ := mem.CString(img, line); s != "exit" {
		t.Errorf("line = %q", s)
	}
}

func TestPutn(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{12345, "12345"},
		{18446744073709551615, "18446744073709551615"},
	}
	for _, tt := range tests {
		h, _ := testutil.NewHeap(t)
		out := &sink{}
		testutil.AssertNoError(t, ulib.Putn(h, out, 1, tt.n))
		if out.b.String() != tt.want {
			t.Errorf("Putn(%d) = %q, want %q", tt.n, out.b.String(), tt.want)
		}
	}
}

// brokenSink refuses every write.
type brokenSink struct{}

func (brokenSink) Write(fd int, p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestPutnFreesScratchOnWriteError(t *testing.T) {
	h, _ := testutil.NewHeap(t)
	if err := ulib.Putn(h, brokenSink{}, 1, 42); err == nil {
		t.Fatal("Putn succeeded against a broken writer")
	}
	st, err := h.Stats()
	testutil.AssertNoError(t, err)
	if st.FreeBlocks != 1 {
		t.Errorf("free blocks = %d, want the scratch back on the list", st.FreeBlocks)
	}
}

func FuzzSplit(f *testing.F) {
	f.Add("  ls  -a   test ")
	f.Add("exit")
	f.Add("a  b c")
	f.Add("")
	f.Fuzz(func(t *testing.T, input string) {
		input = testutil.ClampString(input, 256)
		if strings.ContainsRune(input, 0) {
			t.Skip("NUL cannot appear inside a C string")
		}
		h, img := testutil.NewHeap(t)
		addr, err := h.AllocString(input)
		if err != nil {
			t.Fatal(err)
		}
		vec, err := ulib.Split(h, addr, ' ')
		if err != nil {
			t.Fatal(err)
		}
		got, err := ulib.Tokens(img, vec)
		if err != nil {
			t.Fatal(err)
		}

		var want []string
		for _, tok := range strings.Split(input, " ") {
			if tok != "" {
				want = append(want, tok)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("tokens = %q, want %q", got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("token %d = %q, want %q", i, got[i], want[i])
			}
		}
	})
}
