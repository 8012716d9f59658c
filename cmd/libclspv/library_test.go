package main

import (
	"errors"
	"strings"
	"testing"
	"unsafe"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/clspvtest"
	"github.com/chazu/clspv/internal/handles"
	"github.com/chazu/clspv/spirv"
)

func newTestLibrary(cc clspv.Compiler) *library {
	return newLibrary(func() (clspv.Compiler, error) { return cc, nil })
}

func TestLibrary_CompileSuccess(t *testing.T) {
	l := newTestLibrary(clspvtest.New())
	tok := l.alloc()

	c := l.compile(tok, clspvtest.MinimalKernel, "")
	if c.status != clspv.StatusOK {
		t.Fatalf("status = %d, log:\n%s", c.status, c.log)
	}
	if !c.stored {
		t.Error("stored = false for a completed compilation")
	}
	if err := spirv.Validate(c.words); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := l.release(tok); err != nil {
		t.Errorf("release: %v", err)
	}
	if l.results.Len() != 0 {
		t.Errorf("%d results still live", l.results.Len())
	}
}

// Garbage in, -1 out.
func TestLibrary_Garbage(t *testing.T) {
	l := newTestLibrary(clspvtest.New())
	tok := l.alloc()
	defer l.release(tok)

	c := l.compile(tok, "bla bla bla", "")
	if c.status != -1 {
		t.Errorf("status = %d, want -1", c.status)
	}
	if !c.stored || c.log == "" {
		t.Errorf("failure should store a log: stored=%v log=%q", c.stored, c.log)
	}
}

func TestLibrary_SecondCompileRejected(t *testing.T) {
	cc := clspvtest.New()
	l := newTestLibrary(cc)
	tok := l.alloc()
	defer l.release(tok)

	first := l.compile(tok, clspvtest.MinimalKernel, "")
	second := l.compile(tok, clspvtest.TwoKernels, "")
	if second.status != clspv.StatusFailed || second.stored {
		t.Errorf("second compile = %+v, want rejected", second)
	}
	if cc.Calls() != 1 {
		t.Errorf("compiler called %d times, want 1", cc.Calls())
	}
	if first.status != clspv.StatusOK {
		t.Errorf("first status = %d", first.status)
	}
}

func TestLibrary_StaleToken(t *testing.T) {
	l := newTestLibrary(clspvtest.New())
	tok := l.alloc()
	if err := l.release(tok); err != nil {
		t.Fatalf("release: %v", err)
	}

	if l.live(tok) {
		t.Error("released token still live")
	}
	if err := l.release(tok); !errors.Is(err, handles.ErrStale) {
		t.Errorf("double release = %v, want ErrStale", err)
	}
	if c := l.compile(tok, clspvtest.MinimalKernel, ""); c.status == clspv.StatusOK || c.stored {
		t.Errorf("compile on released token = %+v", c)
	}
	if c := l.compile(0, clspvtest.MinimalKernel, ""); c.stored {
		t.Errorf("compile on zero token = %+v", c)
	}
}

func TestLibrary_OpenFailure(t *testing.T) {
	l := newLibrary(func() (clspv.Compiler, error) {
		return nil, errors.New("no backend")
	})
	tok := l.alloc()
	defer l.release(tok)

	c := l.compile(tok, clspvtest.MinimalKernel, "")
	if c.status != clspv.StatusFailed {
		t.Errorf("status = %d, want %d", c.status, clspv.StatusFailed)
	}
	if !strings.Contains(c.log, "no backend") {
		t.Errorf("log = %q, want the open error", c.log)
	}
}

func TestLibrary_CompilerBuiltOnce(t *testing.T) {
	opened := 0
	l := newLibrary(func() (clspv.Compiler, error) {
		opened++
		return clspvtest.New(), nil
	})
	for i := 0; i < 3; i++ {
		tok := l.alloc()
		l.compile(tok, clspvtest.MinimalKernel, "")
		l.release(tok)
	}
	if opened != 1 {
		t.Errorf("compiler opened %d times, want 1", opened)
	}
}

// ---------------------------------------------------------------------------
// Exported C functions
// ---------------------------------------------------------------------------

func useLibrary(t *testing.T, cc clspv.Compiler) *library {
	t.Helper()
	prev := lib
	lib = newTestLibrary(cc)
	t.Cleanup(func() { lib = prev })
	return lib
}

func TestCABI_Lifecycle(t *testing.T) {
	l := useLibrary(t, clspvtest.New())

	lc := runCLifecycle(clspvtest.NoArgsKernel, "")
	if !lc.allocated {
		t.Fatal("clspv_result_alloc returned NULL")
	}

	if !lc.emptyOutput.nonNull || lc.emptyOutput.size != 0 {
		t.Errorf("output before compile = %+v, want non-NULL and size 0", lc.emptyOutput)
	}
	if !lc.emptyLog.nonNull || lc.emptyLog.size != 0 || !lc.emptyLog.terminated {
		t.Errorf("log before compile = %+v, want non-NULL empty string", lc.emptyLog)
	}

	if lc.status != clspv.StatusOK {
		t.Fatalf("status = %d, log %q", lc.status, lc.log.text)
	}
	if err := spirv.Validate(lc.output.words); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if lc.output.size != len(lc.output.words) {
		t.Errorf("output size = %d, read %d words", lc.output.size, len(lc.output.words))
	}
	if lc.log.size == 0 || !lc.log.terminated {
		t.Errorf("log = %+v, want a NUL-terminated warning", lc.log)
	}
	if !strings.Contains(lc.log.text, "warning") {
		t.Errorf("log text = %q", lc.log.text)
	}
	if !lc.stableOutput {
		t.Error("two get_output calls returned different pointer or size")
	}

	if n := l.results.Len(); n != 0 {
		t.Errorf("%d results live after clspv_result_free", n)
	}
}

func TestCABI_Garbage(t *testing.T) {
	l := useLibrary(t, clspvtest.New())

	lc := runCLifecycle("bla bla bla", "")
	if lc.status != -1 {
		t.Errorf("status = %d, want -1", lc.status)
	}
	if lc.log.size == 0 || !lc.log.terminated {
		t.Errorf("log = %+v, want a NUL-terminated diagnostic", lc.log)
	}
	if !lc.output.nonNull {
		t.Error("output pointer is NULL after a failed compile")
	}
	if n := l.results.Len(); n != 0 {
		t.Errorf("%d results live after clspv_result_free", n)
	}
}

func TestCABI_SequentialLifecyclesIndependent(t *testing.T) {
	useLibrary(t, clspvtest.New())

	first := runCLifecycle(clspvtest.TwoKernels, "")
	second := runCLifecycle(clspvtest.SyntaxError, "")
	third := runCLifecycle(clspvtest.MinimalKernel, "")

	if first.status != clspv.StatusOK || third.status != clspv.StatusOK {
		t.Fatalf("statuses = %d, %d", first.status, third.status)
	}
	if second.status == clspv.StatusOK {
		t.Error("syntax error compiled")
	}
	if len(spirv.EntryPoints(third.output.words)) != 1 {
		t.Errorf("third result carries residue: %+v", spirv.EntryPoints(third.output.words))
	}
}

func TestCABI_SecondCompileKeepsBuffers(t *testing.T) {
	useLibrary(t, clspvtest.New())

	s1, s2, same := runCCompileTwice(clspvtest.MinimalKernel, clspvtest.TwoKernels)
	if s1 != clspv.StatusOK {
		t.Fatalf("first status = %d", s1)
	}
	if s2 != clspv.StatusFailed {
		t.Errorf("second status = %d, want %d", s2, clspv.StatusFailed)
	}
	if !same {
		t.Error("rejected compile replaced the output buffer")
	}
}

func TestCABI_NullArguments(t *testing.T) {
	useLibrary(t, clspvtest.New())

	status, out, logView := runCNullGuards()
	if status != clspv.StatusFailed {
		t.Errorf("compile on NULL result = %d, want %d", status, clspv.StatusFailed)
	}
	if !out.nonNull || out.size != 0 {
		t.Errorf("output of NULL result = %+v", out)
	}
	if !logView.nonNull || logView.size != 0 || !logView.terminated {
		t.Errorf("log of NULL result = %+v", logView)
	}
}

func TestCABI_OutputAllocationFailure(t *testing.T) {
	useLibrary(t, clspvtest.New())
	prev := allocWords
	allocWords = func(int) unsafe.Pointer { return nil }
	defer func() { allocWords = prev }()

	lc := runCLifecycle(clspvtest.MinimalKernel, "")
	if lc.status != clspv.StatusFailed {
		t.Errorf("status = %d, want %d when the output cannot be copied", lc.status, clspv.StatusFailed)
	}
	if lc.output.size != 0 {
		t.Errorf("output size = %d, want 0", lc.output.size)
	}
	if !strings.Contains(lc.log.text, "out of memory") {
		t.Errorf("log = %q", lc.log.text)
	}
}
