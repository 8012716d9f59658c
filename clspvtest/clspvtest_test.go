package clspvtest

import (
	"context"
	"strings"
	"testing"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/spirv"
)

func compile(t *testing.T, source, options string) clspv.Emission {
	t.Helper()
	return New().CompileFromSourceString(context.Background(), source, "", options)
}

func TestFake_StatusMatchesOutput(t *testing.T) {
	sources := []string{"", "bla bla bla", MinimalKernel, TwoKernels, SyntaxError, NoArgsKernel, "kernel void x(int a) { ) }"}
	for _, src := range sources {
		em := compile(t, src, "")
		valid := len(em.Words) > 0 && spirv.Validate(em.Words) == nil
		if (em.Status == clspv.StatusOK) != valid {
			t.Errorf("%q: status %d but output valid = %v", src, em.Status, valid)
		}
		if em.Status != clspv.StatusOK && em.Log == "" {
			t.Errorf("%q: failure without a log", src)
		}
	}
}

func TestFake_IgnoresBracesInCommentsAndStrings(t *testing.T) {
	src := "// {\n/* ( [ */\n#define BRACE '{'\nkernel void k(global char* s) { s[0] = '}'; }\n"
	em := compile(t, src, "")
	if em.Status != clspv.StatusOK {
		t.Fatalf("status %d, log %q", em.Status, em.Log)
	}
	eps := spirv.EntryPoints(em.Words)
	if len(eps) != 1 || eps[0].Name != "k" {
		t.Errorf("entry points = %+v", eps)
	}
}

func TestFake_DiagnosticPositions(t *testing.T) {
	em := compile(t, "kernel void k(global int* x) {\n  x[0] = 1;\n}\n}\n", "")
	if em.Status == clspv.StatusOK {
		t.Fatal("expected failure for an extra brace")
	}
	diags := clspv.ParseDiagnostics(em.Log)
	if len(diags) == 0 || diags[0].Line != 4 || diags[0].Column != 1 {
		t.Errorf("diagnostics = %+v", diags)
	}
}

func TestFake_Options(t *testing.T) {
	tests := []struct {
		options string
		ok      bool
	}{
		{"", true},
		{"-cl-std=CL2.0 -O2", true},
		{"-DWIDTH=4 -I include -cl-fast-relaxed-math", true},
		{"-inline-entry-points -w", true},
		{"-cl-std=CL9.9", false},
		{"--bogus", false},
		{`-D"unterminated`, false},
	}
	for _, tt := range tests {
		em := compile(t, MinimalKernel, tt.options)
		if got := em.Status == clspv.StatusOK; got != tt.ok {
			t.Errorf("options %q: ok = %v, want %v (log %q)", tt.options, got, tt.ok, em.Log)
		}
	}
}

func TestFake_WarningSuppressed(t *testing.T) {
	if em := compile(t, NoArgsKernel, ""); !strings.Contains(em.Log, "warning:") {
		t.Errorf("expected a warning, log %q", em.Log)
	}
	if em := compile(t, NoArgsKernel, "-w"); em.Log != "" {
		t.Errorf("-w should silence warnings, log %q", em.Log)
	}
}

func TestFake_ExtraSourceIsPrepended(t *testing.T) {
	em := New().CompileFromSourceString(context.Background(), "kernel void k(global T* p) { p[0] = 0; }", "typedef int T;", "")
	if em.Status != clspv.StatusOK {
		t.Fatalf("status %d, log %q", em.Status, em.Log)
	}
}

func TestFake_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	em := New().CompileFromSourceString(ctx, MinimalKernel, "", "")
	if em.Status == clspv.StatusOK {
		t.Error("compiled with a canceled context")
	}
}

func TestFake_Calls(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		c.CompileFromSourceString(context.Background(), MinimalKernel, "", "")
	}
	if c.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", c.Calls())
	}
}
