// Package clspvtest provides a deterministic in-process stand-in for the
// clspv compiler.
//
// The fake does not compile OpenCL C. It checks delimiter balance and
// top-level declarations, finds kernel declarations, rejects unknown
// options, and emits a small but structurally valid SPIR-V module with one
// entry point per kernel. Diagnostics follow the clang format used by clspv.
package clspvtest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/google/shlex"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/spirv"
)

// Sources exercising the main paths.
const (
	MinimalKernel = "kernel void fill(global int* out) {\n  out[get_global_id(0)] = 1;\n}\n"
	TwoKernels    = "__kernel void a(global int* x) { x[0] = 1; }\n__kernel void b(global int* y) { y[0] = 2; }\n"
	SyntaxError   = "kernel void broken(global int* out) {\n  out[0] = 1;\n"
	NoArgsKernel  = "kernel void empty() {}\n"
)

// FileName is the file name used in diagnostics.
const FileName = clspv.SourceName

// GeneratorWord is written into the header of every emitted module.
const GeneratorWord = 0x00150000

var kernelDecl = regexp.MustCompile(`\b(?:__kernel|kernel)\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)

// Compiler is the fake. The zero value is ready to use.
type Compiler struct {
	// PartialOutput makes failed compilations emit the module header, to
	// exercise callers that must cope with partial output.
	PartialOutput bool

	calls atomic.Int64
}

// New returns a fake compiler.
func New() *Compiler {
	return &Compiler{}
}

// Calls returns the number of compilations run so far.
func (c *Compiler) Calls() int {
	return int(c.calls.Load())
}

// CompileFromSourceString implements clspv.Compiler.
func (c *Compiler) CompileFromSourceString(ctx context.Context, source, extra, options string) clspv.Emission {
	c.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return clspv.Emission{Status: clspv.StatusFailed, Log: fmt.Sprintf("error: %v\n", err)}
	}

	opts, diag := parseOptions(options)
	if diag != "" {
		return c.fail(diag)
	}

	full := source
	if extra != "" {
		full = extra + "\n" + source
	}
	stripped := stripComments(full)

	if diag := checkDelimiters(stripped); diag != "" {
		return c.fail(diag)
	}
	if diag := checkTopLevel(stripped); diag != "" {
		return c.fail(diag)
	}

	matches := kernelDecl.FindAllStringSubmatchIndex(stripped, -1)
	if len(matches) == 0 {
		return c.fail(fmt.Sprintf("%s: error: no kernels found in translation unit\n", FileName))
	}

	var logText strings.Builder
	kernels := make([]string, 0, len(matches))
	for _, m := range matches {
		name := stripped[m[2]:m[3]]
		params := strings.TrimSpace(stripped[m[4]:m[5]])
		kernels = append(kernels, name)
		if !opts.noWarnings && (params == "" || params == "void") {
			line, col := position(stripped, m[2])
			fmt.Fprintf(&logText, "%s:%d:%d: warning: kernel '%s' takes no arguments\n", FileName, line, col, name)
		}
	}

	return clspv.Emission{
		Status: clspv.StatusOK,
		Words:  buildModule(kernels, opts.clVersion),
		Log:    logText.String(),
	}
}

func (c *Compiler) fail(diag string) clspv.Emission {
	em := clspv.Emission{Status: clspv.StatusFailed, Log: diag + "1 error generated.\n"}
	if c.PartialOutput {
		em.Words = []uint32{spirv.MagicNumber, uint32(spirv.Version1_0), GeneratorWord, 1, 0}
	}
	return em
}

type options struct {
	clVersion  uint32
	noWarnings bool
}

func parseOptions(s string) (options, string) {
	opts := options{clVersion: 120}
	args, err := shlex.Split(s)
	if err != nil {
		return opts, fmt.Sprintf("error: cannot parse options: %v\n", err)
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-D" || arg == "-I":
			if i+1 == len(args) {
				return opts, fmt.Sprintf("error: argument to '%s' is missing (expected 1 value)\n", arg)
			}
			i++
		case arg == "-w":
			opts.noWarnings = true
		case strings.HasPrefix(arg, "-cl-std="):
			switch strings.TrimPrefix(arg, "-cl-std=") {
			case "CL1.0", "CL1.1", "CL1.2":
				opts.clVersion = 120
			case "CL2.0":
				opts.clVersion = 200
			case "CL3.0":
				opts.clVersion = 300
			default:
				return opts, fmt.Sprintf("error: invalid value '%s' in '%s'\n", strings.TrimPrefix(arg, "-cl-std="), arg)
			}
		case strings.HasPrefix(arg, "-D"), strings.HasPrefix(arg, "-I"),
			strings.HasPrefix(arg, "-O"), strings.HasPrefix(arg, "-cl-"),
			arg == "-inline-entry-points":
		default:
			return opts, fmt.Sprintf("error: unknown argument: '%s'\n", arg)
		}
	}
	return opts, ""
}

func buildModule(kernels []string, clVersion uint32) []uint32 {
	b := spirv.NewBuilder(spirv.Version1_0)
	b.SetGenerator(GeneratorWord)
	b.AddCapability(spirv.CapabilityShader)
	b.AddExtension("SPV_KHR_storage_buffer_storage_class")
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
	b.AddSource(spirv.SourceLanguageOpenCLC, clVersion)

	void := b.AddTypeVoid()
	fnType := b.AddTypeFunction(void)
	for _, name := range kernels {
		fn := b.AddEmptyFunction(void, fnType)
		b.AddEntryPoint(spirv.ExecutionModelGLCompute, fn, name)
		b.AddExecutionMode(fn, spirv.ExecutionModeLocalSize, 1, 1, 1)
		b.AddName(fn, name)
	}
	return b.Build()
}

// stripComments blanks out comments and string literals, keeping offsets
// and newlines so that positions still match the source.
func stripComments(src string) string {
	out := []byte(src)
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			for i += 2; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
		case out[i] == '"' || out[i] == '\'':
			quote := out[i]
			for i++; i < len(out) && out[i] != quote && out[i] != '\n'; i++ {
				if out[i] == '\\' && i+1 < len(out) {
					out[i] = ' '
					i++
				}
				out[i] = ' '
			}
		case out[i] == '#':
			// Preprocessor lines are accepted as is.
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		}
	}
	return string(out)
}

var closing = map[byte]byte{'(': ')', '[': ']', '{': '}'}

func checkDelimiters(src string) string {
	type open struct {
		ch  byte
		off int
	}
	var stack []open
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '(', '[', '{':
			stack = append(stack, open{c, i})
		case ')', ']', '}':
			if len(stack) == 0 || closing[stack[len(stack)-1].ch] != c {
				line, col := position(src, i)
				return fmt.Sprintf("%s:%d:%d: error: extraneous closing '%c'\n", FileName, line, col, c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		line, col := position(src, len(src))
		oline, ocol := position(src, top.off)
		return fmt.Sprintf("%s:%d:%d: error: expected '%c'\n%s:%d:%d: note: to match this '%c'\n",
			FileName, line, col, closing[top.ch], FileName, oline, ocol, top.ch)
	}
	return ""
}

// checkTopLevel requires every top-level declaration to end with ';' or a
// closing brace.
func checkTopLevel(src string) string {
	depth := 0
	pending := -1
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' || c == '(' || c == '[':
			depth++
		case c == '}' || c == ')' || c == ']':
			depth--
			if depth == 0 && c == '}' {
				pending = -1
			}
		case depth == 0 && c == ';':
			pending = -1
		case depth == 0 && pending < 0 && c > ' ':
			pending = i
		}
	}
	if pending >= 0 {
		line, col := position(src, len(strings.TrimRight(src, " \t\r\n")))
		return fmt.Sprintf("%s:%d:%d: error: expected ';' after top level declarator\n", FileName, line, col)
	}
	return ""
}

// position converts a byte offset into a 1-based line and column.
func position(src string, off int) (int, int) {
	if off > len(src) {
		off = len(src)
	}
	line := 1 + strings.Count(src[:off], "\n")
	col := off - strings.LastIndexByte(src[:off], '\n')
	return line, col
}
