// Package process runs the clspv executable as the compiler collaborator.
//
// Each compilation gets its own temporary directory holding the source
// file and the output module, so concurrent compilations never share
// state.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/tliron/commonlog"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/spirv"
)

var log = commonlog.GetLogger("clspv.process")

// DefaultPath is the executable looked up on PATH when Config.Path is empty.
const DefaultPath = "clspv"

// sourceName is the file name reported in diagnostics instead of the
// temporary path.
const sourceName = clspv.SourceName

// Config configures the process backend.
type Config struct {
	// Path of the clspv executable.
	Path string
	// Timeout bounds a single compilation. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
	// Env is appended to the current environment of the child process.
	Env []string
	// TempDir is the parent of the per-compilation directories. Empty
	// means os.TempDir().
	TempDir string
}

// Compiler runs clspv once per compilation.
type Compiler struct {
	cfg Config

	versionOnce sync.Once
	version     string
}

// New creates a process compiler.
func New(cfg Config) *Compiler {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return &Compiler{cfg: cfg}
}

// Path returns the executable this compiler runs.
func (c *Compiler) Path() string {
	return c.cfg.Path
}

// CompileFromSourceString implements clspv.Compiler. extra, when set, is
// placed in front of source in the same translation unit.
func (c *Compiler) CompileFromSourceString(ctx context.Context, source, extra, options string) clspv.Emission {
	args, err := shlex.Split(options)
	if err != nil {
		return failed("error: cannot parse options %q: %v\n", options, err)
	}

	dir, err := os.MkdirTemp(c.cfg.TempDir, "clspv-*")
	if err != nil {
		return failed("error: creating work directory: %v\n", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "source.cl")
	outPath := filepath.Join(dir, "out.spv")

	text := source
	if extra != "" {
		text = extra + "\n" + source
	}
	if err := os.WriteFile(srcPath, []byte(text), 0o600); err != nil {
		return failed("error: writing source: %v\n", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	args = append(args, "-o", outPath, srcPath)
	cmd := exec.CommandContext(ctx, c.cfg.Path, args...)
	cmd.Dir = dir
	if len(c.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), c.cfg.Env...)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	log.Debugf("running %s %s", c.cfg.Path, strings.Join(args, " "))
	runErr := cmd.Run()
	logText := strings.ReplaceAll(output.String(), srcPath, sourceName)

	status, err := exitStatus(ctx, runErr)
	if err != nil {
		log.Warningf("clspv did not run: %v", err)
		return clspv.Emission{Status: clspv.StatusFailed, Log: logText + "error: " + err.Error() + "\n"}
	}

	words, readErr := readModule(outPath)
	if status != clspv.StatusOK {
		return clspv.Emission{Status: status, Words: words, Log: logText}
	}
	if readErr == nil {
		readErr = spirv.Validate(words)
	}
	if readErr != nil {
		return clspv.Emission{Status: clspv.StatusFailed, Words: words, Log: logText + "error: " + readErr.Error() + "\n"}
	}
	return clspv.Emission{Status: status, Words: words, Log: logText}
}

// Version returns the first line printed by "clspv --version", or an
// empty string if it cannot be determined. The result is cached.
func (c *Compiler) Version(ctx context.Context) string {
	c.versionOnce.Do(func() {
		out, err := exec.CommandContext(ctx, c.cfg.Path, "--version").CombinedOutput()
		if err != nil {
			log.Debugf("clspv --version: %v", err)
			return
		}
		line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
		c.version = line
	})
	return c.version
}

// exitStatus converts the error from Cmd.Run into a compiler status. The
// error result is set only when the compiler did not run to completion.
func exitStatus(ctx context.Context, runErr error) (int, error) {
	if runErr == nil {
		return clspv.StatusOK, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return clspv.StatusFailed, fmt.Errorf("compilation interrupted: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		// clspv returns -1 from main; the OS reports it as 255.
		if code := exitErr.ExitCode(); code > 0 {
			return int(int8(code)), nil
		}
		return clspv.StatusFailed, fmt.Errorf("clspv terminated: %v", exitErr)
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return clspv.StatusFailed, fmt.Errorf("clspv executable not found: %w", runErr)
	}
	return clspv.StatusFailed, runErr
}

func readModule(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.New("clspv produced no output file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading output: %w", err)
	}
	return spirv.BytesToWords(data)
}

func failed(format string, args ...any) clspv.Emission {
	return clspv.Emission{Status: clspv.StatusFailed, Log: fmt.Sprintf(format, args...)}
}
