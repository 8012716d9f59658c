package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/spirv"
)

// job is one input file and where its module goes.
type job struct {
	in  string
	out string
}

// plan pairs every input with its output path. An explicit output only
// applies to a single input.
func plan(paths []string, output string) []job {
	jobs := make([]job, len(paths))
	for i, p := range paths {
		jobs[i] = job{in: p, out: strings.TrimSuffix(p, filepath.Ext(p)) + ".spv"}
	}
	if output != "" && len(jobs) == 1 {
		jobs[0].out = output
	}
	return jobs
}

// batch compiles a set of files, each into its own Result.
type batch struct {
	cc       clspv.Compiler
	options  string
	parallel int
	dump     bool
	diag     bool
	stdout   io.Writer
	stderr   io.Writer
}

// report is what one job produced, printed in input order.
type report struct {
	log     string
	listing string
	diags   []clspv.Diagnostic
	failed  bool
}

// run compiles all jobs and returns the number of failed compilations.
// The error is reserved for I/O problems, which stop the batch.
func (b *batch) run(ctx context.Context, jobs []job) (int, error) {
	reports := make([]report, len(jobs))

	var group errgroup.Group
	if b.parallel > 0 {
		group.SetLimit(b.parallel)
	}
	for i, j := range jobs {
		i, j := i, j
		group.Go(func() error {
			r, err := b.compile(ctx, j)
			reports[i] = r
			return err
		})
	}
	err := group.Wait()

	failed := 0
	for i, r := range reports {
		io.WriteString(b.stderr, r.log)
		if b.diag {
			fmt.Fprintf(b.stdout, "%s: %s\n", jobs[i].in, summarize(r))
		}
		if r.listing != "" {
			fmt.Fprintf(b.stdout, "; %s\n%s", jobs[i].out, r.listing)
		}
		if r.failed {
			failed++
		}
	}
	return failed, err
}

func (b *batch) compile(ctx context.Context, j job) (report, error) {
	var r report
	src, err := os.ReadFile(j.in)
	if err != nil {
		return r, fmt.Errorf("reading %s: %w", j.in, err)
	}

	out, cerr := clspv.CompileSource(ctx, b.cc, string(src), b.options)
	r.log = strings.ReplaceAll(out.Log, clspv.SourceName, j.in)
	r.diags = clspv.ParseDiagnostics(r.log)
	if cerr != nil {
		r.failed = true
		if r.log == "" {
			r.log = fmt.Sprintf("%s: %v\n", j.in, cerr)
		}
		return r, nil
	}

	if err := os.WriteFile(j.out, spirv.WordsToBytes(out.Words), 0644); err != nil {
		return r, fmt.Errorf("writing %s: %w", j.out, err)
	}

	if b.dump {
		var buf bytes.Buffer
		if err := spirv.Dump(&buf, out.Words); err != nil {
			fmt.Fprintf(&buf, "; %v\n", err)
		}
		r.listing = buf.String()
	}
	return r, nil
}

func summarize(r report) string {
	errs := clspv.CountErrors(r.diags)
	warnings := 0
	for _, d := range r.diags {
		if d.Severity == clspv.SeverityWarning {
			warnings++
		}
	}
	status := "ok"
	if r.failed {
		status = "failed"
	}
	return fmt.Sprintf("%s, %d error(s), %d warning(s)", status, errs, warnings)
}
