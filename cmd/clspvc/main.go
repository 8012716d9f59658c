// clspvc compiles OpenCL C kernels to SPIR-V with clspv.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/chazu/clspv/config"
	"github.com/chazu/clspv/internal/driver"
	"github.com/chazu/clspv/lsp"
)

const version = "0.1.0"

func main() {
	output := flag.String("o", "", "Output file (only with a single input; default: input with .spv extension)")
	options := flag.String("options", "", "Options passed to clspv, appended to [compiler] options")
	configPath := flag.String("config", "", "Path to clspv.toml (default: search upward from the working directory)")
	noCache := flag.Bool("no-cache", false, "Do not read or write the emission cache")
	dump := flag.Bool("dump", false, "Print a listing of each emitted module")
	diag := flag.Bool("diag", false, "Print a diagnostic summary per file")
	jobs := flag.Int("j", runtime.NumCPU(), "Number of files compiled in parallel")
	verbose := flag.Bool("v", false, "Verbose output")
	lspMode := flag.Bool("lsp", false, "Serve diagnostics over the Language Server Protocol on stdio")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: clspvc [options] file.cl...\n\n")
		fmt.Fprintf(os.Stderr, "Compiles OpenCL C files to SPIR-V modules.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  clspvc blur.cl                       # Writes blur.spv\n")
		fmt.Fprintf(os.Stderr, "  clspvc -o out.spv -options -O0 a.cl  # Explicit output and options\n")
		fmt.Fprintf(os.Stderr, "  clspvc -diag -dump kernels/*.cl      # Summaries and listings\n")
		fmt.Fprintf(os.Stderr, "  clspvc -lsp                          # Editor diagnostics\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose && cfg.Log.Verbosity < 2 {
		cfg.Log.Verbosity = 2
	}
	driver.ConfigureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d, err := driver.Open(ctx, cfg, driver.Options{NoCache: *noCache})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	if *showVersion {
		fmt.Printf("clspvc %s (%s)\n", version, d.ID)
		return
	}

	if *lspMode {
		srv := lsp.New(d.Compiler, *options, cfg.Timeout(), version)
		if err := srv.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *output != "" && len(paths) > 1 {
		fmt.Fprintf(os.Stderr, "Error: -o requires a single input file\n")
		os.Exit(2)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Compiler: %s\n", d.ID)
		if store := d.Cache(); store != nil {
			fmt.Fprintf(os.Stderr, "Cache: %s\n", store.Path())
		}
	}

	b := &batch{
		cc:       d.Compiler,
		options:  *options,
		parallel: *jobs,
		dump:     *dump,
		diag:     *diag,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	failed, err := b.run(ctx, plan(paths, *output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		if *verbose {
			fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(paths))
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}
