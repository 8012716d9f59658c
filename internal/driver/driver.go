// Package driver assembles the compiler stack described by a clspv.toml:
// backend selection, default options and the emission cache.
package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/clspv"
	"github.com/chazu/clspv/backend/native"
	"github.com/chazu/clspv/backend/process"
	"github.com/chazu/clspv/cache"
	"github.com/chazu/clspv/config"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("clspv.driver")

// Options adjust Open beyond what the configuration file says.
type Options struct {
	// NoCache disables the emission cache even if the config enables it.
	NoCache bool
}

// Driver owns a configured compiler and the resources behind it.
type Driver struct {
	// Compiler is the assembled stack. It is safe for concurrent use.
	Compiler clspv.Compiler
	// ID identifies the backend and its version.
	ID string

	worker *clspv.Worker
	store  *cache.Store
}

// ConfigureLogging applies the [log] section to commonlog.
func ConfigureLogging(cfg *config.Config) {
	commonlog.Configure(cfg.Log.Verbosity, cfg.LogFile())
}

// Open selects the backend named by cfg and wraps it with the configured
// options and cache. A cache that cannot be opened is logged and skipped.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Driver, error) {
	d := &Driver{}

	var inner clspv.Compiler
	switch backend := cfg.Compiler.Backend; {
	case backend == config.BackendNative || (backend == config.BackendAuto && native.Available()):
		w, err := native.New()
		if err != nil {
			return nil, fmt.Errorf("driver: opening native backend: %w", err)
		}
		d.worker = w
		inner = w
		d.ID = "native " + native.Identity()
	default:
		pc := process.New(process.Config{
			Path:    cfg.Compiler.Path,
			Timeout: cfg.Timeout(),
		})
		inner = pc
		d.ID = "process:" + pc.Path()
		if v := pc.Version(ctx); v != "" {
			d.ID += " " + v
		}
	}
	log.Debugf("using %s", d.ID)

	if cfg.Cache.Enabled && !opts.NoCache {
		store, err := cache.Open(cfg.CachePath())
		if err != nil {
			log.Warningf("cache disabled: %v", err)
		} else {
			d.store = store
		}
	}

	d.Compiler = assemble(inner, d.store, d.ID, cfg.Compiler.Options)
	return d, nil
}

// assemble layers default options and the cache over inner. Options are
// applied outside the cache so that they are part of every key.
func assemble(inner clspv.Compiler, store *cache.Store, id, defaults string) clspv.Compiler {
	cc := inner
	if store != nil {
		cc = cache.Wrap(store, id, cc)
	}
	if defaults = strings.TrimSpace(defaults); defaults != "" {
		cc = withDefaultOptions(cc, defaults)
	}
	return cc
}

// withDefaultOptions puts defaults in front of every option string, so
// that later per-call options win.
func withDefaultOptions(cc clspv.Compiler, defaults string) clspv.Compiler {
	return clspv.CompilerFunc(func(ctx context.Context, source, extra, options string) clspv.Emission {
		if options != "" {
			options = defaults + " " + options
		} else {
			options = defaults
		}
		return cc.CompileFromSourceString(ctx, source, extra, options)
	})
}

// Cache returns the emission cache, or nil if caching is off.
func (d *Driver) Cache() *cache.Store {
	return d.store
}

// Close stops the native worker and closes the cache.
func (d *Driver) Close() error {
	if d.worker != nil {
		d.worker.Stop()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
