// Package config handles clspv.toml configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "clspv.toml"

// Backend names accepted in [compiler] backend.
const (
	BackendAuto    = "auto"
	BackendProcess = "process"
	BackendNative  = "native"
)

//go:embed schema.cue
var schemaData []byte

var schema = func() cue.Value {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(schemaData, cue.Filename("clspv/config/schema.cue"))
	if err := v.Err(); err != nil {
		panic(fmt.Errorf("internal error: invalid config schema: %v", errors.Details(err, nil)))
	}
	return v.LookupPath(cue.ParsePath("#Config"))
}()

// Config represents a clspv.toml configuration.
type Config struct {
	Compiler Compiler `toml:"compiler" json:"compiler"`
	Cache    Cache    `toml:"cache" json:"cache"`
	Log      Log      `toml:"log" json:"log"`

	// Dir is the directory containing the clspv.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Compiler selects and parameterizes the compiler backend.
type Compiler struct {
	Backend string `toml:"backend" json:"backend"`
	Path    string `toml:"path" json:"path"`
	Options string `toml:"options" json:"options"`
	Timeout string `toml:"timeout" json:"timeout"`
}

// Cache configures the emission cache.
type Cache struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// Default returns the configuration used when no clspv.toml exists.
func Default() *Config {
	c, err := Parse(nil, "<default>")
	if err != nil {
		panic(fmt.Errorf("internal error: default config: %v", err))
	}
	return c
}

// Parse decodes TOML data, validates it against the schema and fills in
// defaults. The name is used in error messages.
func Parse(data []byte, name string) (*Config, error) {
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}

	v := schema.Context().Encode(raw).Unify(schema)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid %s: %v", name, errors.Details(err, nil))
	}

	var c Config
	if err := v.Decode(&c); err != nil {
		return nil, fmt.Errorf("internal error: decoding %s: %w", name, err)
	}
	if _, err := time.ParseDuration(c.Compiler.Timeout); err != nil {
		return nil, fmt.Errorf("invalid %s: compiler.timeout: %w", name, err)
	}
	return &c, nil
}

// Load parses a clspv.toml file from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration at an explicit path. Relative paths in
// the file resolve against its directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a clspv.toml file, then loads
// and returns it. Returns Default() with Dir set to startDir if none is
// found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	start := dir

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			c := Default()
			c.Dir = start
			return c, nil
		}
		dir = parent
	}
}

// Timeout returns the parsed compiler timeout. Zero means none.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.Compiler.Timeout)
	return d
}

// CachePath returns the cache database path, resolved against Dir.
func (c *Config) CachePath() string {
	return c.resolve(c.Cache.Path)
}

// LogFile returns the log file path resolved against Dir, or nil for
// stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	p := c.resolve(c.Log.File)
	return &p
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
