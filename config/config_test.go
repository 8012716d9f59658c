package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[compiler]
backend = "process"
path = "/opt/clspv/bin/clspv"
options = "-cl-std=CL2.0 -inline-entry-points"
timeout = "30s"

[cache]
enabled = false
path = "build/cache.db"

[log]
verbosity = 2
file = "clspv.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Compiler.Backend != BackendProcess {
		t.Errorf("backend = %q, want process", c.Compiler.Backend)
	}
	if c.Compiler.Path != "/opt/clspv/bin/clspv" {
		t.Errorf("path = %q", c.Compiler.Path)
	}
	if c.Compiler.Options != "-cl-std=CL2.0 -inline-entry-points" {
		t.Errorf("options = %q", c.Compiler.Options)
	}
	if c.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.Timeout())
	}
	if c.Cache.Enabled {
		t.Error("cache enabled, want disabled")
	}
	if want := filepath.Join(c.Dir, "build", "cache.db"); c.CachePath() != want {
		t.Errorf("CachePath = %q, want %q", c.CachePath(), want)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if lf := c.LogFile(); lf == nil || *lf != filepath.Join(c.Dir, "clspv.log") {
		t.Errorf("LogFile = %v", lf)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[compiler]
options = "-O0"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Compiler.Backend != BackendAuto {
		t.Errorf("default backend = %q, want auto", c.Compiler.Backend)
	}
	if c.Compiler.Path != "clspv" {
		t.Errorf("default path = %q, want clspv", c.Compiler.Path)
	}
	if c.Timeout() != 2*time.Minute {
		t.Errorf("default timeout = %v, want 2m", c.Timeout())
	}
	if !c.Cache.Enabled {
		t.Error("cache disabled by default")
	}
	if c.LogFile() != nil {
		t.Errorf("LogFile = %q, want nil", *c.LogFile())
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Compiler.Backend != BackendAuto || c.Cache.Path != ".clspv/cache.db" || c.Log.Verbosity != 0 {
		t.Errorf("Default() = %+v", c)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[compiler\n", "parse error"},
		{"unknown backend", "[compiler]\nbackend = \"gpu\"\n", "invalid"},
		{"wrong type", "[cache]\nenabled = \"yes\"\n", "invalid"},
		{"verbosity range", "[log]\nverbosity = 9\n", "invalid"},
		{"unknown field", "[compiler]\nflavor = \"x\"\n", "invalid"},
		{"bad timeout", "[compiler]\ntimeout = \"soon\"\n", "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "test.toml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing clspv.toml")
	}
}

func TestFindAndLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[compiler]\nbackend = \"native\"\n")

	sub := filepath.Join(root, "kernels", "blur")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Compiler.Backend != BackendNative {
		t.Errorf("backend = %q, want native", c.Compiler.Backend)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoad_NotFound(t *testing.T) {
	dir := t.TempDir()
	c, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Compiler.Backend != BackendAuto {
		t.Errorf("backend = %q, want default", c.Compiler.Backend)
	}
	abs, _ := filepath.Abs(dir)
	if c.CachePath() != filepath.Join(abs, ".clspv", "cache.db") {
		t.Errorf("CachePath = %q", c.CachePath())
	}
}
