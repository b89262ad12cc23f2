package yangbind

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "yangbind.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvYangPath, "")
	t.Setenv(EnvYangModPath, "")
	t.Setenv("YANGBIND_LOG_LEVEL", "")
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TEST_YANG_DIR", "/opt/yang")
	path := writeConfig(t, dir, `
search_dirs:
  - ./models
  - ${TEST_YANG_DIR}
  - ./models
modules:
  - name: example
    revision: "2024-01-01"
    features: [fancy]
disable_search_dir_cwd: true
keep_warnings: true
log_level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := []string{filepath.Join(dir, "models"), "/opt/yang"}
	if !slices.Equal(cfg.SearchDirs, want) {
		t.Errorf("SearchDirs = %v, want %v", cfg.SearchDirs, want)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].Name != "example" || cfg.Modules[0].Revision != "2024-01-01" {
		t.Fatalf("Modules = %+v", cfg.Modules)
	}
	if !slices.Equal(cfg.Modules[0].Features, []string{"fancy"}) {
		t.Errorf("Features = %v", cfg.Modules[0].Features)
	}
	if !cfg.DisableSearchDirCwd || !cfg.KeepWarnings {
		t.Error("boolean options not read")
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.LogLevel != LevelDebug {
		t.Errorf("LogLevel = %v, want debug", opts.LogLevel)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), "modules: []\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LogLevel != "warning" {
		t.Errorf("LogLevel = %q, want warning", cfg.LogLevel)
	}
	if len(cfg.SearchDirs) != 0 {
		t.Errorf("SearchDirs = %v, want none", cfg.SearchDirs)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearEnv(t)
	sep := string(os.PathListSeparator)
	t.Setenv(EnvYangPath, "/a"+sep+" "+sep+"/b")
	t.Setenv(EnvYangModPath, "/c")
	t.Setenv("YANGBIND_LOG_LEVEL", "error")

	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), "search_dirs: [/a]\nlog_level: debug\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if want := []string{"/a", "/b", "/c"}; !slices.Equal(cfg.SearchDirs, want) {
		t.Errorf("SearchDirs = %v, want %v", cfg.SearchDirs, want)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want the environment override", cfg.LogLevel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "read config"},
		{"bad yaml", writeConfig(t, t.TempDir(), "search_dirs: [unclosed\n"), "parse config"},
		{"unknown key", writeConfig(t, t.TempDir(), "no_yang_library: true\n"), "parse config"},
		{"bad level", writeConfig(t, t.TempDir(), "log_level: loud\n"), "unknown log level"},
		{"unnamed module", writeConfig(t, t.TempDir(), "modules:\n  - revision: \"2024-01-01\"\n"), "modules[0].name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			if err == nil {
				t.Fatal("LoadConfig succeeded")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"error", LevelError},
		{"warning", LevelWarning},
		{"WARN", LevelWarning},
		{"", LevelWarning},
		{"verbose", LevelVerbose},
		{"info", LevelVerbose},
		{" debug ", LevelDebug},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) succeeded")
	}
}

func TestOpenConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	if err := os.Mkdir(models, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(models, "example@2024-01-01.yang"), []byte(testModule), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(writeConfig(t, dir, `
search_dirs: [models]
disable_search_dir_cwd: true
modules:
  - name: example
    features: ["*"]
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	ctx, err := OpenConfig(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("OpenConfig failed: %v", err)
	}
	defer ctx.Close()

	mod, err := ctx.GetModule("example", "")
	if err != nil {
		t.Fatalf("GetModule failed: %v", err)
	}
	if mod.Revision != "2024-01-01" {
		t.Errorf("Revision = %q", mod.Revision)
	}
	if on, _ := mod.FeatureEnabled("fancy"); !on {
		t.Error(`features ["*"] not applied`)
	}
}

func TestOpenConfigMissingModule(t *testing.T) {
	cfg := &Config{
		DisableSearchDirCwd: true,
		LogLevel:            "warning",
		Modules:             []ModuleConfig{{Name: "does-not-exist"}},
	}
	_, err := OpenConfig(cfg, zerolog.Nop(), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("OpenConfig error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "load module does-not-exist") {
		t.Errorf("error = %v", err)
	}
}
