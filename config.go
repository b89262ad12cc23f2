package yangbind

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ModuleConfig names a module to load when a context is opened.
type ModuleConfig struct {
	Name     string   `yaml:"name"`
	Revision string   `yaml:"revision"`
	Features []string `yaml:"features"`
}

// Config is the file form of Options plus the modules to load.
//
// Example:
//
//	search_dirs:
//	  - ./yang
//	  - ${HOME}/yang
//	modules:
//	  - name: ietf-interfaces
//	    features: ["*"]
//	all_implemented: false
//	log_level: warning
type Config struct {
	SearchDirs          []string       `yaml:"search_dirs"`
	Modules             []ModuleConfig `yaml:"modules"`
	AllImplemented      bool           `yaml:"all_implemented"`
	DisableSearchDirs   bool           `yaml:"disable_search_dirs"`
	DisableSearchDirCwd bool           `yaml:"disable_search_dir_cwd"`
	PreferSearchDirs    bool           `yaml:"prefer_search_dirs"`
	LogLevel            string         `yaml:"log_level"` // error, warning, verbose or debug
	KeepWarnings        bool           `yaml:"keep_warnings"`
}

// Search directory lists taken from the environment, separated by the
// platform path list separator.
const (
	EnvYangPath    = "YANGPATH"
	EnvYangModPath = "YANG_MODPATH"
)

// LoadConfig reads a YAML configuration file. ${VAR} references are
// expanded before parsing and the directories of YANGPATH and YANG_MODPATH
// are appended to the search dirs. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Relative search dirs are taken from the config file's directory.
	base := filepath.Dir(path)
	for i, dir := range cfg.SearchDirs {
		if dir != "" && !filepath.IsAbs(dir) {
			cfg.SearchDirs[i] = filepath.Join(base, dir)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides appends the search dirs named by the environment.
func applyEnvOverrides(cfg *Config) {
	for _, env := range []string{EnvYangPath, EnvYangModPath} {
		cfg.SearchDirs = append(cfg.SearchDirs, envDirs(env)...)
	}
	if v := os.Getenv("YANGBIND_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func envDirs(name string) []string {
	var out []string
	for _, dir := range filepath.SplitList(os.Getenv(name)) {
		if dir = strings.TrimSpace(dir); dir != "" {
			out = append(out, dir)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LevelWarning.String()
	}
	// drop empty and repeated dirs
	seen := make(map[string]bool, len(cfg.SearchDirs))
	dirs := cfg.SearchDirs[:0]
	for _, dir := range cfg.SearchDirs {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	cfg.SearchDirs = dirs
}

func validateConfig(cfg *Config) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	for i, m := range cfg.Modules {
		if m.Name == "" {
			return fmt.Errorf("modules[%d].name is required", i)
		}
	}
	return nil
}

// ParseLevel parses a level name as printed by Level.String. "warn" is
// accepted for warning.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LevelError, nil
	case "warning", "warn", "":
		return LevelWarning, nil
	case "verbose", "info":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Options converts the configuration. The logger is left for the caller.
func (cfg *Config) Options() (Options, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return Options{}, err
	}
	return Options{
		SearchDirs:          append([]string(nil), cfg.SearchDirs...),
		AllImplemented:      cfg.AllImplemented,
		DisableSearchDirs:   cfg.DisableSearchDirs,
		DisableSearchDirCwd: cfg.DisableSearchDirCwd,
		PreferSearchDirs:    cfg.PreferSearchDirs,
		LogLevel:            level,
		KeepWarnings:        cfg.KeepWarnings,
	}, nil
}

// OpenConfig opens a context as configured and loads the listed modules.
// The context is closed again when any module fails to load.
func OpenConfig(cfg *Config, logger zerolog.Logger, metrics *Metrics) (*Context, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	opts.Metrics = metrics

	c, err := Open(opts)
	if err != nil {
		return nil, err
	}
	for _, m := range cfg.Modules {
		mod, err := c.LoadModule(m.Name, m.Revision, m.Features...)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("load module %s: %w", m.Name, err), c.Close())
		}
		logger.Debug().Str("module", mod.String()).Msg("module loaded")
	}
	return c, nil
}
