package config

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/kilnpkg/kiln/pkg/logging"
)

// Config holds the runtime configuration of a kiln invocation.
// Parallelism is carried here explicitly; nothing reads a process-wide knob.
type Config struct {
	Root       string `koanf:"root"`
	Profile    string `koanf:"profile"`
	Jobs       int    `koanf:"jobs"`
	Watch      bool   `koanf:"watch"`
	Serve      bool   `koanf:"serve"`
	Port       int    `koanf:"port"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
}

// Parallel reports whether the graph build passes should fan out.
func (c *Config) Parallel() bool {
	return c.Jobs > 1
}

// LogLevel maps the verbosity settings to a slog level.
// The named verbosity wins over repeated -v flags.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Verbosity) {
	case "trace":
		return logging.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	switch {
	case c.VerboseCnt >= 2:
		return logging.LevelTrace
	case c.VerboseCnt == 1:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"root":      ".",
		"profile":   "dev",
		"jobs":      runtime.NumCPU(),
		"watch":     false,
		"serve":     false,
		"port":      8080,
		"verbosity": "",
		"verbose":   0,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - .kiln/config.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider(".kiln/config.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: KILN_ (e.g., KILN_JOBS=4)
	if err := k.Load(env.Provider("KILN_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "KILN_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Jobs < 1 {
		cfg.Jobs = 1
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
