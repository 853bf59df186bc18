package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration.
type Config struct {
	Engine      EngineConfig      `toml:"engine"`
	Symbols     SymbolsConfig     `toml:"symbols"`
	Breakpoints BreakpointsConfig `toml:"breakpoints"`
	Logging     LoggingConfig     `toml:"logging"`
	REPL        REPLConfig        `toml:"repl"`
	Scripts     ScriptsConfig     `toml:"scripts"`
}

// EngineConfig selects and parameterizes the debugger backend.
type EngineConfig struct {
	// Adapter is the registered engine adapter name.
	Adapter string `toml:"adapter"`

	// Target is the adapter-specific connection string, typically a
	// host:port for a remote debugserver.
	Target string `toml:"target"`
}

// SymbolsConfig controls symbol catalog persistence.
type SymbolsConfig struct {
	// MapPath is where symbol maps are saved and loaded.
	MapPath string `toml:"map_path"`

	// Probes override the expressions used to detect a stale map.
	Probes []string `toml:"probes"`
}

// BreakpointsConfig sets breakpoint policy defaults.
type BreakpointsConfig struct {
	// Override controls whether a new breakpoint silently replaces an
	// existing one at the same location. When false the user is asked.
	Override bool `toml:"override"`
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// File receives log output. Empty means stderr.
	File string `toml:"file"`
}

// REPLConfig controls the interactive prompt.
type REPLConfig struct {
	// Prompt is the readline prompt string.
	Prompt string `toml:"prompt"`

	// HistoryFile persists command history across sessions.
	HistoryFile string `toml:"history_file"`
}

// ScriptsConfig controls Lua startup scripts.
type ScriptsConfig struct {
	// Startup scripts run in order after the session is attached.
	Startup []string `toml:"startup"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Engine: EngineConfig{
			Adapter: "lldb",
		},
		Symbols: SymbolsConfig{
			MapPath: filepath.Join(home, ".peek", "symbols.json"),
		},
		Breakpoints: BreakpointsConfig{
			Override: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		REPL: REPLConfig{
			Prompt:      "peek> ",
			HistoryFile: filepath.Join(home, ".peek", "history"),
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "peek.toml"
	}
	return filepath.Join(home, ".peek", "config.toml")
}

// Load reads configuration from path layered over the defaults. A
// missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.mergeEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// mergeEnv overlays PEEK_* environment variables. Only settings that
// make sense per-invocation are exposed this way.
func (c *Config) mergeEnv() {
	if v := os.Getenv("PEEK_ADAPTER"); v != "" {
		c.Engine.Adapter = v
	}
	if v := os.Getenv("PEEK_TARGET"); v != "" {
		c.Engine.Target = v
	}
	if v := os.Getenv("PEEK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PEEK_SYMBOL_MAP"); v != "" {
		c.Symbols.MapPath = v
	}
	if v := os.Getenv("PEEK_OVERRIDE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Breakpoints.Override = b
		}
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Engine.Adapter == "" {
		return &ValidationError{Field: "engine.adapter", Value: c.Engine.Adapter, Message: "must not be empty"}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: "must be debug, info, warn or error"}
	}
	if c.REPL.Prompt == "" {
		return &ValidationError{Field: "repl.prompt", Value: c.REPL.Prompt, Message: "must not be empty"}
	}
	return nil
}
