package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "JSBOX"

// Config holds all harness configuration.
type Config struct {
	Sandbox SandboxConfig `yaml:"sandbox" toml:"sandbox"`
	Logging LogConfig     `yaml:"logging" toml:"logging"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
}

// SandboxConfig holds entry resolution, loader and budget settings.
type SandboxConfig struct {
	BaseDir      string   `envconfig:"BASE_DIR" yaml:"base_dir" toml:"base_dir"`
	UtilsDir     string   `envconfig:"UTILS_DIR" yaml:"utils_dir" toml:"utils_dir"`
	DefaultApp   string   `envconfig:"DEFAULT_APP" yaml:"default_app" toml:"default_app"`
	ParseTimeout Duration `envconfig:"PARSE_TIMEOUT" yaml:"parse_timeout" toml:"parse_timeout"`
	ExecTimeout  Duration `envconfig:"EXEC_TIMEOUT" yaml:"exec_timeout" toml:"exec_timeout"`
	Linger       Duration `envconfig:"LINGER" yaml:"linger" toml:"linger"`
	Deny         []string `envconfig:"DENY" yaml:"deny" toml:"deny"`
}

// LogConfig holds harness logging and audit log configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
	File        string `envconfig:"LOG_FILE" yaml:"file" toml:"file"`
}

// OutputConfig holds report and metrics destinations. Empty disables.
type OutputConfig struct {
	ReportFile  string `envconfig:"REPORT_FILE" yaml:"report_file" toml:"report_file"`
	MetricsFile string `envconfig:"METRICS_FILE" yaml:"metrics_file" toml:"metrics_file"`
}

// Duration is a time.Duration that decodes from strings such as "750ms".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			BaseDir:      ".",
			UtilsDir:     "utils",
			DefaultApp:   "application",
			ParseTimeout: Duration(time.Second),
			ExecTimeout:  Duration(5 * time.Second),
			Linger:       Duration(30 * time.Second),
			Deny:         []string{"fs", "fs/*", "node:fs", "node:fs/*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			File:        "log.txt",
		},
	}
}

// Load builds configuration from defaults, an optional file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	// Sections are processed one by one so keys stay JSBOX_<NAME>
	// instead of JSBOX_<SECTION>_<NAME>.
	for _, section := range []any{&cfg.Sandbox, &cfg.Logging, &cfg.Output} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks budgets and required paths.
func (c *Config) Validate() error {
	var errs []error
	if c.Sandbox.ParseTimeout <= 0 {
		errs = append(errs, errors.New("parse timeout must be positive"))
	}
	if c.Sandbox.ExecTimeout <= 0 {
		errs = append(errs, errors.New("execution timeout must be positive"))
	}
	if c.Sandbox.Linger < 0 {
		errs = append(errs, errors.New("linger must not be negative"))
	}
	if c.Sandbox.BaseDir == "" {
		errs = append(errs, errors.New("base dir is required"))
	}
	if c.Sandbox.DefaultApp == "" {
		errs = append(errs, errors.New("default app is required"))
	}
	if c.Logging.File == "" {
		errs = append(errs, errors.New("log file is required"))
	}
	return errors.Join(errs...)
}

// UtilsPath returns the utility directory resolved against the base dir.
func (c *Config) UtilsPath() string {
	if filepath.IsAbs(c.Sandbox.UtilsDir) {
		return c.Sandbox.UtilsDir
	}
	return filepath.Join(c.Sandbox.BaseDir, c.Sandbox.UtilsDir)
}
