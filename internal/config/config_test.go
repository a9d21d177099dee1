package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Sandbox config
	assert.Equal(t, ".", cfg.Sandbox.BaseDir)
	assert.Equal(t, "utils", cfg.Sandbox.UtilsDir)
	assert.Equal(t, "application", cfg.Sandbox.DefaultApp)
	assert.Equal(t, time.Second, cfg.Sandbox.ParseTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.Sandbox.ExecTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Linger.Std())
	assert.Contains(t, cfg.Sandbox.Deny, "fs")

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "log.txt", cfg.Logging.File)

	// Output config
	assert.Empty(t, cfg.Output.ReportFile)
	assert.Empty(t, cfg.Output.MetricsFile)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "application", cfg.Sandbox.DefaultApp)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"JSBOX_BASE_DIR":      "/srv/apps",
		"JSBOX_UTILS_DIR":     "lib",
		"JSBOX_DEFAULT_APP":   "main",
		"JSBOX_PARSE_TIMEOUT": "250ms",
		"JSBOX_EXEC_TIMEOUT":  "2s",
		"JSBOX_LINGER":        "0s",
		"JSBOX_DENY":          "fs,child_process",
		"JSBOX_LOG_LEVEL":     "debug",
		"JSBOX_LOG_DEV":       "true",
		"JSBOX_LOG_FILE":      "audit.log",
		"JSBOX_REPORT_FILE":   "-",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/apps", cfg.Sandbox.BaseDir)
	assert.Equal(t, "lib", cfg.Sandbox.UtilsDir)
	assert.Equal(t, "main", cfg.Sandbox.DefaultApp)
	assert.Equal(t, 250*time.Millisecond, cfg.Sandbox.ParseTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.Sandbox.ExecTimeout.Std())
	assert.Equal(t, time.Duration(0), cfg.Sandbox.Linger.Std())
	assert.Equal(t, []string{"fs", "child_process"}, cfg.Sandbox.Deny)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "audit.log", cfg.Logging.File)
	assert.Equal(t, "-", cfg.Output.ReportFile)
	assert.Equal(t, "/srv/apps/lib", cfg.UtilsPath())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsbox.yaml")
	content := `
sandbox:
  base_dir: apps
  exec_timeout: 750ms
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "apps", cfg.Sandbox.BaseDir)
	assert.Equal(t, 750*time.Millisecond, cfg.Sandbox.ExecTimeout.Std())
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, time.Second, cfg.Sandbox.ParseTimeout.Std())
	assert.Equal(t, "log.txt", cfg.Logging.File)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsbox.toml")
	content := `
[sandbox]
default_app = "main"
parse_timeout = "100ms"
deny = ["fs", "os"]

[output]
metrics_file = "jsbox.prom"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Sandbox.DefaultApp)
	assert.Equal(t, 100*time.Millisecond, cfg.Sandbox.ParseTimeout.Std())
	assert.Equal(t, []string{"fs", "os"}, cfg.Sandbox.Deny)
	assert.Equal(t, "jsbox.prom", cfg.Output.MetricsFile)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsbox.yml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))
	t.Setenv("JSBOX_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		env     map[string]string
	}{
		{
			name:    "unsupported extension",
			file:    "jsbox.ini",
			content: "level=info",
		},
		{
			name:    "malformed yaml",
			file:    "bad.yaml",
			content: "sandbox: [unterminated",
		},
		{
			name: "invalid duration",
			env:  map[string]string{"JSBOX_EXEC_TIMEOUT": "soon"},
		},
		{
			name: "zero parse budget",
			env:  map[string]string{"JSBOX_PARSE_TIMEOUT": "0s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = filepath.Join(dir, tt.file)
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.ExecTimeout = 0
	cfg.Sandbox.Linger = Duration(-time.Second)
	cfg.Logging.File = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution timeout")
	assert.Contains(t, err.Error(), "linger")
	assert.Contains(t, err.Error(), "log file")
}

func TestUtilsPathAbsolute(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.UtilsDir = "/opt/utils"
	assert.Equal(t, "/opt/utils", cfg.UtilsPath())
}
