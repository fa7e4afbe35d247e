package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctagard/cdbg/internal/config"
	"github.com/ctagard/cdbg/internal/errors"
)

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CDBG_PROJECT", "GOOGLE_CLOUD_PROJECT", "CLOUDSDK_CORE_PROJECT",
		"CDBG_ACCESS_TOKEN", "CDBG_DEBUGGER_ENDPOINT", "CDBG_RESOURCE_MANAGER_ENDPOINT",
		"CDBG_CONSOLE_HOST", "CDBG_REQUEST_TIMEOUT", "CDBG_POLL_INTERVAL",
		"CDBG_POLL_CEILING", "CDBG_FORMAT", "CDBG_LOG_LEVEL", "CDBG_MODE",
		"CDBG_MAX_SESSIONS", "CDBG_SESSION_TIMEOUT", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"CDBG_OTEL_INSECURE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cdbg.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// TestDefaultConfig verifies that DefaultConfig returns sensible defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.Mode != config.ModeFull {
		t.Errorf("expected mode %s, got %s", config.ModeFull, cfg.Mode)
	}
	if cfg.Format != config.FormatYAML {
		t.Errorf("expected format yaml, got %s", cfg.Format)
	}
	if cfg.PollInterval.Std() != 500*time.Millisecond {
		t.Errorf("expected PollInterval 500ms, got %v", cfg.PollInterval.Std())
	}
	if cfg.PollCeiling.Std() != time.Second {
		t.Errorf("expected PollCeiling 1s, got %v", cfg.PollCeiling.Std())
	}
	if cfg.MaxSessions != 10 {
		t.Errorf("expected MaxSessions 10, got %d", cfg.MaxSessions)
	}
	if cfg.SessionTimeout.Std() != 30*time.Minute {
		t.Errorf("expected SessionTimeout 30m, got %v", cfg.SessionTimeout.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// TestLoadConfig_EmptyPath verifies that empty path returns defaults.
func TestLoadConfig_EmptyPath(t *testing.T) {
	clearEnv(t)
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defaults := config.DefaultConfig()
	if cfg.Mode != defaults.Mode {
		t.Errorf("expected default mode, got %s", cfg.Mode)
	}
	if cfg.DebuggerEndpoint != defaults.DebuggerEndpoint {
		t.Errorf("expected default endpoint, got %s", cfg.DebuggerEndpoint)
	}
}

// TestLoadConfig_FromFile verifies loading a JSON file with comments.
func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		// the project under debug
		"project": "my-project",
		"mode": "readonly",
		"format": "json",
		"pollInterval": "250ms",
		"pollCeiling": "2s",
		"sessionTimeout": "5m",
		"maxSessions": 3, /* trailing comma below */
	}`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Project != "my-project" {
		t.Errorf("expected project my-project, got %s", cfg.Project)
	}
	if cfg.Mode != config.ModeReadOnly {
		t.Errorf("expected mode readonly, got %s", cfg.Mode)
	}
	if cfg.CanModifyBreakpoints() {
		t.Error("readonly mode must not allow modifying breakpoints")
	}
	if cfg.Format != config.FormatJSON {
		t.Errorf("expected format json, got %s", cfg.Format)
	}
	if cfg.PollInterval.Std() != 250*time.Millisecond {
		t.Errorf("expected PollInterval 250ms, got %v", cfg.PollInterval.Std())
	}
	if cfg.SessionTimeout.Std() != 5*time.Minute {
		t.Errorf("expected SessionTimeout 5m, got %v", cfg.SessionTimeout.Std())
	}
	if cfg.MaxSessions != 3 {
		t.Errorf("expected MaxSessions 3, got %d", cfg.MaxSessions)
	}
	// Fields absent from the file keep their defaults.
	if cfg.ConsoleHost != "console.developers.google.com" {
		t.Errorf("expected default console host, got %s", cfg.ConsoleHost)
	}
}

// TestLoadConfig_EnvironmentOverridesFile verifies the layering order.
func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"project": "from-file", "accessToken": "file-token"}`)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-sdk-env")
	t.Setenv("CDBG_ACCESS_TOKEN", "env-token")
	t.Setenv("CDBG_POLL_INTERVAL", "100ms")
	t.Setenv("CDBG_MAX_SESSIONS", "not-a-number")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Project != "from-sdk-env" {
		t.Errorf("expected project from-sdk-env, got %s", cfg.Project)
	}
	if cfg.AccessToken != "env-token" {
		t.Errorf("expected env token, got %s", cfg.AccessToken)
	}
	if cfg.PollInterval.Std() != 100*time.Millisecond {
		t.Errorf("expected PollInterval 100ms, got %v", cfg.PollInterval.Std())
	}
	if cfg.MaxSessions != 10 {
		t.Errorf("malformed CDBG_MAX_SESSIONS should be ignored, got %d", cfg.MaxSessions)
	}

	t.Setenv("CDBG_PROJECT", "explicit")
	cfg, err = config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Project != "explicit" {
		t.Errorf("CDBG_PROJECT should win, got %s", cfg.Project)
	}
}

// TestLoadConfig_Invalid verifies that invalid files and values are reported
// with the CONFIG_INVALID code.
func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"mode": `},
		{"unknown format", `{"format": "xml"}`},
		{"unknown mode", `{"mode": "admin"}`},
		{"bad duration", `{"pollInterval": "soon"}`},
		{"ceiling below interval", `{"pollInterval": "2s", "pollCeiling": "1s"}`},
		{"no sessions", `{"maxSessions": 0}`},
		{"empty endpoint", `{"debuggerEndpoint": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := config.LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.HasCode(err, errors.CodeConfigInvalid) {
				t.Errorf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

// TestLoadConfig_MissingFile verifies a missing file is an error.
func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.HasCode(err, errors.CodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

// TestDuration_IntegerNanoseconds verifies the numeric duration form.
func TestDuration_IntegerNanoseconds(t *testing.T) {
	clearEnv(t)
	cfg, err := config.LoadConfig(writeConfig(t, `{"pollInterval": 1000000, "pollCeiling": 1000000}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PollInterval.Std() != time.Millisecond {
		t.Errorf("expected 1ms, got %v", cfg.PollInterval.Std())
	}
}
