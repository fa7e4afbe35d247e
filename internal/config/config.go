// Package config provides configuration management for cdbg.
//
// Configuration controls:
//   - Project and credentials: the project to debug and the bearer token
//   - Endpoints: debugger service, resource manager and console host
//   - Polling: the cadence used while waiting for a snapshot
//   - Output: default output format and log level
//   - MCP server: capability mode, session limits and timeout
//   - Telemetry: the OTLP endpoint, empty to disable
//
// Values are layered: DefaultConfig, then an optional JSON file (comments
// allowed), then environment variables. Command-line flags are applied by
// the caller last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/ctagard/cdbg/internal/errors"
)

// CapabilityMode defines which MCP tools are exposed.
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly" // listing and describing only
	ModeFull     CapabilityMode = "full"     // creating and deleting breakpoints too
)

// Output formats.
const (
	FormatYAML  = "yaml"
	FormatJSON  = "json"
	FormatTable = "table"
)

// Duration is a time.Duration that reads JSON strings such as "30m" as well
// as integer nanoseconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the client configuration
type Config struct {
	// Project and credentials
	Project     string `json:"project"`
	AccessToken string `json:"accessToken"`

	// Endpoints
	DebuggerEndpoint        string `json:"debuggerEndpoint"`
	ResourceManagerEndpoint string `json:"resourceManagerEndpoint"`
	ConsoleHost             string `json:"consoleHost"`

	// Requests and polling
	RequestTimeout Duration `json:"requestTimeout"`
	PollInterval   Duration `json:"pollInterval"`
	PollCeiling    Duration `json:"pollCeiling"`

	// Presentation
	Format   string `json:"format"`
	LogLevel string `json:"logLevel"`

	// MCP server
	Mode           CapabilityMode `json:"mode"`
	MaxSessions    int            `json:"maxSessions"`
	SessionTimeout Duration       `json:"sessionTimeout"`

	// Telemetry
	OTELEndpoint string `json:"otelEndpoint"`
	OTELInsecure bool   `json:"otelInsecure"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DebuggerEndpoint:        "https://clouddebugger.googleapis.com",
		ResourceManagerEndpoint: "https://cloudresourcemanager.googleapis.com",
		ConsoleHost:             "console.developers.google.com",
		RequestTimeout:          Duration(30 * time.Second),
		PollInterval:            Duration(500 * time.Millisecond),
		PollCeiling:             Duration(time.Second),
		Format:                  FormatYAML,
		LogLevel:                "warn",
		Mode:                    ModeFull,
		MaxSessions:             10,
		SessionTimeout:          Duration(30 * time.Minute),
	}
}

// LoadConfig loads configuration from a JSON file and the environment. An
// empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.ConfigInvalid("path", err.Error()).WithCause(err)
		}
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, errors.ConfigInvalid(path, err.Error()).WithCause(err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CDBG_* variables. The project also falls
// back to the variables the cloud SDKs use.
func (c *Config) applyEnv() {
	c.Project = envStr("CDBG_PROJECT", envStr("GOOGLE_CLOUD_PROJECT", envStr("CLOUDSDK_CORE_PROJECT", c.Project)))
	c.AccessToken = envStr("CDBG_ACCESS_TOKEN", c.AccessToken)
	c.DebuggerEndpoint = envStr("CDBG_DEBUGGER_ENDPOINT", c.DebuggerEndpoint)
	c.ResourceManagerEndpoint = envStr("CDBG_RESOURCE_MANAGER_ENDPOINT", c.ResourceManagerEndpoint)
	c.ConsoleHost = envStr("CDBG_CONSOLE_HOST", c.ConsoleHost)
	c.RequestTimeout = Duration(envDuration("CDBG_REQUEST_TIMEOUT", c.RequestTimeout.Std()))
	c.PollInterval = Duration(envDuration("CDBG_POLL_INTERVAL", c.PollInterval.Std()))
	c.PollCeiling = Duration(envDuration("CDBG_POLL_CEILING", c.PollCeiling.Std()))
	c.Format = envStr("CDBG_FORMAT", c.Format)
	c.LogLevel = envStr("CDBG_LOG_LEVEL", c.LogLevel)
	c.Mode = CapabilityMode(envStr("CDBG_MODE", string(c.Mode)))
	c.MaxSessions = envInt("CDBG_MAX_SESSIONS", c.MaxSessions)
	c.SessionTimeout = Duration(envDuration("CDBG_SESSION_TIMEOUT", c.SessionTimeout.Std()))
	c.OTELEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTELEndpoint)
	c.OTELInsecure = envBool("CDBG_OTEL_INSECURE", c.OTELInsecure)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DebuggerEndpoint == "" {
		return errors.ConfigInvalid("debuggerEndpoint", "must not be empty")
	}
	if c.ResourceManagerEndpoint == "" {
		return errors.ConfigInvalid("resourceManagerEndpoint", "must not be empty")
	}
	switch c.Format {
	case FormatYAML, FormatJSON, FormatTable:
	default:
		return errors.ConfigInvalid("format", fmt.Sprintf("%q is not one of yaml, json, table", c.Format))
	}
	switch c.Mode {
	case ModeReadOnly, ModeFull:
	default:
		return errors.ConfigInvalid("mode", fmt.Sprintf("%q is not one of readonly, full", c.Mode))
	}
	if c.PollInterval <= 0 {
		return errors.ConfigInvalid("pollInterval", "must be positive")
	}
	if c.PollCeiling < c.PollInterval {
		return errors.ConfigInvalid("pollCeiling", "must not be shorter than pollInterval")
	}
	if c.MaxSessions <= 0 {
		return errors.ConfigInvalid("maxSessions", "must be positive")
	}
	return nil
}

// CanModifyBreakpoints returns true if breakpoints may be created and
// deleted through the MCP server.
func (c *Config) CanModifyBreakpoints() bool {
	return c.Mode == ModeFull
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
