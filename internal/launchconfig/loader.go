package launchconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

const (
	// LaunchJSONFileName is the standard name for VS Code launch configuration file.
	LaunchJSONFileName = "launch.json"
	// VSCodeDirName is the VS Code configuration directory name.
	VSCodeDirName = ".vscode"
)

// Parse decodes launch.json content. Comments and trailing commas are
// accepted, as VS Code accepts them.
func Parse(data []byte) (*LaunchJSON, error) {
	var lj LaunchJSON
	if err := json.Unmarshal(jsonc.ToJSON(data), &lj); err != nil {
		return nil, fmt.Errorf("failed to parse launch.json: %w", err)
	}
	return &lj, nil
}

// LoadFromPath loads a launch.json file from an explicit path.
func LoadFromPath(path string) (*LaunchJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read launch.json: %w", err)
	}
	return Parse(data)
}

// Discover searches for a .vscode/launch.json file starting from the given path
// and walking up the directory tree until found or reaching the root.
func Discover(startPath string) (string, error) {
	if startPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		startPath = cwd
	}

	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}

	current := absPath
	for {
		launchPath := filepath.Join(current, VSCodeDirName, LaunchJSONFileName)
		if _, err := os.Stat(launchPath); err == nil {
			return launchPath, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("no %s/%s found in %s or parent directories", VSCodeDirName, LaunchJSONFileName, startPath)
}

// LoadAndDiscover finds a launch.json from the start path and loads it.
func LoadAndDiscover(startPath string) (*LaunchJSON, string, error) {
	path, err := Discover(startPath)
	if err != nil {
		return nil, "", err
	}

	lj, err := LoadFromPath(path)
	if err != nil {
		return nil, "", err
	}

	return lj, path, nil
}

// FindConfiguration finds a cdbg configuration by name. An empty name
// selects the only cdbg configuration, and fails if there are several.
func FindConfiguration(lj *LaunchJSON, name string) (*Configuration, error) {
	configs := DebuggerConfigurations(lj)
	if name == "" {
		switch len(configs) {
		case 0:
			return nil, fmt.Errorf("no %q configuration found", DebuggerType)
		case 1:
			return configs[0], nil
		default:
			return nil, fmt.Errorf("%d %q configurations found, a name is required", len(configs), DebuggerType)
		}
	}
	for _, cfg := range configs {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("configuration %q not found", name)
}

// DebuggerConfigurations returns the cdbg configurations in file order.
func DebuggerConfigurations(lj *LaunchJSON) []*Configuration {
	var configs []*Configuration
	for i := range lj.Configurations {
		if lj.Configurations[i].IsDebugger() {
			configs = append(configs, &lj.Configurations[i])
		}
	}
	return configs
}

// ConfigurationInfo provides summary information about a configuration.
type ConfigurationInfo struct {
	Name    string `json:"name"`
	Project string `json:"project,omitempty"`
	Target  string `json:"target,omitempty"`
}

// ListConfigurations summarizes the cdbg configurations.
func ListConfigurations(lj *LaunchJSON) []ConfigurationInfo {
	configs := DebuggerConfigurations(lj)
	infos := make([]ConfigurationInfo, len(configs))
	for i, cfg := range configs {
		infos[i] = ConfigurationInfo{Name: cfg.Name, Project: cfg.Project, Target: cfg.Target}
	}
	return infos
}

// GetWorkspaceFolder derives the workspace folder from the launch.json path.
// The workspace folder is the parent of the .vscode directory.
func GetWorkspaceFolder(launchJSONPath string) string {
	vscodeDir := filepath.Dir(launchJSONPath)
	return filepath.ToSlash(filepath.Dir(vscodeDir))
}

// ValidateConfiguration checks a cdbg configuration.
func ValidateConfiguration(cfg *Configuration) error {
	if cfg.Name == "" {
		return fmt.Errorf("configuration name is required")
	}
	if cfg.Type != DebuggerType {
		return fmt.Errorf("configuration type must be %q, got %q", DebuggerType, cfg.Type)
	}
	if cfg.Request != "attach" {
		return fmt.Errorf("configuration request must be 'attach', got %q", cfg.Request)
	}
	return nil
}

// ValidateLaunchJSON validates every cdbg configuration.
func ValidateLaunchJSON(lj *LaunchJSON) []error {
	var errs []error
	seen := make(map[string]bool)
	for i, cfg := range DebuggerConfigurations(lj) {
		if err := ValidateConfiguration(cfg); err != nil {
			errs = append(errs, fmt.Errorf("configuration[%d]: %w", i, err))
		}
		if seen[cfg.Name] {
			errs = append(errs, fmt.Errorf("configuration %q is defined more than once", cfg.Name))
		}
		seen[cfg.Name] = true
	}
	return errs
}
