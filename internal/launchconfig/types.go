// Package launchconfig reads cloud debugger attach configurations from a
// VS Code launch.json file.
package launchconfig

import (
	"encoding/json"
)

// DebuggerType is the configuration type handled by cdbg.
const DebuggerType = "cdbg"

// LaunchJSON represents a VS Code launch.json file structure.
type LaunchJSON struct {
	Version        string          `json:"version"`
	Configurations []Configuration `json:"configurations"`
	Inputs         []InputConfig   `json:"inputs,omitempty"`
}

// Configuration is a single entry of launch.json. Only entries of type
// "cdbg" carry the fields below; other entries are kept so they can be
// listed.
type Configuration struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	Name    string `json:"name"`

	// Project is the cloud project ID hosting the debuggee.
	Project string `json:"project,omitempty"`
	// Target selects the debuggee by ID or name pattern.
	Target string `json:"target,omitempty"`
	// IncludeInactive also considers debuggees that stopped reporting.
	IncludeInactive bool `json:"includeInactive,omitempty"`
	// SourceRoot is the local directory that deployed source paths are
	// relative to. Breakpoint paths under it are sent relative.
	SourceRoot string `json:"sourceRoot,omitempty"`
	// Condition applies to breakpoints the IDE sets without one.
	Condition string `json:"condition,omitempty"`
	// Expressions are captured by every snapshot in addition to the
	// stack and locals.
	Expressions []string `json:"expressions,omitempty"`

	// Extra holds every other property.
	Extra map[string]interface{} `json:"-"`
}

// InputConfig represents a user input variable definition.
type InputConfig struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Default     string   `json:"default,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// ResolutionContext provides context for variable resolution.
type ResolutionContext struct {
	WorkspaceFolder string            // Root folder of the workspace
	InputValues     map[string]string // Pre-provided values for ${input:} variables
	EnvOverrides    map[string]string // Override environment variables
}

var knownFields = map[string]bool{
	"type": true, "request": true, "name": true,
	"project": true, "target": true, "includeInactive": true,
	"sourceRoot": true, "condition": true, "expressions": true,
}

// UnmarshalJSON captures unknown fields in Extra.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type Alias Configuration
	var alias Alias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Configuration(alias)

	c.Extra = make(map[string]interface{})
	for key, value := range raw {
		if knownFields[key] {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		c.Extra[key] = v
	}
	return nil
}

// MarshalJSON writes the known fields followed by Extra.
func (c Configuration) MarshalJSON() ([]byte, error) {
	type Alias Configuration
	data, err := json.Marshal(Alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return data, nil
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// IsDebugger reports whether the configuration is a cdbg configuration.
func (c *Configuration) IsDebugger() bool {
	return c.Type == DebuggerType
}
