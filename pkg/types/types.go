// Package types defines the wire types exchanged with the cloud debugger
// service and shared across cdbg.
//
// This package provides type definitions for:
//   - Debuggee: a registered debug target as returned by the service
//   - Breakpoint: a snapshot or logpoint, with its location and captured data
//   - Action and LogLevel: the breakpoint enumerations
//   - Project: the project number/ID pair from the resource manager
//   - ListOptions: the filters accepted by the breakpoint listing call
//
// Field names and JSON tags follow the service's REST representation.
package types

import "encoding/json"

// Action is the kind of a breakpoint.
type Action string

const (
	// ActionCapture takes a snapshot of the stack and variables.
	ActionCapture Action = "CAPTURE"
	// ActionLog writes a formatted message to the application log.
	ActionLog Action = "LOG"
)

// LogLevel is the severity of a logpoint message.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Project identifies a project by ID and number.
type Project struct {
	ProjectID     string `json:"projectId"`
	ProjectNumber int64  `json:"projectNumber,string"`
	Name          string `json:"name,omitempty"`
}

// Debuggee is a debug target registered with the service.
type Debuggee struct {
	ID                string            `json:"id,omitempty"`
	Project           string            `json:"project,omitempty"`
	Uniquifier        string            `json:"uniquifier,omitempty"`
	Description       string            `json:"description,omitempty"`
	IsInactive        bool              `json:"isInactive,omitempty"`
	AgentVersion      string            `json:"agentVersion,omitempty"`
	IsDisabled        bool              `json:"isDisabled,omitempty"`
	Status            *StatusMessage    `json:"status,omitempty"`
	SourceContexts    []json.RawMessage `json:"sourceContexts,omitempty"`
	ExtSourceContexts []json.RawMessage `json:"extSourceContexts,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
}

// SourceLocation is a line within a source file.
type SourceLocation struct {
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`
}

// FormatMessage is a message with positional $N parameters.
type FormatMessage struct {
	Format     string   `json:"format,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
}

// StatusMessage describes the state of a breakpoint or debuggee.
type StatusMessage struct {
	IsError     bool           `json:"isError,omitempty"`
	RefersTo    string         `json:"refersTo,omitempty"`
	Description *FormatMessage `json:"description,omitempty"`
}

// Variable is a captured value, possibly with members.
type Variable struct {
	Name          string         `json:"name,omitempty"`
	Value         string         `json:"value,omitempty"`
	Type          string         `json:"type,omitempty"`
	Members       []Variable     `json:"members,omitempty"`
	VarTableIndex *int           `json:"varTableIndex,omitempty"`
	Status        *StatusMessage `json:"status,omitempty"`
}

// StackFrame is one captured frame of a snapshot.
type StackFrame struct {
	Function  string          `json:"function,omitempty"`
	Location  *SourceLocation `json:"location,omitempty"`
	Arguments []Variable      `json:"arguments,omitempty"`
	Locals    []Variable      `json:"locals,omitempty"`
}

// Breakpoint is a snapshot or a logpoint.
type Breakpoint struct {
	ID                   string            `json:"id,omitempty"`
	Action               Action            `json:"action,omitempty"`
	Location             *SourceLocation   `json:"location,omitempty"`
	Condition            string            `json:"condition,omitempty"`
	Expressions          []string          `json:"expressions,omitempty"`
	LogMessageFormat     string            `json:"logMessageFormat,omitempty"`
	LogLevel             LogLevel          `json:"logLevel,omitempty"`
	IsFinalState         bool              `json:"isFinalState,omitempty"`
	CreateTime           string            `json:"createTime,omitempty"`
	FinalTime            string            `json:"finalTime,omitempty"`
	UserEmail            string            `json:"userEmail,omitempty"`
	Status               *StatusMessage    `json:"status,omitempty"`
	StackFrames          []StackFrame      `json:"stackFrames,omitempty"`
	EvaluatedExpressions []Variable        `json:"evaluatedExpressions,omitempty"`
	VariableTable        []Variable        `json:"variableTable,omitempty"`
	Labels               map[string]string `json:"labels,omitempty"`
}

// EffectiveAction returns the breakpoint's action, treating an unset action
// as a snapshot.
func (b *Breakpoint) EffectiveAction() Action {
	if b.Action == "" {
		return ActionCapture
	}
	return b.Action
}

// ListOptions are the filters of a breakpoint listing.
type ListOptions struct {
	// IncludeAllUsers includes breakpoints created by other users.
	IncludeAllUsers bool
	// IncludeInactive includes breakpoints that reached their final state.
	IncludeInactive bool
	// RestrictToType keeps only breakpoints of this action. Empty keeps all.
	RestrictToType Action
}
