// Package debug implements the client side of the cloud debugger: debug
// target resolution, breakpoint management and result decoration.
//
// A Debugger is bound to one project and lists or registers debuggees. A
// Target is bound to one resolved debuggee and manages its snapshots and
// logpoints. Every breakpoint a Target returns is wrapped in a Record that
// carries the target's identity and a console URL.
package debug

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ctagard/cdbg/pkg/types"
)

// Names used for the default module and version when a debuggee reports
// only some of its labels. A module or version explicitly named "default"
// is indistinguishable from the real default.
const (
	DefaultModule  = "default"
	DefaultVersion = "default"
)

// Label keys that identify a debuggee's deployment.
const (
	LabelModule       = "module"
	LabelVersion      = "version"
	LabelMinorVersion = "minorversion"
)

// Debuggee is a registered debug target, annotated with the project it
// belongs to.
type Debuggee struct {
	ProjectNumber     int64                `json:"projectNumber"`
	ProjectID         string               `json:"projectId"`
	TargetID          string               `json:"targetId"`
	Uniquifier        string               `json:"uniquifier,omitempty"`
	Description       string               `json:"description,omitempty"`
	AgentVersion      string               `json:"agentVersion,omitempty"`
	IsInactive        bool                 `json:"isInactive,omitempty"`
	IsDisabled        bool                 `json:"isDisabled,omitempty"`
	Status            *types.StatusMessage `json:"status,omitempty"`
	SourceContexts    []json.RawMessage    `json:"sourceContexts,omitempty"`
	ExtSourceContexts []json.RawMessage    `json:"extSourceContexts,omitempty"`
	Labels            map[string]string    `json:"labels,omitempty"`
}

// newDebuggee converts a wire debuggee. The caller supplies the project
// number and ID, which the wire form only carries as a number string.
func newDebuggee(msg types.Debuggee, projectNumber int64, projectID string) *Debuggee {
	labels := make(map[string]string, len(msg.Labels))
	for k, v := range msg.Labels {
		labels[k] = v
	}
	return &Debuggee{
		ProjectNumber:     projectNumber,
		ProjectID:         projectID,
		TargetID:          msg.ID,
		Uniquifier:        msg.Uniquifier,
		Description:       msg.Description,
		AgentVersion:      msg.AgentVersion,
		IsInactive:        msg.IsInactive,
		IsDisabled:        msg.IsDisabled,
		Status:            msg.Status,
		SourceContexts:    msg.SourceContexts,
		ExtSourceContexts: msg.ExtSourceContexts,
		Labels:            labels,
	}
}

// Module returns the module label, or "" when absent.
func (d *Debuggee) Module() string { return d.Labels[LabelModule] }

// Version returns the version label, or "" when absent.
func (d *Debuggee) Version() string { return d.Labels[LabelVersion] }

// MinorVersion returns the minorversion label, or "" when absent.
func (d *Debuggee) MinorVersion() string { return d.Labels[LabelMinorVersion] }

// Name returns the display name "module-version". Missing parts are
// replaced with "default". A debuggee without any deployment label is named
// by its target ID.
func (d *Debuggee) Name() string {
	module, version := d.Module(), d.Version()
	if module == "" && version == "" && d.MinorVersion() == "" {
		return d.TargetID
	}
	if module == "" {
		module = DefaultModule
	}
	if version == "" {
		version = DefaultVersion
	}
	return module + "-" + version
}

// Equal reports whether two debuggees are the same target.
func (d *Debuggee) Equal(other *Debuggee) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.TargetID == other.TargetID
}

// MarshalYAML encodes the debuggee the way it encodes to JSON.
func (d *Debuggee) MarshalYAML() (interface{}, error) {
	doc, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return jsonToYAML(doc)
}

func (d *Debuggee) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<id=%s, name=%s", d.TargetID, d.Name())
	if d.Description != "" {
		fmt.Fprintf(&sb, ", description=%s", d.Description)
	}
	sb.WriteString(">")
	return sb.String()
}
