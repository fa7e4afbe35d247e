package debug

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/pkg/types"
)

// DebuggerAPI is the subset of the debugger service used by this package.
// *api.Client implements it.
type DebuggerAPI interface {
	ListDebuggees(ctx context.Context, project string, includeInactive bool) ([]types.Debuggee, error)
	RegisterDebuggee(ctx context.Context, debuggee types.Debuggee) (*types.Debuggee, error)
	GetBreakpoint(ctx context.Context, debuggeeID, breakpointID string) (*types.Breakpoint, error)
	DeleteBreakpoint(ctx context.Context, debuggeeID, breakpointID string) error
	ListBreakpoints(ctx context.Context, debuggeeID string, opts types.ListOptions) ([]types.Breakpoint, error)
	SetBreakpoint(ctx context.Context, debuggeeID string, bp types.Breakpoint) (*types.Breakpoint, error)
}

// Options configures a Debugger and the Targets it hands out.
type Options struct {
	// ClientVersion is reported as the agent version of registered
	// debuggees when none is given.
	ClientVersion string
	// ConsoleHost is the host of the console links in records. Defaults to
	// DefaultConsoleHost.
	ConsoleHost string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConsoleHost == "" {
		o.ConsoleHost = DefaultConsoleHost
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Debugger is the debugger service as seen from one project.
type Debugger struct {
	api           DebuggerAPI
	projects      *ProjectCache
	projectID     string
	projectNumber int64
	opts          Options
}

// NewDebugger binds the debugger service to a project. The project number
// is looked up through projects.
func NewDebugger(ctx context.Context, api DebuggerAPI, projects *ProjectCache, projectID string, opts Options) (*Debugger, error) {
	if api == nil {
		return nil, errors.NoEndpoint("debugger API")
	}
	if projects == nil || projects.api == nil {
		return nil, errors.NoEndpoint("projects API")
	}
	if projectID == "" {
		return nil, errors.MissingParameter("project", "Set --project, the 'project' configuration field or GOOGLE_CLOUD_PROJECT.")
	}
	number, err := projects.ProjectNumber(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Debugger{
		api:           api,
		projects:      projects,
		projectID:     projectID,
		projectNumber: number,
		opts:          opts.withDefaults(),
	}, nil
}

// ProjectID returns the ID of the bound project.
func (d *Debugger) ProjectID() string { return d.projectID }

// ProjectNumber returns the number of the bound project.
func (d *Debugger) ProjectNumber() int64 { return d.projectNumber }

// ListDebuggees lists the debug targets of the project. Inactive targets
// are included on request.
func (d *Debugger) ListDebuggees(ctx context.Context, includeInactive bool) ([]*Debuggee, error) {
	msgs, err := d.api.ListDebuggees(ctx, strconv.FormatInt(d.projectNumber, 10), includeInactive)
	if err != nil {
		return nil, errors.RemoteFailure("list debuggees", err)
	}
	out := make([]*Debuggee, 0, len(msgs))
	for _, msg := range msgs {
		dbg, err := d.convert(ctx, msg)
		if err != nil {
			return nil, err
		}
		out = append(out, dbg)
	}
	return out, nil
}

func (d *Debugger) convert(ctx context.Context, msg types.Debuggee) (*Debuggee, error) {
	number := d.projectNumber
	if msg.Project != "" {
		n, err := strconv.ParseInt(msg.Project, 10, 64)
		if err != nil {
			return nil, errors.RemoteFailure("list debuggees",
				fmt.Errorf("debuggee %s has a malformed project number %q", msg.ID, msg.Project))
		}
		number = n
	}
	projectID := d.projectID
	if number != d.projectNumber {
		id, err := d.projects.ProjectID(ctx, number)
		if err != nil {
			return nil, err
		}
		projectID = id
	}
	return newDebuggee(msg, number, projectID), nil
}

// DefaultDebuggee resolves the default debug target among the active ones.
func (d *Debugger) DefaultDebuggee(ctx context.Context) (*Debuggee, error) {
	debuggees, err := d.ListDebuggees(ctx, false)
	if err != nil {
		return nil, err
	}
	return ResolveDefault(debuggees)
}

// FindDebuggee resolves the active debug target matching pattern, or the
// default target when pattern is empty.
func (d *Debugger) FindDebuggee(ctx context.Context, pattern string) (*Debuggee, error) {
	if pattern == "" {
		return d.DefaultDebuggee(ctx)
	}
	debuggees, err := d.ListDebuggees(ctx, false)
	if err != nil {
		return nil, err
	}
	return Resolve(debuggees, pattern)
}

// ResolveTarget resolves a debug target like FindDebuggee, optionally
// considering inactive targets as well.
func (d *Debugger) ResolveTarget(ctx context.Context, pattern string, includeInactive bool) (*Debuggee, error) {
	if !includeInactive {
		return d.FindDebuggee(ctx, pattern)
	}
	debuggees, err := d.ListDebuggees(ctx, true)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return ResolveDefault(debuggees)
	}
	return Resolve(debuggees, pattern)
}

// RegisterDebuggee registers a debug target, mostly for testing the rest of
// the API. The uniquifier defaults to a random UUID and the agent version to
// the client version.
func (d *Debugger) RegisterDebuggee(ctx context.Context, description, uniquifier, agentVersion string) (*Debuggee, error) {
	if uniquifier == "" {
		uniquifier = uuid.NewString()
	}
	if agentVersion == "" {
		agentVersion = d.opts.ClientVersion
	}
	msg, err := d.api.RegisterDebuggee(ctx, types.Debuggee{
		Project:      strconv.FormatInt(d.projectNumber, 10),
		Description:  description,
		Uniquifier:   uniquifier,
		AgentVersion: agentVersion,
	})
	if err != nil {
		return nil, errors.RemoteFailure("register debuggee", err)
	}
	return d.convert(ctx, *msg)
}

// Target returns the breakpoint service of a resolved debuggee.
func (d *Debugger) Target(debuggee *Debuggee) *Target {
	return NewTarget(d.api, debuggee, d.opts)
}
