package debug

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/internal/logexpr"
	"github.com/ctagard/cdbg/pkg/types"
)

// breakpointIDPattern matches service-generated breakpoint IDs: three hex
// numbers of 13-16, 4 and 1-8 digits.
var breakpointIDPattern = regexp.MustCompile(`^[0-9a-f]{13,16}-[0-9a-f]{4}-[0-9a-f]{1,8}$`)

// IsBreakpointID reports whether s has the form of a breakpoint ID.
func IsBreakpointID(s string) bool {
	return breakpointIDPattern.MatchString(s)
}

// Target manages the breakpoints of one debuggee.
type Target struct {
	api         DebuggerAPI
	debuggee    *Debuggee
	consoleHost string
	logger      *slog.Logger
}

// NewTarget binds the breakpoint service to a resolved debuggee.
func NewTarget(api DebuggerAPI, debuggee *Debuggee, opts Options) *Target {
	opts = opts.withDefaults()
	return &Target{
		api:         api,
		debuggee:    debuggee,
		consoleHost: opts.ConsoleHost,
		logger:      opts.Logger,
	}
}

// Debuggee returns the target's debuggee.
func (t *Target) Debuggee() *Debuggee { return t.debuggee }

func (t *Target) check() error {
	if t == nil || t.api == nil {
		return errors.NoEndpoint("debugger API")
	}
	if t.debuggee == nil {
		return errors.NoEndpoint("debug target")
	}
	return nil
}

func (t *Target) decorate(bp *types.Breakpoint) *Record {
	return decorate(bp, t.debuggee, t.consoleHost)
}

// Get returns a breakpoint by ID.
func (t *Target) Get(ctx context.Context, id string) (*Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	bp, err := t.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.decorate(bp), nil
}

func (t *Target) get(ctx context.Context, id string) (*types.Breakpoint, error) {
	bp, err := t.api.GetBreakpoint(ctx, t.debuggee.TargetID, id)
	if err != nil {
		return nil, errors.RemoteFailure("get breakpoint "+id, err)
	}
	return bp, nil
}

// Delete deletes a breakpoint by ID.
func (t *Target) Delete(ctx context.Context, id string) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := t.api.DeleteBreakpoint(ctx, t.debuggee.TargetID, id); err != nil {
		return errors.RemoteFailure("delete breakpoint "+id, err)
	}
	t.logger.Debug("breakpoint deleted", "debuggee", t.debuggee.TargetID, "id", id)
	return nil
}

// List returns the breakpoints selected by opts.
func (t *Target) List(ctx context.Context, opts types.ListOptions) ([]*Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	bps, err := t.list(ctx, opts)
	if err != nil {
		return nil, err
	}
	return t.filterAndDecorate(bps, opts.RestrictToType), nil
}

func (t *Target) list(ctx context.Context, opts types.ListOptions) ([]types.Breakpoint, error) {
	bps, err := t.api.ListBreakpoints(ctx, t.debuggee.TargetID, opts)
	if err != nil {
		return nil, errors.RemoteFailure("list breakpoints", err)
	}
	return bps, nil
}

// ListMatching returns the breakpoints whose ID equals one of idsOrPatterns
// or whose "path:line" location matches one of them as a regular
// expression. Breakpoints requested by exact ID are returned even when the
// listing filters in opts exclude them.
func (t *Target) ListMatching(ctx context.Context, idsOrPatterns []string, opts types.ListOptions) ([]*Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	var ids []string
	idSet := make(map[string]bool)
	var patterns []*regexp.Regexp
	seenPattern := make(map[string]bool)
	for _, s := range idsOrPatterns {
		if IsBreakpointID(s) {
			if !idSet[s] {
				idSet[s] = true
				ids = append(ids, s)
			}
			continue
		}
		if seenPattern[s] {
			continue
		}
		seenPattern[s] = true
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, errors.InvalidPattern(s, err)
		}
		patterns = append(patterns, re)
	}

	listed, err := t.list(ctx, opts)
	if err != nil {
		return nil, err
	}

	var matched []types.Breakpoint
	found := make(map[string]bool)
	for _, bp := range listed {
		if matchesIDOrPattern(&bp, idSet, patterns) {
			matched = append(matched, bp)
			found[bp.ID] = true
		}
	}

	for _, id := range ids {
		if found[id] {
			continue
		}
		bp, err := t.get(ctx, id)
		if err != nil {
			return nil, err
		}
		matched = append(matched, *bp)
	}

	return t.filterAndDecorate(matched, opts.RestrictToType), nil
}

func matchesIDOrPattern(bp *types.Breakpoint, ids map[string]bool, patterns []*regexp.Regexp) bool {
	if ids[bp.ID] {
		return true
	}
	if bp.Location == nil {
		return false
	}
	location := FormatLocation(bp.Location)
	for _, p := range patterns {
		if p.MatchString(location) {
			return true
		}
	}
	return false
}

// filterAndDecorate keeps the breakpoints of the given action. An unset
// action counts as a snapshot; an empty restriction keeps everything.
func (t *Target) filterAndDecorate(bps []types.Breakpoint, restrictTo types.Action) []*Record {
	out := make([]*Record, 0, len(bps))
	for i := range bps {
		bp := &bps[i]
		if restrictTo != "" && bp.EffectiveAction() != restrictTo {
			continue
		}
		out = append(out, t.decorate(bp))
	}
	return out
}

// SnapshotRequest describes a snapshot to create.
type SnapshotRequest struct {
	// Location is "path:line".
	Location    string
	Condition   string
	Expressions []string
	UserEmail   string
	Labels      map[string]string
}

// CreateSnapshot sets a capture breakpoint.
func (t *Target) CreateSnapshot(ctx context.Context, req SnapshotRequest) (*Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	location, err := ParseLocation(req.Location)
	if err != nil {
		return nil, err
	}
	expressions := req.Expressions
	if expressions == nil {
		expressions = []string{}
	}
	return t.set(ctx, types.Breakpoint{
		Action:      types.ActionCapture,
		Location:    location,
		Condition:   req.Condition,
		Expressions: expressions,
		UserEmail:   req.UserEmail,
		Labels:      req.Labels,
	})
}

// LogpointRequest describes a logpoint to create.
type LogpointRequest struct {
	// Location is "path:line".
	Location string
	// Format is the message to log, with expressions written as {expr}.
	Format string
	// LogLevel is info, warning or error in any case. Empty leaves the
	// level to the agent.
	LogLevel  string
	Condition string
	UserEmail string
	Labels    map[string]string
}

// CreateLogpoint sets a logging breakpoint. The request is validated
// completely before anything is sent.
func (t *Target) CreateLogpoint(ctx context.Context, req LogpointRequest) (*Record, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if req.Location == "" {
		return nil, errors.MissingParameter("location", "The location must not be empty.")
	}
	if req.Format == "" {
		return nil, errors.MissingParameter("format", "The log format string must not be empty.")
	}
	location, err := ParseLocation(req.Location)
	if err != nil {
		return nil, err
	}
	level, err := ParseLogLevel(req.LogLevel)
	if err != nil {
		return nil, err
	}
	format, expressions, err := logexpr.Split(req.Format)
	if err != nil {
		return nil, err
	}
	return t.set(ctx, types.Breakpoint{
		Action:           types.ActionLog,
		Location:         location,
		Condition:        req.Condition,
		LogLevel:         level,
		LogMessageFormat: format,
		Expressions:      expressions,
		UserEmail:        req.UserEmail,
		Labels:           req.Labels,
	})
}

func (t *Target) set(ctx context.Context, bp types.Breakpoint) (*Record, error) {
	created, err := t.api.SetBreakpoint(ctx, t.debuggee.TargetID, bp)
	if err != nil {
		return nil, errors.RemoteFailure("set breakpoint", err)
	}
	t.logger.Debug("breakpoint created",
		"debuggee", t.debuggee.TargetID,
		"id", created.ID,
		"action", bp.Action)
	return t.decorate(created), nil
}

// ParseLocation parses "path:line". The path may not contain a colon and
// the line must be an integer.
func ParseLocation(location string) (*types.SourceLocation, error) {
	parts := strings.Split(location, ":")
	if len(parts) != 2 {
		return nil, errors.InvalidLocation(location)
	}
	line, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, errors.InvalidLocation(location).WithCause(err)
	}
	return &types.SourceLocation{Path: parts[0], Line: line}, nil
}

// ParseLogLevel validates a log level name, ignoring case. The empty level
// is valid and stays empty.
func ParseLogLevel(level string) (types.LogLevel, error) {
	if level == "" {
		return "", nil
	}
	switch l := types.LogLevel(strings.ToUpper(level)); l {
	case types.LogLevelInfo, types.LogLevelWarning, types.LogLevelError:
		return l, nil
	}
	return "", errors.InvalidLogLevel(level)
}
