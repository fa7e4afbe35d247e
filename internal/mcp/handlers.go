package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/internal/launchconfig"
	"github.com/ctagard/cdbg/internal/session"
	"github.com/ctagard/cdbg/pkg/types"
)

// defaultWaitTimeout bounds debug_wait when no timeout is given.
const defaultWaitTimeout = 30 * time.Second

// Targets and sessions

func (s *Server) handleDebugAttach(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := request.GetString("project", "")
	target := request.GetString("target", "")
	includeInactive := request.GetBool("includeInactive", false)

	configName := request.GetString("configName", "")
	configPath := request.GetString("configPath", "")
	if configName != "" || configPath != "" {
		resolved, err := s.resolveLaunchConfig(request, configName, configPath)
		if err != nil {
			return toolError(err), nil
		}
		configName = resolved.Name
		if project == "" {
			project = resolved.Project
		}
		if target == "" {
			target = resolved.Target
		}
		includeInactive = includeInactive || resolved.IncludeInactive
	}

	dbg, err := s.debugger(ctx, project)
	if err != nil {
		return toolError(err), nil
	}
	debuggee, err := dbg.ResolveTarget(ctx, target, includeInactive)
	if err != nil {
		return toolError(err), nil
	}

	sess, err := s.sessions.Create(dbg.Target(debuggee), configName)
	if err != nil {
		return toolError(err), nil
	}
	s.logger.Info("attached", "session", sess.ID, "target", debuggee.TargetID, "name", debuggee.Name())

	result := map[string]interface{}{
		"sessionId": sess.ID,
		"status":    "attached",
		"debuggee":  debuggee,
		"name":      debuggee.Name(),
	}
	return jsonResult(result)
}

// resolveLaunchConfig loads a cdbg configuration from launch.json and
// substitutes its variables. Inputs without a provided value take their
// declared default.
func (s *Server) resolveLaunchConfig(request mcp.CallToolRequest, configName, configPath string) (*launchconfig.ResolvedConfiguration, error) {
	workspace := request.GetString("workspace", "")

	var lj *launchconfig.LaunchJSON
	var err error
	if configPath != "" {
		lj, err = launchconfig.LoadFromPath(configPath)
	} else {
		lj, configPath, err = launchconfig.LoadAndDiscover(workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load launch.json: %w", err)
	}

	cfg, err := launchconfig.FindConfiguration(lj, configName)
	if err != nil {
		return nil, err
	}

	resCtx := &launchconfig.ResolutionContext{
		WorkspaceFolder: workspace,
		InputValues:     launchconfig.InputDefaults(lj),
	}
	if resCtx.WorkspaceFolder == "" {
		resCtx.WorkspaceFolder = launchconfig.GetWorkspaceFolder(configPath)
	}
	if inputValuesJSON := request.GetString("inputValues", ""); inputValuesJSON != "" {
		var inputValues map[string]string
		if err := json.Unmarshal([]byte(inputValuesJSON), &inputValues); err != nil {
			return nil, errors.InvalidParameter("inputValues", inputValuesJSON, "a JSON object of strings")
		}
		for k, v := range inputValues {
			resCtx.InputValues[k] = v
		}
	}

	resolved, err := launchconfig.ResolveConfiguration(cfg, resCtx)
	if err != nil {
		if missing, ok := launchconfig.IsMissingInputsError(err); ok {
			return nil, fmt.Errorf("missing input values: %v. Provide them via inputValues parameter", missing.Inputs)
		}
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}
	return resolved, nil
}

func (s *Server) handleDebugListDebuggees(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dbg, err := s.debugger(ctx, request.GetString("project", ""))
	if err != nil {
		return toolError(err), nil
	}
	debuggees, err := dbg.ListDebuggees(ctx, request.GetBool("includeInactive", false))
	if err != nil {
		return toolError(err), nil
	}

	items := make([]map[string]interface{}, len(debuggees))
	for i, d := range debuggees {
		items[i] = map[string]interface{}{
			"targetId":    d.TargetID,
			"name":        d.Name(),
			"description": d.Description,
			"labels":      d.Labels,
			"isInactive":  d.IsInactive,
		}
	}
	return jsonResult(map[string]interface{}{
		"projectId": dbg.ProjectID(),
		"debuggees": items,
	})
}

func (s *Server) handleDebugListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.sessions.List()
	infos := make([]session.Info, len(sessions))
	for i, sess := range sessions {
		infos[i] = sess.Info()
	}
	return jsonResult(map[string]interface{}{"sessions": infos})
}

func (s *Server) handleDebugDetach(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return toolError(errors.MissingParameter("sessionId", "Use the sessionId returned by debug_attach.")), nil
	}
	if err := s.sessions.Detach(sessionID); err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{"sessionId": sessionID, "status": "detached"})
}

// Breakpoints

func (s *Server) handleDebugBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := s.target(request)
	if err != nil {
		return toolError(err), nil
	}
	opts, err := listOptions(request)
	if err != nil {
		return toolError(err), nil
	}

	var records []*debug.Record
	if ids := stringSlice(request, "ids"); len(ids) > 0 {
		records, err = target.ListMatching(ctx, ids, opts)
	} else {
		records, err = target.List(ctx, opts)
	}
	if err != nil {
		return toolError(err), nil
	}
	if records == nil {
		records = []*debug.Record{}
	}
	return jsonResult(map[string]interface{}{"breakpoints": records})
}

func (s *Server) handleDebugGetBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := s.target(request)
	if err != nil {
		return toolError(err), nil
	}
	id, err := request.RequireString("id")
	if err != nil {
		return toolError(errors.MissingParameter("id", "Specify the breakpoint ID.")), nil
	}
	record, err := target.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(record)
}

func (s *Server) handleDebugWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := s.target(request)
	if err != nil {
		return toolError(err), nil
	}
	id, err := request.RequireString("id")
	if err != nil {
		return toolError(errors.MissingParameter("id", "Specify the breakpoint ID.")), nil
	}
	timeout := defaultWaitTimeout
	if secs := request.GetFloat("timeout", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	record, err := target.WaitForCompletion(ctx, id, s.waitOptions(timeout))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(waitResult(id, record))
}

// Breakpoint changes

func (s *Server) handleDebugCreateSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.CanModifyBreakpoints() {
		return toolError(errors.PermissionDenied("create snapshot", string(s.config.Mode))), nil
	}
	target, err := s.target(request)
	if err != nil {
		return toolError(err), nil
	}
	location, err := request.RequireString("location")
	if err != nil {
		return toolError(errors.MissingParameter("location", "Specify the location as 'path:line'.")), nil
	}

	record, err := target.CreateSnapshot(ctx, debug.SnapshotRequest{
		Location:    location,
		Condition:   request.GetString("condition", ""),
		Expressions: stringSlice(request, "expressions"),
	})
	if err != nil {
		return toolError(err), nil
	}

	secs := request.GetFloat("wait", 0)
	if secs <= 0 {
		return jsonResult(record)
	}
	completed, err := target.WaitForCompletion(ctx, record.ID(), s.waitOptions(time.Duration(secs*float64(time.Second))))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(waitResult(record.ID(), completed))
}

func (s *Server) handleDebugCreateLogpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.CanModifyBreakpoints() {
		return toolError(errors.PermissionDenied("create logpoint", string(s.config.Mode))), nil
	}
	target, err := s.target(request)
	if err != nil {
		return toolError(err), nil
	}

	record, err := target.CreateLogpoint(ctx, debug.LogpointRequest{
		Location:  request.GetString("location", ""),
		Format:    request.GetString("format", ""),
		LogLevel:  request.GetString("logLevel", ""),
		Condition: request.GetString("condition", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(record)
}

func (s *Server) handleDebugDeleteBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.CanModifyBreakpoints() {
		return toolError(errors.PermissionDenied("delete breakpoints", string(s.config.Mode))), nil
	}
	target, err := s.target(request)
	if err != nil {
		return toolError(err), nil
	}
	ids := stringSlice(request, "ids")
	if len(ids) == 0 {
		return toolError(errors.MissingParameter("ids", "Specify breakpoint IDs or location patterns to delete.")), nil
	}
	opts, err := listOptions(request)
	if err != nil {
		return toolError(err), nil
	}

	records, err := target.ListMatching(ctx, ids, opts)
	if err != nil {
		return toolError(err), nil
	}
	deleted := make([]string, 0, len(records))
	for _, r := range records {
		if err := target.Delete(ctx, r.ID()); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("deleted %v before failing: %v", deleted, err)), nil
		}
		deleted = append(deleted, r.ID())
	}
	return jsonResult(map[string]interface{}{"deleted": deleted})
}

// Helpers

// debugger binds the debugger service to project, or to the configured
// project when project is empty.
func (s *Server) debugger(ctx context.Context, project string) (*debug.Debugger, error) {
	if project == "" {
		project = s.config.Project
	}
	if project == "" {
		return nil, errors.MissingParameter("project", "Pass project, or configure a default project.")
	}
	return s.connect(ctx, project)
}

func (s *Server) target(request mcp.CallToolRequest) (*debug.Target, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return nil, errors.MissingParameter("sessionId", "Use the sessionId returned by debug_attach.")
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Target, nil
}

func (s *Server) waitOptions(timeout time.Duration) debug.WaitOptions {
	return debug.WaitOptions{
		Timeout:      timeout,
		PollInterval: s.config.PollInterval.Std(),
		Ceiling:      s.config.PollCeiling.Std(),
	}
}

func listOptions(request mcp.CallToolRequest) (types.ListOptions, error) {
	opts := types.ListOptions{
		IncludeInactive: request.GetBool("includeInactive", false),
		IncludeAllUsers: request.GetBool("includeAllUsers", false),
	}
	switch kind := request.GetString("type", ""); kind {
	case "":
	case "snapshot":
		opts.RestrictToType = types.ActionCapture
	case "logpoint":
		opts.RestrictToType = types.ActionLog
	default:
		return opts, errors.InvalidParameter("type", kind, "'snapshot' or 'logpoint'")
	}
	return opts, nil
}

// stringSlice reads an array argument, skipping non-string items.
func stringSlice(request mcp.CallToolRequest, key string) []string {
	switch v := request.GetArguments()[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func waitResult(id string, record *debug.Record) map[string]interface{} {
	if record == nil {
		return map[string]interface{}{"id": id, "status": "pending"}
	}
	return map[string]interface{}{"id": id, "status": "completed", "breakpoint": record}
}

// toolError reports err to the client, prefixed with its code when it has
// one.
func toolError(err error) *mcp.CallToolResult {
	if code := errors.CodeOf(err); code != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", code, err.Error()))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
