package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerTools registers the debug tool API. Tools that change
// breakpoints are only offered in full mode.
func (s *Server) registerTools() {
	s.registerDebugAttach()
	s.registerDebugListDebuggees()
	s.registerDebugListSessions()
	s.registerDebugDetach()

	s.registerDebugBreakpoints()
	s.registerDebugGetBreakpoint()
	s.registerDebugWait()

	if s.config.CanModifyBreakpoints() {
		s.registerDebugCreateSnapshot()
		s.registerDebugCreateLogpoint()
		s.registerDebugDeleteBreakpoints()
	}
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

// Targets and sessions

func (s *Server) registerDebugAttach() {
	tool := mcp.NewTool("debug_attach",
		mcp.WithDescription("Resolve a cloud debug target and open a session on it. Can use direct arguments OR reference a 'cdbg' configuration in VS Code launch.json. Returns sessionId needed by the breakpoint tools."),
		mcp.WithString("project",
			mcp.Description("Cloud project ID. Defaults to the configured project."),
		),
		mcp.WithString("target",
			mcp.Description("Debug target ID, or a regular expression matched against target names (module-version) and then descriptions. Omit to pick the default target."),
		),
		mcp.WithBoolean("includeInactive",
			mcp.Description("Also consider targets that stopped reporting (default: false)"),
		),
		mcp.WithString("configPath",
			mcp.Description("Path to launch.json file. Auto-discovers from workspace if not provided."),
		),
		mcp.WithString("configName",
			mcp.Description("Name of a 'cdbg' configuration in launch.json to take project and target from."),
		),
		mcp.WithString("workspace",
			mcp.Description("Workspace root for variable resolution (e.g., ${workspaceFolder}) and config discovery."),
		),
		mcp.WithString("inputValues",
			mcp.Description("JSON object with values for ${input:} variables in launch.json. Example: {\"version\": \"v2\"}"),
		),
	)
	s.addTool(tool, s.handleDebugAttach)
}

func (s *Server) registerDebugListDebuggees() {
	tool := mcp.NewTool("debug_list_debuggees",
		mcp.WithDescription("List the debug targets of a project"),
		mcp.WithString("project",
			mcp.Description("Cloud project ID. Defaults to the configured project."),
		),
		mcp.WithBoolean("includeInactive",
			mcp.Description("Include targets that stopped reporting (default: false)"),
		),
	)
	s.addTool(tool, s.handleDebugListDebuggees)
}

func (s *Server) registerDebugListSessions() {
	tool := mcp.NewTool("debug_list_sessions",
		mcp.WithDescription("List open debug sessions"),
	)
	s.addTool(tool, s.handleDebugListSessions)
}

func (s *Server) registerDebugDetach() {
	tool := mcp.NewTool("debug_detach",
		mcp.WithDescription("Close a debug session. Breakpoints set through it stay in place."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
	)
	s.addTool(tool, s.handleDebugDetach)
}

// Breakpoints

func (s *Server) registerDebugBreakpoints() {
	tool := mcp.NewTool("debug_breakpoints",
		mcp.WithDescription("List snapshots and logpoints of the session's target, optionally only those matching IDs or location patterns"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
		mcp.WithArray("ids",
			mcp.Description("Breakpoint IDs or regular expressions matched against 'path:line' locations"),
			mcp.WithStringItems(),
		),
		mcp.WithString("type",
			mcp.Description("Restrict to 'snapshot' or 'logpoint'"),
			mcp.Enum("snapshot", "logpoint"),
		),
		mcp.WithBoolean("includeInactive",
			mcp.Description("Include completed breakpoints (default: false)"),
		),
		mcp.WithBoolean("includeAllUsers",
			mcp.Description("Include breakpoints created by other users (default: false)"),
		),
	)
	s.addTool(tool, s.handleDebugBreakpoints)
}

func (s *Server) registerDebugGetBreakpoint() {
	tool := mcp.NewTool("debug_get_breakpoint",
		mcp.WithDescription("Get one breakpoint. Completed snapshots include the captured stack frames, evaluated expressions and variables."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Breakpoint ID"),
		),
	)
	s.addTool(tool, s.handleDebugGetBreakpoint)
}

func (s *Server) registerDebugWait() {
	tool := mcp.NewTool("debug_wait",
		mcp.WithDescription("Wait for a snapshot to complete and return it. Returns status 'pending' when the timeout elapses first."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Breakpoint ID"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Seconds to wait (default: 30)"),
		),
	)
	s.addTool(tool, s.handleDebugWait)
}

// Breakpoint changes

func (s *Server) registerDebugCreateSnapshot() {
	tool := mcp.NewTool("debug_create_snapshot",
		mcp.WithDescription("Set a snapshot: the next time the location executes, the stack and variables are captured once"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Source location as 'path:line'"),
		),
		mcp.WithString("condition",
			mcp.Description("Only capture when this expression is true"),
		),
		mcp.WithArray("expressions",
			mcp.Description("Expressions to evaluate at capture time"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("wait",
			mcp.Description("Seconds to wait for the snapshot to complete (default: 0, do not wait)"),
		),
	)
	s.addTool(tool, s.handleDebugCreateSnapshot)
}

func (s *Server) registerDebugCreateLogpoint() {
	tool := mcp.NewTool("debug_create_logpoint",
		mcp.WithDescription("Set a logpoint: every time the location executes, a message is written to the application log"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Source location as 'path:line'"),
		),
		mcp.WithString("format",
			mcp.Required(),
			mcp.Description("Message to log. Embed expressions in braces, e.g. 'user={user.id}'."),
		),
		mcp.WithString("logLevel",
			mcp.Description("info, warning or error"),
			mcp.Enum("info", "warning", "error"),
		),
		mcp.WithString("condition",
			mcp.Description("Only log when this expression is true"),
		),
	)
	s.addTool(tool, s.handleDebugCreateLogpoint)
}

func (s *Server) registerDebugDeleteBreakpoints() {
	tool := mcp.NewTool("debug_delete_breakpoints",
		mcp.WithDescription("Delete breakpoints by ID or location pattern"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The debug session ID"),
		),
		mcp.WithArray("ids",
			mcp.Required(),
			mcp.Description("Breakpoint IDs or regular expressions matched against 'path:line' locations"),
			mcp.WithStringItems(),
		),
		mcp.WithString("type",
			mcp.Description("Restrict to 'snapshot' or 'logpoint'"),
			mcp.Enum("snapshot", "logpoint"),
		),
		mcp.WithBoolean("includeInactive",
			mcp.Description("Also delete completed breakpoints matching a pattern (default: false)"),
		),
	)
	s.addTool(tool, s.handleDebugDeleteBreakpoints)
}
