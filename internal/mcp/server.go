// Package mcp exposes the cloud debugger as Model Context Protocol tools.
//
// A client first attaches to a debug target, which pins the resolved
// debuggee under a session ID, and then manages snapshots and logpoints
// through that session:
//
// Targets and sessions (always available):
//   - debug_attach: resolve a debug target and open a session
//   - debug_list_debuggees: list the debug targets of a project
//   - debug_list_sessions: list open sessions
//   - debug_detach: close a session
//
// Breakpoints (always available):
//   - debug_breakpoints: list snapshots and logpoints
//   - debug_get_breakpoint: fetch one breakpoint with its captured data
//   - debug_wait: wait for a snapshot to complete
//
// Breakpoint changes (full mode only):
//   - debug_create_snapshot: set a snapshot
//   - debug_create_logpoint: set a logpoint
//   - debug_delete_breakpoints: delete breakpoints by ID or location
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ctagard/cdbg/internal/config"
	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/session"
	"github.com/ctagard/cdbg/internal/version"
)

// Connector binds the debugger service to a project.
type Connector func(ctx context.Context, projectID string) (*debug.Debugger, error)

// Server wraps the MCP server with debugging capabilities
type Server struct {
	mcpServer *server.MCPServer
	sessions  *session.Manager
	connect   Connector
	config    *config.Config
	logger    *slog.Logger

	// tools lists the registered tool names in registration order.
	tools []string
}

// NewServer creates the MCP server and registers the tools allowed by the
// configured mode.
func NewServer(cfg *config.Config, connect Connector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mcpServer := server.NewMCPServer(
		"cdbg",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		sessions:  session.NewManager(cfg.MaxSessions, cfg.SessionTimeout.Std(), logger),
		connect:   connect,
		config:    cfg,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close shuts down the server
func (s *Server) Close() {
	s.sessions.Close()
}

// Tools returns the names of the registered tools.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}
