package cli

import (
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/ctagard/cdbg/internal/config"
	"github.com/ctagard/cdbg/internal/dap"
	"github.com/ctagard/cdbg/internal/mcp"
)

func (a *App) mcpCommand() *Command {
	var mode string
	return &Command{
		Name:    "mcp",
		Summary: "Serve the debugger as MCP tools on stdio",
		Description: `Serve the debugger as Model Context Protocol tools on stdin and stdout, so
an AI agent can attach to a debug target and set snapshots and logpoints.
In readonly mode the tools that create or delete breakpoints are hidden.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("mcp", pflag.ContinueOnError)
			a.registerGlobals(fs)
			fs.StringVar(&mode, "mode", "", "capability mode: readonly or full (default from config)")
			return fs
		},
		Examples: []Example{
			{Description: "Register with an MCP client", Command: `{"mcpServers": {"cdbg": {"command": "cdbg", "args": ["mcp", "--mode", "readonly"]}}}`},
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			if mode != "" {
				e.cfg.Mode = config.CapabilityMode(mode)
				if err := e.cfg.Validate(); err != nil {
					return err
				}
			}

			server := mcp.NewServer(e.cfg, e.connect, e.logger)
			defer server.Close()
			e.logger.Info("MCP server starting", "mode", e.cfg.Mode, "tools", len(server.Tools()))
			return server.ServeStdio()
		},
	}
}

func (a *App) dapCommand() *Command {
	var listen, workspace string
	return &Command{
		Name:    "dap",
		Summary: "Serve the Debug Adapter Protocol for IDEs",
		Description: `Serve the Debug Adapter Protocol on stdin and stdout, or on a TCP address
with --listen. Breakpoints set in the IDE become snapshots, or logpoints
when they carry a log message. Completed snapshots are reported in the
debug console. Breakpoints the adapter created are deleted on disconnect.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("dap", pflag.ContinueOnError)
			a.registerGlobals(fs)
			fs.StringVar(&listen, "listen", "", "serve one client on this TCP address instead of stdio")
			fs.StringVar(&workspace, "workspace", "", "directory substituted for ${workspaceFolder} (default: current directory)")
			return fs
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			if workspace == "" {
				if workspace, err = os.Getwd(); err != nil {
					return err
				}
			}

			var transport *dap.Transport
			if listen != "" {
				e.logger.Info("waiting for DAP client", "address", listen)
				if transport, err = dap.Accept(listen); err != nil {
					return err
				}
			} else {
				transport = dap.NewStreamTransport(a.Stdin, nopWriteCloser{a.Stdout})
			}
			defer transport.Close()

			bridge := dap.NewBridge(transport, e.connect, dap.Options{
				Project:      e.cfg.Project,
				Workspace:    workspace,
				PollInterval: e.cfg.PollInterval.Std(),
				Logger:       e.logger,
			})
			return bridge.Serve(a.ctx)
		},
	}
}

// nopWriteCloser keeps the transport from closing the process's stdout.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
