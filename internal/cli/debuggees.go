package cli

import (
	"github.com/spf13/pflag"

	"github.com/ctagard/cdbg/internal/output"
)

func (a *App) debuggeesCommand() *Command {
	var includeInactive bool
	list := &Command{
		Name:    "list",
		Summary: "List the debug targets of a project",
		Usage:   "cdbg debuggees list [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			a.registerGlobals(fs)
			fs.BoolVar(&includeInactive, "include-inactive", false, "include targets that stopped reporting")
			return fs
		},
		Examples: []Example{
			{Description: "List active targets as a table", Command: "cdbg debuggees list --project my-project --format table"},
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			dbg, err := e.debugger(a.ctx)
			if err != nil {
				return err
			}
			debuggees, err := dbg.ListDebuggees(a.ctx, includeInactive)
			if err != nil {
				return err
			}
			return e.printer.Print(output.Debuggees(debuggees))
		},
	}
	return &Command{
		Name:        "debuggees",
		Summary:     "Inspect debug targets",
		Subcommands: []*Command{list},
	}
}
