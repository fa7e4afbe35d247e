package cli

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/internal/output"
	"github.com/ctagard/cdbg/pkg/types"
)

// breakpointKind distinguishes the snapshots and logpoints command groups,
// which list and delete the same way.
type breakpointKind struct {
	noun   string
	plural string
	action types.Action
}

var (
	snapshotKind = breakpointKind{noun: "snapshot", plural: "snapshots", action: types.ActionCapture}
	logpointKind = breakpointKind{noun: "logpoint", plural: "logpoints", action: types.ActionLog}
)

func (a *App) snapshotsCommand() *Command {
	return &Command{
		Name:    "snapshots",
		Summary: "Capture the state of a running service at a source line",
		Subcommands: []*Command{
			a.createSnapshotCommand(),
			a.listCommand(snapshotKind),
			a.describeSnapshotsCommand(),
			a.deleteCommand(snapshotKind),
			a.waitSnapshotCommand(),
		},
	}
}

func (a *App) logpointsCommand() *Command {
	return &Command{
		Name:    "logpoints",
		Summary: "Inject log statements into a running service",
		Subcommands: []*Command{
			a.createLogpointCommand(),
			a.listCommand(logpointKind),
			a.deleteCommand(logpointKind),
		},
	}
}

func (a *App) createSnapshotCommand() *Command {
	var (
		condition   string
		expressions []string
		labels      map[string]string
		wait        int
	)
	return &Command{
		Name:    "create",
		Summary: "Set a snapshot",
		Usage:   "cdbg snapshots create PATH:LINE [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
			a.registerTarget(fs)
			fs.StringVar(&condition, "condition", "", "only capture when this expression is true")
			fs.StringArrayVar(&expressions, "expression", nil, "expression to evaluate when capturing (repeatable)")
			fs.StringToStringVar(&labels, "label", nil, "KEY=VALUE label to attach (repeatable)")
			fs.IntVar(&wait, "wait", 0, "seconds to wait for the snapshot to complete")
			return fs
		},
		Examples: []Example{
			{
				Description: "Capture request state and wait up to a minute",
				Command:     "cdbg snapshots create handlers/user.go:42 --expression req.URL --wait 60",
			},
		},
		Run: func(args []string) error {
			if err := exactArgs(args, "PATH:LINE"); err != nil {
				return err
			}
			if wait < 0 {
				return errors.InvalidParameter("wait", wait, "a non-negative number of seconds")
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			target, err := a.target(e)
			if err != nil {
				return err
			}
			record, err := target.CreateSnapshot(a.ctx, debug.SnapshotRequest{
				Location:    args[0],
				Condition:   condition,
				Expressions: expressions,
				Labels:      labels,
			})
			if err != nil {
				return err
			}
			if wait > 0 {
				done, err := target.WaitForCompletion(a.ctx, record.ID(), e.waitOptions(wait))
				if err != nil {
					return err
				}
				if done == nil {
					fmt.Fprintf(a.Stderr, "Snapshot %s is still pending after %d seconds.\n", record.ID(), wait)
				} else {
					record = done
				}
			}
			return e.printer.Print(record)
		},
	}
}

func (a *App) createLogpointCommand() *Command {
	var (
		condition string
		level     string
		labels    map[string]string
	)
	return &Command{
		Name:    "create",
		Summary: "Set a logpoint",
		Usage:   "cdbg logpoints create PATH:LINE MESSAGE [flags]",
		Description: `Set a logpoint. MESSAGE is logged each time the line runs. Expressions
inside braces are evaluated, as in "user={user.id}". Braces always
delimit an expression; nested braces become part of the expression text.`,
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
			a.registerTarget(fs)
			fs.StringVar(&condition, "condition", "", "only log when this expression is true")
			fs.StringVar(&level, "log-level", "", "log level: info, warning or error")
			fs.StringToStringVar(&labels, "label", nil, "KEY=VALUE label to attach (repeatable)")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return errors.InvalidParameter("arguments", args, "PATH:LINE MESSAGE")
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			target, err := a.target(e)
			if err != nil {
				return err
			}
			record, err := target.CreateLogpoint(a.ctx, debug.LogpointRequest{
				Location:  args[0],
				Format:    args[1],
				LogLevel:  level,
				Condition: condition,
				Labels:    labels,
			})
			if err != nil {
				return err
			}
			return e.printer.Print(record)
		},
	}
}

func (a *App) listCommand(kind breakpointKind) *Command {
	var allUsers, includeInactive bool
	return &Command{
		Name:    "list",
		Summary: fmt.Sprintf("List %s, optionally by ID or location pattern", kind.plural),
		Usage:   fmt.Sprintf("cdbg %s list [ID|LOCATION_REGEXP ...] [flags]", kind.plural),
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			a.registerTarget(fs)
			fs.BoolVar(&allUsers, "all-users", false, fmt.Sprintf("include %s set by other users", kind.plural))
			fs.BoolVar(&includeInactive, "include-inactive", false, fmt.Sprintf("include completed %s", kind.plural))
			return fs
		},
		Run: func(args []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			target, err := a.target(e)
			if err != nil {
				return err
			}
			opts := types.ListOptions{
				IncludeAllUsers: allUsers,
				IncludeInactive: includeInactive,
				RestrictToType:  kind.action,
			}
			var records []*debug.Record
			if len(args) > 0 {
				records, err = target.ListMatching(a.ctx, args, opts)
			} else {
				records, err = target.List(a.ctx, opts)
			}
			if err != nil {
				return err
			}
			return e.printer.Print(output.Breakpoints(records))
		},
	}
}

func (a *App) describeSnapshotsCommand() *Command {
	return &Command{
		Name:    "describe",
		Summary: "Show snapshots with their captured data",
		Usage:   "cdbg snapshots describe ID|LOCATION_REGEXP ... [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("describe", pflag.ContinueOnError)
			a.registerTarget(fs)
			return fs
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return errors.MissingParameter("ID", "Name at least one snapshot ID or location pattern.")
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			target, err := a.target(e)
			if err != nil {
				return err
			}
			records, err := target.ListMatching(a.ctx, args, types.ListOptions{
				IncludeAllUsers: true,
				IncludeInactive: true,
				RestrictToType:  types.ActionCapture,
			})
			if err != nil {
				return err
			}
			return e.printer.Print(output.Breakpoints(records))
		},
	}
}

func (a *App) deleteCommand(kind breakpointKind) *Command {
	var allUsers bool
	return &Command{
		Name:    "delete",
		Summary: fmt.Sprintf("Delete %s by ID or location pattern", kind.plural),
		Usage:   fmt.Sprintf("cdbg %s delete ID|LOCATION_REGEXP ... [flags]", kind.plural),
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			a.registerTarget(fs)
			fs.BoolVar(&allUsers, "all-users", false, fmt.Sprintf("also match %s set by other users", kind.plural))
			return fs
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return errors.MissingParameter("ID", fmt.Sprintf("Name at least one %s ID or location pattern.", kind.noun))
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			target, err := a.target(e)
			if err != nil {
				return err
			}
			records, err := target.ListMatching(a.ctx, args, types.ListOptions{
				IncludeAllUsers: allUsers,
				IncludeInactive: true,
				RestrictToType:  kind.action,
			})
			if err != nil {
				return err
			}
			for _, r := range records {
				if err := target.Delete(a.ctx, r.ID()); err != nil {
					return err
				}
			}
			e.logger.Info("deleted "+kind.plural, "count", len(records))
			return e.printer.Print(output.Breakpoints(records))
		},
	}
}

func (a *App) waitSnapshotCommand() *Command {
	var timeout int
	return &Command{
		Name:    "wait",
		Summary: "Wait for a snapshot to complete",
		Usage:   "cdbg snapshots wait ID [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("wait", pflag.ContinueOnError)
			a.registerTarget(fs)
			fs.IntVar(&timeout, "timeout", 0, "seconds to wait; 0 waits until the snapshot completes")
			return fs
		},
		Run: func(args []string) error {
			if err := exactArgs(args, "ID"); err != nil {
				return err
			}
			if timeout < 0 {
				return errors.InvalidParameter("timeout", timeout, "a non-negative number of seconds")
			}
			e, err := a.setup()
			if err != nil {
				return err
			}
			target, err := a.target(e)
			if err != nil {
				return err
			}
			record, err := target.WaitForCompletion(a.ctx, args[0], e.waitOptions(timeout))
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("snapshot %s is still pending after %d seconds", args[0], timeout)
			}
			return e.printer.Print(record)
		},
	}
}

func noArgs(args []string) error {
	if len(args) > 0 {
		return errors.InvalidParameter("arguments", args, "no positional arguments")
	}
	return nil
}

func exactArgs(args []string, name string) error {
	if len(args) == 0 {
		return errors.MissingParameter(name, "Pass "+name+" as an argument.")
	}
	if len(args) > 1 {
		return errors.InvalidParameter("arguments", args, "exactly one "+name)
	}
	return nil
}

func secondsDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}
