package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ctagard/cdbg/internal/version"
)

func (a *App) versionCommand() *Command {
	var check bool
	return &Command{
		Name:    "version",
		Summary: "Print the cdbg version",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("version", pflag.ContinueOnError)
			fs.BoolVar(&check, "check", false, "also check for a newer release")
			return fs
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			fmt.Fprintf(a.Stdout, "cdbg %s\n", version.Version)
			if !check {
				return nil
			}
			info := version.NewChecker().CheckForUpdates(a.ctx)
			if info.Error != "" {
				return fmt.Errorf("update check failed: %s", info.Error)
			}
			if msg := info.UpdateMessage(); msg != "" {
				fmt.Fprintln(a.Stdout, msg)
			} else {
				fmt.Fprintln(a.Stdout, "cdbg is up to date.")
			}
			return nil
		},
	}
}
