package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "cdbg",
		Subcommands: []*Command{
			{Name: "version", Run: func(args []string) error { called = "version"; return nil }},
			{Name: "debuggees", Run: func(args []string) error { called = "debuggees"; return nil }},
		},
	}

	require.NoError(t, root.Execute([]string{"debuggees"}))
	assert.Equal(t, "debuggees", called)
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var receivedArgs []string

	root := &Command{
		Name: "cdbg",
		Subcommands: []*Command{
			{
				Name: "snapshots",
				Subcommands: []*Command{
					{Name: "describe", Run: func(args []string) error { receivedArgs = args; return nil }},
				},
			},
		},
	}

	require.NoError(t, root.Execute([]string{"snapshots", "describe", "main.go:.*"}))
	assert.Equal(t, []string{"main.go:.*"}, receivedArgs)
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var project string
	var expressions []string
	var receivedArgs []string

	cmd := &Command{
		Name: "create",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
			fs.StringVar(&project, "project", "", "project")
			fs.StringArrayVar(&expressions, "expression", nil, "expression")
			return fs
		},
		Run: func(args []string) error { receivedArgs = args; return nil },
	}

	err := cmd.Execute([]string{"main.go:10", "--project", "p", "--expression", "f(a, b)", "--expression", "x"})
	require.NoError(t, err)
	assert.Equal(t, "p", project)
	assert.Equal(t, []string{"f(a, b)", "x"}, expressions)
	assert.Equal(t, []string{"main.go:10"}, receivedArgs)
}

func TestCommand_Execute_UnknownCommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "cdbg",
		Subcommands: []*Command{
			{Name: "snapshots", Run: func([]string) error { return nil }},
			{Name: "logpoints", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"snapshot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "snapshot" (did you mean "snapshots"?)`)
	assert.Contains(t, err.Error(), "Run 'cdbg --help' for usage.")

	err = root.Execute([]string{"zzzzzzzzzz"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	var project string
	cmd := &Command{
		Name: "list",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
			fs.StringVar(&project, "project", "", "project")
			return fs
		},
		Run: func([]string) error { return nil },
	}

	err := cmd.Execute([]string{"--projct", "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean --project?")
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:   "cdbg",
		Output: &help,
		Subcommands: []*Command{
			{Name: "snapshots", Summary: "Manage snapshots", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute(nil)
	require.Error(t, err)
	assert.Equal(t, "subcommand required", err.Error())
	assert.Contains(t, help.String(), "snapshots")
}

func TestCommand_Execute_HelpGoesToInheritedOutput(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:   "cdbg",
		Output: &help,
		Subcommands: []*Command{
			{
				Name:        "logpoints",
				Summary:     "Manage logpoints",
				Description: "Inject log statements.",
				Subcommands: []*Command{
					{Name: "create", Summary: "Set a logpoint", Run: func([]string) error { return nil }},
				},
			},
		},
	}

	require.NoError(t, root.Execute([]string{"logpoints", "--help"}))
	out := help.String()
	assert.Contains(t, out, "Inject log statements.\n\n")
	assert.Contains(t, out, "Usage:\n  cdbg logpoints <command> [flags]\n")
	assert.Contains(t, out, "create   Set a logpoint")
	assert.Contains(t, out, "Run 'cdbg logpoints <command> --help' for more information on a command.")
}

func TestCommand_PrintHelp_FlagsAndExamples(t *testing.T) {
	cmd := &Command{
		Name:    "wait",
		Summary: "Wait for a snapshot",
		Usage:   "cdbg snapshots wait ID [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("wait", pflag.ContinueOnError)
			fs.Int("timeout", 0, "seconds to wait")
			return fs
		},
		Examples: []Example{{Description: "Wait a minute", Command: "cdbg snapshots wait ID --timeout 60"}},
	}

	var buf bytes.Buffer
	cmd.PrintHelp(&buf)
	out := buf.String()
	assert.Contains(t, out, "Wait for a snapshot\n\nUsage:\n  cdbg snapshots wait ID [flags]\n")
	assert.Contains(t, out, "\nFlags:\n")
	assert.Contains(t, out, "--timeout int")
	assert.Contains(t, out, "  # Wait a minute\n  cdbg snapshots wait ID --timeout 60\n")
}
