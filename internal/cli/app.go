package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ctagard/cdbg/internal/api"
	"github.com/ctagard/cdbg/internal/config"
	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/internal/output"
	"github.com/ctagard/cdbg/internal/telemetry"
	"github.com/ctagard/cdbg/internal/version"
)

// Service is the remote surface the commands need. *api.Client
// implements it.
type Service interface {
	debug.DebuggerAPI
	debug.ProjectsAPI
}

// App holds the state shared by the commands of one invocation.
type App struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
	Stderr io.Writer

	// NewService connects to the remote APIs. Defaults to an *api.Client
	// built from the configuration.
	NewService func(cfg *config.Config, logger *slog.Logger) (Service, error)

	ctx      context.Context
	flags    globalFlags
	shutdown []telemetry.Shutdown
}

// globalFlags are accepted by every command that talks to the service.
type globalFlags struct {
	project    string
	target     string
	format     string
	configPath string
	verbosity  string
}

// NewApp creates an App on the process's standard streams.
func NewApp() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the command named by args.
func (a *App) Run(ctx context.Context, args []string) error {
	a.ctx = ctx
	defer a.close()
	return a.Root().Execute(args)
}

func (a *App) close() {
	for _, shutdown := range a.shutdown {
		if err := shutdown(context.WithoutCancel(a.ctx)); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}
	a.shutdown = nil
}

// Root builds the command tree.
func (a *App) Root() *Command {
	return &Command{
		Name:    "cdbg",
		Summary: "Place snapshots and logpoints on running services",
		Description: `cdbg is a client for the cloud debugger. It captures the local variables
and call stack of a running service at a source line (a snapshot), or
injects a log statement there (a logpoint), without stopping the service.`,
		Output: a.Stderr,
		Subcommands: []*Command{
			a.debuggeesCommand(),
			a.snapshotsCommand(),
			a.logpointsCommand(),
			a.mcpCommand(),
			a.dapCommand(),
			a.versionCommand(),
		},
	}
}

func (a *App) registerGlobals(fs *pflag.FlagSet) {
	fs.StringVar(&a.flags.project, "project", "", "project ID or number (default from config or CDBG_PROJECT)")
	fs.StringVar(&a.flags.format, "format", "", "output format: yaml, json or table")
	fs.StringVar(&a.flags.configPath, "config", "", "path to a JSON configuration file")
	fs.StringVar(&a.flags.verbosity, "verbosity", "", "log level: debug, info, warning, error, critical or none")
}

func (a *App) registerTarget(fs *pflag.FlagSet) {
	a.registerGlobals(fs)
	fs.StringVarP(&a.flags.target, "target", "t", "", "debug target ID, name or regular expression (default: the only active target)")
}

// env is what a command needs once the configuration is known.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
	connect func(ctx context.Context, projectID string) (*debug.Debugger, error)
}

// setup loads the configuration, applies flag overrides and connects the
// service.
func (a *App) setup() (*env, error) {
	cfg, err := config.LoadConfig(a.flags.configPath)
	if err != nil {
		return nil, err
	}
	if a.flags.project != "" {
		cfg.Project = a.flags.project
	}
	if a.flags.format != "" {
		cfg.Format = a.flags.format
	}
	if a.flags.verbosity != "" {
		cfg.LogLevel = a.flags.verbosity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewCommandLogger(a.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	printer, err := output.NewPrinter(a.Stdout, cfg.Format)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(a.ctx, cfg.OTELEndpoint, "cdbg", version.Version, cfg.OTELInsecure)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	} else {
		a.shutdown = append(a.shutdown, shutdown)
	}

	newService := a.NewService
	if newService == nil {
		newService = newAPIClient
	}
	svc, err := newService(cfg, logger)
	if err != nil {
		return nil, err
	}

	projects := debug.NewProjectCache(svc, logger)
	opts := debug.Options{
		ClientVersion: version.ClientVersion(),
		ConsoleHost:   cfg.ConsoleHost,
		Logger:        logger,
	}
	return &env{
		cfg:     cfg,
		logger:  logger,
		printer: printer,
		connect: func(ctx context.Context, projectID string) (*debug.Debugger, error) {
			return debug.NewDebugger(ctx, svc, projects, projectID, opts)
		},
	}, nil
}

func newAPIClient(cfg *config.Config, logger *slog.Logger) (Service, error) {
	client, err := api.NewClient(api.Config{
		DebuggerEndpoint:        cfg.DebuggerEndpoint,
		ResourceManagerEndpoint: cfg.ResourceManagerEndpoint,
		AccessToken:             cfg.AccessToken,
		ClientVersion:           version.ClientVersion(),
		Timeout:                 cfg.RequestTimeout.Std(),
		Logger:                  logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// debugger binds the service to the configured project.
func (e *env) debugger(ctx context.Context) (*debug.Debugger, error) {
	if e.cfg.Project == "" {
		return nil, errors.MissingParameter("project",
			"Pass --project, set CDBG_PROJECT, or set \"project\" in the config file.")
	}
	return e.connect(ctx, e.cfg.Project)
}

// target resolves --target within the configured project.
func (a *App) target(e *env) (*debug.Target, error) {
	dbg, err := e.debugger(a.ctx)
	if err != nil {
		return nil, err
	}
	debuggee, err := dbg.ResolveTarget(a.ctx, a.flags.target, false)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("resolved target", "debuggee", debuggee.TargetID, "name", debuggee.Name())
	return dbg.Target(debuggee), nil
}

func (e *env) waitOptions(timeout int) debug.WaitOptions {
	return debug.WaitOptions{
		Timeout:      secondsDuration(timeout),
		PollInterval: e.cfg.PollInterval.Std(),
		Ceiling:      e.cfg.PollCeiling.Std(),
	}
}
