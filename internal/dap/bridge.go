package dap

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/internal/launchconfig"
)

// Connector binds the debugger service to a project.
type Connector func(ctx context.Context, projectID string) (*debug.Debugger, error)

// Options configures a Bridge.
type Options struct {
	// Project is used when the attach arguments name none.
	Project string
	// Workspace is substituted for ${workspaceFolder} in attach arguments.
	Workspace string
	// PollInterval is the cadence at which pending breakpoints are checked
	// after configurationDone. Defaults to debug.DefaultPollInterval.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// tracked is a breakpoint the bridge created on behalf of the client.
type tracked struct {
	id       string // breakpoint ID at the service
	dapID    int
	path     string
	line     int
	logpoint bool
	final    bool
}

// Bridge serves one DAP client. Each source breakpoint the client sets
// becomes a snapshot, or a logpoint when it carries a log message.
type Bridge struct {
	transport *Transport
	connect   Connector
	opts      Options
	logger    *slog.Logger

	mu      sync.Mutex
	target  *debug.Target
	config  *launchconfig.ResolvedConfiguration
	sources map[string][]*tracked
	nextID  int
	polling bool
	wg      sync.WaitGroup
}

// NewBridge creates a bridge speaking DAP over transport.
func NewBridge(transport *Transport, connect Connector, opts Options) *Bridge {
	if opts.PollInterval <= 0 {
		opts.PollInterval = debug.DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bridge{
		transport: transport,
		connect:   connect,
		opts:      opts,
		logger:    opts.Logger,
		sources:   make(map[string][]*tracked),
		nextID:    1,
	}
}

// Serve handles requests until the client disconnects or closes the stream.
// Breakpoints the bridge created are deleted on every exit path.
func (b *Bridge) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer b.wg.Wait()
	defer b.cleanup(context.WithoutCancel(ctx))
	defer cancel()

	for {
		msg, err := b.transport.Receive()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			var fe *dap.DecodeProtocolMessageFieldError
			if !stderrors.As(err, &fe) {
				return err
			}
			// The frame was read in full, so the stream is still in sync.
			if err := b.rejectUndecodable(fe); err != nil {
				return err
			}
			continue
		}
		done, err := b.dispatch(ctx, msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// rejectUndecodable answers a request whose command go-dap does not know,
// such as an IDE vendor extension. Other undecodable messages are dropped.
func (b *Bridge) rejectUndecodable(fe *dap.DecodeProtocolMessageFieldError) error {
	if fe.SubType != "Request" || fe.FieldName != "command" {
		b.logger.Debug("ignoring undecodable DAP message", "error", fe)
		return nil
	}
	req := &dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: fe.Seq, Type: "request"},
		Command:         fe.FieldValue,
	}
	return b.sendError(req, fmt.Errorf("unsupported request %q", fe.FieldValue))
}

func (b *Bridge) dispatch(ctx context.Context, msg dap.Message) (bool, error) {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		return false, b.onInitialize(req)
	case *dap.AttachRequest:
		return false, b.onAttach(ctx, req)
	case *dap.LaunchRequest:
		return false, b.sendError(&req.Request, errors.InvalidParameter("request", "launch",
			"cdbg attaches to running services. Use \"request\": \"attach\"."))
	case *dap.SetBreakpointsRequest:
		return false, b.onSetBreakpoints(ctx, req)
	case *dap.ConfigurationDoneRequest:
		return false, b.onConfigurationDone(ctx, req)
	case *dap.ThreadsRequest:
		return false, b.transport.Send(&dap.ThreadsResponse{
			Response: b.response(&req.Request),
			Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{}},
		})
	case *dap.DisconnectRequest:
		b.cleanup(ctx)
		return true, b.transport.Send(&dap.DisconnectResponse{Response: b.response(&req.Request)})
	case dap.RequestMessage:
		r := req.GetRequest()
		return false, b.sendError(r, fmt.Errorf("unsupported request %q", r.Command))
	default:
		b.logger.Debug("ignoring DAP message", "type", fmt.Sprintf("%T", msg))
		return false, nil
	}
}

func (b *Bridge) onInitialize(req *dap.InitializeRequest) error {
	return b.transport.Send(&dap.InitializeResponse{
		Response: b.response(&req.Request),
		Body: dap.Capabilities{
			SupportsConfigurationDoneRequest: true,
			SupportsConditionalBreakpoints:   true,
			SupportsLogPoints:                true,
		},
	})
}

func (b *Bridge) onAttach(ctx context.Context, req *dap.AttachRequest) error {
	var cfg launchconfig.Configuration
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &cfg); err != nil {
			return b.sendError(&req.Request, fmt.Errorf("invalid attach arguments: %w", err))
		}
	}
	cfg.Type = launchconfig.DebuggerType
	cfg.Request = "attach"
	if cfg.Name == "" {
		cfg.Name = "cdbg"
	}

	resolved, err := launchconfig.ResolveConfiguration(&cfg, &launchconfig.ResolutionContext{
		WorkspaceFolder: b.opts.Workspace,
	})
	if err != nil {
		return b.sendError(&req.Request, err)
	}
	project := resolved.Project
	if project == "" {
		project = b.opts.Project
	}
	if project == "" {
		return b.sendError(&req.Request, errors.MissingParameter("project",
			"Set \"project\" in the attach configuration, or configure a default project."))
	}

	dbg, err := b.connect(ctx, project)
	if err != nil {
		return b.sendError(&req.Request, err)
	}
	debuggee, err := dbg.ResolveTarget(ctx, resolved.Target, resolved.IncludeInactive)
	if err != nil {
		return b.sendError(&req.Request, err)
	}

	b.mu.Lock()
	b.target = dbg.Target(debuggee)
	b.config = resolved
	b.mu.Unlock()
	b.logger.Info("attached", "project", project, "debuggee", debuggee.TargetID)

	if err := b.transport.Send(&dap.AttachResponse{Response: b.response(&req.Request)}); err != nil {
		return err
	}
	if err := b.output("console", fmt.Sprintf("Attached to %s (%s)\n", debuggee.Name(), debuggee.TargetID)); err != nil {
		return err
	}
	return b.transport.Send(&dap.InitializedEvent{Event: b.event("initialized")})
}

func (b *Bridge) onSetBreakpoints(ctx context.Context, req *dap.SetBreakpointsRequest) error {
	b.mu.Lock()
	target, cfg := b.target, b.config
	b.mu.Unlock()
	if target == nil {
		return b.sendError(&req.Request, errors.Wrap(errors.CodeInvalidParameter,
			"setBreakpoints before attach", "Send an attach request first.", nil))
	}

	path := req.Arguments.Source.Path
	if path == "" {
		path = req.Arguments.Source.Name
	}
	b.mu.Lock()
	old := b.sources[path]
	delete(b.sources, path)
	b.mu.Unlock()
	for _, t := range old {
		b.delete(ctx, target, t)
	}

	results := make([]dap.Breakpoint, len(req.Arguments.Breakpoints))
	var created []*tracked
	for i, sbp := range req.Arguments.Breakpoints {
		location := fmt.Sprintf("%s:%d", cfg.RelativePath(path), sbp.Line)
		condition := sbp.Condition
		if condition == "" {
			condition = cfg.Condition
		}

		var rec *debug.Record
		var err error
		if sbp.LogMessage != "" {
			rec, err = target.CreateLogpoint(ctx, debug.LogpointRequest{
				Location:  location,
				Format:    sbp.LogMessage,
				Condition: condition,
			})
		} else {
			rec, err = target.CreateSnapshot(ctx, debug.SnapshotRequest{
				Location:    location,
				Condition:   condition,
				Expressions: cfg.Expressions,
			})
		}
		if err != nil {
			b.logger.Warn("failed to set breakpoint", "location", location, "error", err)
			results[i] = dap.Breakpoint{Verified: false, Line: sbp.Line, Message: err.Error()}
			continue
		}

		b.mu.Lock()
		t := &tracked{id: rec.ID(), dapID: b.nextID, path: path, line: sbp.Line, logpoint: sbp.LogMessage != ""}
		b.nextID++
		b.mu.Unlock()
		created = append(created, t)
		results[i] = dap.Breakpoint{Id: t.dapID, Verified: true, Line: sbp.Line}
	}

	if len(created) > 0 {
		b.mu.Lock()
		b.sources[path] = created
		b.mu.Unlock()
	}

	return b.transport.Send(&dap.SetBreakpointsResponse{
		Response: b.response(&req.Request),
		Body:     dap.SetBreakpointsResponseBody{Breakpoints: results},
	})
}

func (b *Bridge) onConfigurationDone(ctx context.Context, req *dap.ConfigurationDoneRequest) error {
	b.mu.Lock()
	start := !b.polling
	b.polling = true
	b.mu.Unlock()
	if start {
		b.wg.Add(1)
		go b.poll(ctx)
	}
	return b.transport.Send(&dap.ConfigurationDoneResponse{Response: b.response(&req.Request)})
}

// cleanup deletes every breakpoint the bridge created.
func (b *Bridge) cleanup(ctx context.Context) {
	b.mu.Lock()
	target := b.target
	var all []*tracked
	for path, ts := range b.sources {
		all = append(all, ts...)
		delete(b.sources, path)
	}
	b.mu.Unlock()
	if target == nil {
		return
	}
	for _, t := range all {
		b.delete(ctx, target, t)
	}
}

func (b *Bridge) delete(ctx context.Context, target *debug.Target, t *tracked) {
	if err := target.Delete(ctx, t.id); err != nil {
		b.logger.Warn("failed to delete breakpoint", "id", t.id, "error", err)
	}
}

func (b *Bridge) response(req *dap.Request) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: b.transport.NextSeq(), Type: "response"},
		Command:         req.Command,
		RequestSeq:      req.Seq,
		Success:         true,
	}
}

func (b *Bridge) event(name string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: b.transport.NextSeq(), Type: "event"},
		Event:           name,
	}
}

func (b *Bridge) sendError(req *dap.Request, err error) error {
	b.logger.Debug("request failed", "command", req.Command, "error", err)
	resp := b.response(req)
	resp.Success = false
	resp.Message = err.Error()
	return b.transport.Send(&dap.ErrorResponse{Response: resp})
}

func (b *Bridge) output(category, text string) error {
	return b.transport.Send(&dap.OutputEvent{
		Event: b.event("output"),
		Body:  dap.OutputEventBody{Category: category, Output: text},
	})
}
