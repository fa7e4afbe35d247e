package dap

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/internal/debugtest"
	"github.com/ctagard/cdbg/pkg/types"
)

const apiTarget = "gcp:123:api"

// testClient plays the IDE side of a DAP session.
type testClient struct {
	t   *testing.T
	w   io.WriteCloser
	r   *bufio.Reader
	seq int
}

func (c *testClient) request(command string) dap.Request {
	c.seq++
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.seq, Type: "request"},
		Command:         command,
	}
}

func (c *testClient) send(msg dap.Message) {
	c.t.Helper()
	require.NoError(c.t, dap.WriteProtocolMessage(c.w, msg))
}

func expect[T dap.Message](t *testing.T, c *testClient) T {
	t.Helper()
	msg, err := dap.ReadProtocolMessage(c.r)
	require.NoError(t, err)
	m, ok := msg.(T)
	require.Truef(t, ok, "unexpected message %T", msg)
	return m
}

func startBridge(t *testing.T) (*testClient, *debugtest.Service, <-chan error) {
	t.Helper()
	svc := debugtest.New()
	svc.AddProject("my-project", 123)
	svc.AddDebuggee(123, apiTarget, map[string]string{"module": "api", "version": "v1"})
	svc.AddDebuggee(123, "gcp:123:worker", map[string]string{"module": "worker", "version": "v1"})

	projects := debug.NewProjectCache(svc, nil)
	connect := func(ctx context.Context, project string) (*debug.Debugger, error) {
		return debug.NewDebugger(ctx, svc, projects, project, debug.Options{})
	}

	clientR, bridgeW := io.Pipe()
	bridgeR, clientW := io.Pipe()
	b := NewBridge(NewStreamTransport(bridgeR, bridgeW), connect, Options{
		Workspace:    "/ws",
		PollInterval: time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- b.Serve(context.Background()) }()
	t.Cleanup(func() {
		clientW.Close()
		clientR.Close()
	})
	return &testClient{t: t, w: clientW, r: bufio.NewReader(clientR)}, svc, done
}

func attach(t *testing.T, c *testClient, args string) {
	t.Helper()
	c.send(&dap.AttachRequest{Request: c.request("attach"), Arguments: json.RawMessage(args)})
	resp := expect[*dap.AttachResponse](t, c)
	require.True(t, resp.Success)
	out := expect[*dap.OutputEvent](t, c)
	assert.Contains(t, out.Body.Output, "Attached to api-v1 (gcp:123:api)")
	expect[*dap.InitializedEvent](t, c)
}

func setBreakpoints(c *testClient, path string, bps ...dap.SourceBreakpoint) {
	c.send(&dap.SetBreakpointsRequest{
		Request: c.request("setBreakpoints"),
		Arguments: dap.SetBreakpointsArguments{
			Source:      dap.Source{Path: path},
			Breakpoints: bps,
		},
	})
}

func TestBridge_Session(t *testing.T) {
	t.Setenv("CDBG_BRIDGE_PROJECT", "my-project")
	c, svc, done := startBridge(t)

	c.send(&dap.InitializeRequest{Request: c.request("initialize")})
	caps := expect[*dap.InitializeResponse](t, c)
	assert.True(t, caps.Body.SupportsConfigurationDoneRequest)
	assert.True(t, caps.Body.SupportsConditionalBreakpoints)
	assert.True(t, caps.Body.SupportsLogPoints)

	attach(t, c, `{
		"project": "${env:CDBG_BRIDGE_PROJECT}",
		"target": "api",
		"sourceRoot": "${workspaceFolder}",
		"expressions": ["user.id"]
	}`)

	setBreakpoints(c, "/ws/src/main.go",
		dap.SourceBreakpoint{Line: 10},
		dap.SourceBreakpoint{Line: 20, LogMessage: "x={x}", Condition: "x > 1"},
	)
	resp := expect[*dap.SetBreakpointsResponse](t, c)
	require.Len(t, resp.Body.Breakpoints, 2)
	assert.Equal(t, dap.Breakpoint{Id: 1, Verified: true, Line: 10}, resp.Body.Breakpoints[0])
	assert.Equal(t, dap.Breakpoint{Id: 2, Verified: true, Line: 20}, resp.Body.Breakpoints[1])

	stored := svc.Breakpoints(apiTarget)
	require.Len(t, stored, 2)
	assert.Equal(t, types.ActionCapture, stored[0].Action)
	assert.Equal(t, &types.SourceLocation{Path: "src/main.go", Line: 10}, stored[0].Location)
	assert.Equal(t, []string{"user.id"}, stored[0].Expressions)
	assert.Equal(t, types.ActionLog, stored[1].Action)
	assert.Equal(t, "x=$0", stored[1].LogMessageFormat)
	assert.Equal(t, []string{"x"}, stored[1].Expressions)
	assert.Equal(t, "x > 1", stored[1].Condition)

	c.send(&dap.ConfigurationDoneRequest{Request: c.request("configurationDone")})
	expect[*dap.ConfigurationDoneResponse](t, c)

	c.send(&dap.ThreadsRequest{Request: c.request("threads")})
	threads := expect[*dap.ThreadsResponse](t, c)
	assert.Empty(t, threads.Body.Threads)

	svc.Update(apiTarget, stored[0].ID, func(bp *types.Breakpoint) {
		bp.IsFinalState = true
		bp.EvaluatedExpressions = []types.Variable{{Name: "user.id", Value: "42"}}
	})
	out := expect[*dap.OutputEvent](t, c)
	assert.Contains(t, out.Body.Output, "Snapshot at src/main.go:10 captured ("+stored[0].ID+")")
	assert.Contains(t, out.Body.Output, "  user.id = 42\n")
	assert.Contains(t, out.Body.Output, "https://console.developers.google.com/debug/fromgcloud?project=123")
	changed := expect[*dap.BreakpointEvent](t, c)
	assert.Equal(t, "changed", changed.Body.Reason)
	assert.Equal(t, 1, changed.Body.Breakpoint.Id)
	assert.True(t, changed.Body.Breakpoint.Verified)

	c.send(&dap.DisconnectRequest{Request: c.request("disconnect")})
	expect[*dap.DisconnectResponse](t, c)
	require.NoError(t, <-done)
	assert.ElementsMatch(t, []string{stored[0].ID, stored[1].ID}, svc.Deleted())
}

func TestBridge_ReplacesSourceBreakpoints(t *testing.T) {
	c, svc, done := startBridge(t)
	attach(t, c, `{"project": "my-project", "target": "api"}`)

	setBreakpoints(c, "main.go", dap.SourceBreakpoint{Line: 10})
	expect[*dap.SetBreakpointsResponse](t, c)
	first := svc.Breakpoints(apiTarget)
	require.Len(t, first, 1)

	setBreakpoints(c, "main.go", dap.SourceBreakpoint{Line: 11})
	resp := expect[*dap.SetBreakpointsResponse](t, c)
	assert.Equal(t, 2, resp.Body.Breakpoints[0].Id)
	assert.Equal(t, []string{first[0].ID}, svc.Deleted())

	second := svc.Breakpoints(apiTarget)
	require.Len(t, second, 1)
	assert.Equal(t, 11, second[0].Location.Line)

	// Closing the stream without disconnect still removes what was set.
	require.NoError(t, c.w.Close())
	require.NoError(t, <-done)
	assert.Equal(t, []string{first[0].ID, second[0].ID}, svc.Deleted())
}

func TestBridge_UnknownRequestKeepsSession(t *testing.T) {
	c, svc, done := startBridge(t)
	attach(t, c, `{"project": "my-project", "target": "api"}`)

	setBreakpoints(c, "main.go", dap.SourceBreakpoint{Line: 10})
	expect[*dap.SetBreakpointsResponse](t, c)

	c.seq++
	require.NoError(t, dap.WriteBaseMessage(c.w,
		[]byte(fmt.Sprintf(`{"seq":%d,"type":"request","command":"vendorThing"}`, c.seq))))
	resp := expect[*dap.ErrorResponse](t, c)
	assert.False(t, resp.Success)
	assert.Equal(t, "vendorThing", resp.Command)
	assert.Equal(t, c.seq, resp.RequestSeq)
	assert.Contains(t, resp.Message, `unsupported request "vendorThing"`)

	c.send(&dap.ThreadsRequest{Request: c.request("threads")})
	expect[*dap.ThreadsResponse](t, c)

	id := svc.Breakpoints(apiTarget)[0].ID
	c.send(&dap.DisconnectRequest{Request: c.request("disconnect")})
	expect[*dap.DisconnectResponse](t, c)
	require.NoError(t, <-done)
	assert.Equal(t, []string{id}, svc.Deleted())
}

func TestBridge_ReadErrorDeletesBreakpoints(t *testing.T) {
	c, svc, done := startBridge(t)
	attach(t, c, `{"project": "my-project", "target": "api"}`)

	setBreakpoints(c, "main.go", dap.SourceBreakpoint{Line: 10})
	expect[*dap.SetBreakpointsResponse](t, c)
	id := svc.Breakpoints(apiTarget)[0].ID

	_, err := io.WriteString(c.w, "Bogus-Header: 1\r\n\r\n")
	require.NoError(t, err)
	require.Error(t, <-done)
	assert.Equal(t, []string{id}, svc.Deleted())
}

func TestBridge_ReportsFailedBreakpoint(t *testing.T) {
	c, svc, done := startBridge(t)
	attach(t, c, `{"project": "my-project", "target": "api"}`)

	setBreakpoints(c, "main.go", dap.SourceBreakpoint{Line: 12})
	expect[*dap.SetBreakpointsResponse](t, c)
	c.send(&dap.ConfigurationDoneRequest{Request: c.request("configurationDone")})
	expect[*dap.ConfigurationDoneResponse](t, c)

	id := svc.Breakpoints(apiTarget)[0].ID
	svc.Update(apiTarget, id, func(bp *types.Breakpoint) {
		bp.IsFinalState = true
		bp.Status = &types.StatusMessage{
			IsError:     true,
			RefersTo:    "BREAKPOINT_SOURCE_LOCATION",
			Description: &types.FormatMessage{Format: "No code found at line $0", Parameters: []string{"12"}},
		}
	})
	out := expect[*dap.OutputEvent](t, c)
	assert.Equal(t, "Snapshot at main.go:12 failed: No code found at line 12\n", out.Body.Output)
	changed := expect[*dap.BreakpointEvent](t, c)
	assert.False(t, changed.Body.Breakpoint.Verified)
	assert.Equal(t, "No code found at line 12", changed.Body.Breakpoint.Message)

	c.send(&dap.DisconnectRequest{Request: c.request("disconnect")})
	expect[*dap.DisconnectResponse](t, c)
	require.NoError(t, <-done)
}

func TestBridge_Errors(t *testing.T) {
	c, svc, done := startBridge(t)

	setBreakpoints(c, "main.go", dap.SourceBreakpoint{Line: 1})
	resp := expect[*dap.ErrorResponse](t, c)
	assert.False(t, resp.Success)
	assert.Equal(t, "setBreakpoints", resp.Command)
	assert.Contains(t, resp.Message, "before attach")

	c.send(&dap.LaunchRequest{Request: c.request("launch"), Arguments: json.RawMessage(`{}`)})
	resp = expect[*dap.ErrorResponse](t, c)
	assert.Contains(t, resp.Message, "attach")

	c.send(&dap.StackTraceRequest{Request: c.request("stackTrace")})
	resp = expect[*dap.ErrorResponse](t, c)
	assert.Contains(t, resp.Message, `unsupported request "stackTrace"`)

	c.send(&dap.AttachRequest{Request: c.request("attach"), Arguments: json.RawMessage(`{"target": "api"}`)})
	resp = expect[*dap.ErrorResponse](t, c)
	assert.Contains(t, resp.Message, "project")

	c.send(&dap.AttachRequest{Request: c.request("attach"), Arguments: json.RawMessage(`{"project": "my-project", "target": "v1"}`)})
	resp = expect[*dap.ErrorResponse](t, c)
	assert.False(t, resp.Success)

	c.send(&dap.DisconnectRequest{Request: c.request("disconnect")})
	expect[*dap.DisconnectResponse](t, c)
	require.NoError(t, <-done)
	assert.Empty(t, svc.Deleted())
}
