// Package api is an HTTP client for the cloud debugger REST API and the
// resource manager projects API.
//
// The client speaks JSON over HTTPS, authenticates with a bearer token and
// converts the services' error envelope into *Error. Every call is traced
// and counted through OpenTelemetry; without a configured exporter the
// global no-op providers make this free.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ctagard/cdbg/pkg/types"
)

const instrumentationName = "github.com/ctagard/cdbg/internal/api"

const (
	// DefaultDebuggerEndpoint is the root URL of the debugger service.
	DefaultDebuggerEndpoint = "https://clouddebugger.googleapis.com"
	// DefaultResourceManagerEndpoint is the root URL of the projects service.
	DefaultResourceManagerEndpoint = "https://cloudresourcemanager.googleapis.com"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// DebuggerEndpoint is the root URL of the debugger service.
	DebuggerEndpoint string

	// ResourceManagerEndpoint is the root URL of the resource manager.
	ResourceManagerEndpoint string

	// AccessToken is sent as a bearer token. Requests are sent
	// unauthenticated when it is empty.
	AccessToken string

	// ClientVersion identifies this client to the debugger service.
	ClientVersion string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration

	// Logger receives a debug record per request. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client calls the debugger and resource manager APIs.
// All methods are safe for concurrent use.
type Client struct {
	debuggerURL   string
	projectsURL   string
	token         string
	clientVersion string
	client        *http.Client
	logger        *slog.Logger

	tracer   trace.Tracer
	requests metric.Int64Counter
	failures metric.Int64Counter
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.DebuggerEndpoint == "" {
		cfg.DebuggerEndpoint = DefaultDebuggerEndpoint
	}
	if cfg.ResourceManagerEndpoint == "" {
		cfg.ResourceManagerEndpoint = DefaultResourceManagerEndpoint
	}
	if cfg.ClientVersion == "" {
		return nil, fmt.Errorf("api: ClientVersion is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.GetMeterProvider().Meter(instrumentationName)
	requests, err := meter.Int64Counter("cdbg.api.requests",
		metric.WithDescription("Remote API calls issued, by operation."))
	if err != nil {
		return nil, fmt.Errorf("api: create request counter: %w", err)
	}
	failures, err := meter.Int64Counter("cdbg.api.failures",
		metric.WithDescription("Remote API calls that failed, by operation."))
	if err != nil {
		return nil, fmt.Errorf("api: create failure counter: %w", err)
	}

	return &Client{
		debuggerURL:   strings.TrimRight(cfg.DebuggerEndpoint, "/"),
		projectsURL:   strings.TrimRight(cfg.ResourceManagerEndpoint, "/"),
		token:         cfg.AccessToken,
		clientVersion: cfg.ClientVersion,
		client:        httpClient,
		logger:        logger,
		tracer:        otel.Tracer(instrumentationName),
		requests:      requests,
		failures:      failures,
	}, nil
}

// ---------------------------------------------------------------------------
// Debuggees
// ---------------------------------------------------------------------------

type listDebuggeesResponse struct {
	Debuggees []types.Debuggee `json:"debuggees"`
}

// ListDebuggees lists the debug targets registered for a project number.
func (c *Client) ListDebuggees(ctx context.Context, project string, includeInactive bool) ([]types.Debuggee, error) {
	params := url.Values{}
	params.Set("project", project)
	params.Set("includeInactive", strconv.FormatBool(includeInactive))
	params.Set("clientVersion", c.clientVersion)

	var resp listDebuggeesResponse
	if err := c.do(ctx, "debuggees.list", http.MethodGet, c.debuggerURL+"/v2/debugger/debuggees?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Debuggees, nil
}

type registerDebuggeeBody struct {
	Debuggee types.Debuggee `json:"debuggee"`
}

// RegisterDebuggee registers a debug target with the controller API.
func (c *Client) RegisterDebuggee(ctx context.Context, debuggee types.Debuggee) (*types.Debuggee, error) {
	var resp registerDebuggeeBody
	if err := c.do(ctx, "debuggees.register", http.MethodPost, c.debuggerURL+"/v2/controller/debuggees/register", registerDebuggeeBody{Debuggee: debuggee}, &resp); err != nil {
		return nil, err
	}
	return &resp.Debuggee, nil
}

// ---------------------------------------------------------------------------
// Breakpoints
// ---------------------------------------------------------------------------

type breakpointResponse struct {
	Breakpoint types.Breakpoint `json:"breakpoint"`
}

type listBreakpointsResponse struct {
	Breakpoints []types.Breakpoint `json:"breakpoints"`
}

func (c *Client) breakpointsURL(debuggeeID string) string {
	return c.debuggerURL + "/v2/debugger/debuggees/" + url.PathEscape(debuggeeID) + "/breakpoints"
}

func (c *Client) versionQuery() string {
	return "clientVersion=" + url.QueryEscape(c.clientVersion)
}

// GetBreakpoint returns the full breakpoint for an ID.
func (c *Client) GetBreakpoint(ctx context.Context, debuggeeID, breakpointID string) (*types.Breakpoint, error) {
	u := c.breakpointsURL(debuggeeID) + "/" + url.PathEscape(breakpointID) + "?" + c.versionQuery()
	var resp breakpointResponse
	if err := c.do(ctx, "breakpoints.get", http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Breakpoint, nil
}

// DeleteBreakpoint deletes a breakpoint.
func (c *Client) DeleteBreakpoint(ctx context.Context, debuggeeID, breakpointID string) error {
	u := c.breakpointsURL(debuggeeID) + "/" + url.PathEscape(breakpointID) + "?" + c.versionQuery()
	return c.do(ctx, "breakpoints.delete", http.MethodDelete, u, nil, nil)
}

// ListBreakpoints lists the breakpoints of a debuggee. The action filter of
// opts is not sent; callers apply it to the result.
func (c *Client) ListBreakpoints(ctx context.Context, debuggeeID string, opts types.ListOptions) ([]types.Breakpoint, error) {
	params := url.Values{}
	params.Set("includeAllUsers", strconv.FormatBool(opts.IncludeAllUsers))
	params.Set("includeInactive", strconv.FormatBool(opts.IncludeInactive))
	params.Set("clientVersion", c.clientVersion)

	var resp listBreakpointsResponse
	if err := c.do(ctx, "breakpoints.list", http.MethodGet, c.breakpointsURL(debuggeeID)+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Breakpoints, nil
}

// SetBreakpoint creates a breakpoint on a debuggee.
func (c *Client) SetBreakpoint(ctx context.Context, debuggeeID string, bp types.Breakpoint) (*types.Breakpoint, error) {
	u := c.breakpointsURL(debuggeeID) + "/set?" + c.versionQuery()
	var resp breakpointResponse
	if err := c.do(ctx, "breakpoints.set", http.MethodPost, u, bp, &resp); err != nil {
		return nil, err
	}
	return &resp.Breakpoint, nil
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// GetProject looks a project up by ID. The service also accepts the
// project number in place of the ID.
func (c *Client) GetProject(ctx context.Context, projectID string) (*types.Project, error) {
	var resp types.Project
	if err := c.do(ctx, "projects.get", http.MethodGet, c.projectsURL+"/v1beta1/projects/"+url.PathEscape(projectID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// errorEnvelope is the services' standard error response.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, rawURL string, body, dest any) (err error) {
	ctx, span := c.tracer.Start(ctx, "cdbg.api/"+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("cdbg.operation", op),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
		}
		span.End()
	}()
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("api: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.clientVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("api request",
		"operation", op,
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	return handleResponse(req, resp, dest)
}

func handleResponse(req *http.Request, resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(req, resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(req *http.Request, statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode, Method: req.Method, Path: req.URL.Path}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Status = envelope.Error.Status
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(statusCode)
		}
	}

	return apiErr
}
