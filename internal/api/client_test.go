package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/cdbg/pkg/types"
)

// mockServer creates an httptest server that mimics the debugger and
// projects APIs. Handlers are keyed by "METHOD /path" patterns.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		DebuggerEndpoint:        serverURL,
		ResourceManagerEndpoint: serverURL,
		AccessToken:             "test-token",
		ClientVersion:           "cdbg/test",
		Timeout:                 5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresClientVersion(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestListDebuggees(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v2/debugger/debuggees": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "12345", r.URL.Query().Get("project"))
			assert.Equal(t, "true", r.URL.Query().Get("includeInactive"))
			assert.Equal(t, "cdbg/test", r.URL.Query().Get("clientVersion"))
			writeJSON(w, http.StatusOK, map[string]any{
				"debuggees": []map[string]any{
					{"id": "d-1", "project": "12345", "labels": map[string]string{"module": "api", "version": "v1"}},
					{"id": "d-2", "project": "12345", "description": "worker"},
				},
			})
		},
	})

	debuggees, err := newTestClient(t, srv.URL).ListDebuggees(context.Background(), "12345", true)
	require.NoError(t, err)
	require.Len(t, debuggees, 2)
	assert.Equal(t, "d-1", debuggees[0].ID)
	assert.Equal(t, "api", debuggees[0].Labels["module"])
	assert.Equal(t, "worker", debuggees[1].Description)
}

func TestSetBreakpoint_SendsBody(t *testing.T) {
	var received types.Breakpoint
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v2/debugger/debuggees/d-1/breakpoints/set": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			received.ID = "1234567890123-abcd-1"
			writeJSON(w, http.StatusOK, map[string]any{"breakpoint": received})
		},
	})

	bp, err := newTestClient(t, srv.URL).SetBreakpoint(context.Background(), "d-1", types.Breakpoint{
		Action:           types.ActionLog,
		Location:         &types.SourceLocation{Path: "main.go", Line: 10},
		LogMessageFormat: "x=$0",
		Expressions:      []string{"x"},
		LogLevel:         types.LogLevelWarning,
	})
	require.NoError(t, err)
	assert.Equal(t, "1234567890123-abcd-1", bp.ID)
	assert.Equal(t, types.ActionLog, received.Action)
	assert.Equal(t, []string{"x"}, received.Expressions)
	assert.Equal(t, types.LogLevelWarning, received.LogLevel)
}

func TestListBreakpoints_Query(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v2/debugger/debuggees/d-1/breakpoints": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "true", r.URL.Query().Get("includeAllUsers"))
			assert.Equal(t, "false", r.URL.Query().Get("includeInactive"))
			writeJSON(w, http.StatusOK, map[string]any{
				"breakpoints": []map[string]any{{"id": "a"}, {"id": "b", "action": "LOG"}},
			})
		},
	})

	bps, err := newTestClient(t, srv.URL).ListBreakpoints(context.Background(), "d-1", types.ListOptions{IncludeAllUsers: true})
	require.NoError(t, err)
	require.Len(t, bps, 2)
	assert.Equal(t, types.ActionCapture, bps[0].EffectiveAction())
	assert.Equal(t, types.ActionLog, bps[1].EffectiveAction())
}

func TestDeleteBreakpoint_EmptyResponse(t *testing.T) {
	deleted := false
	srv := mockServer(t, map[string]http.HandlerFunc{
		"DELETE /v2/debugger/debuggees/d-1/breakpoints/bp-1": func(w http.ResponseWriter, r *http.Request) {
			deleted = true
			writeJSON(w, http.StatusOK, map[string]any{})
		},
	})

	require.NoError(t, newTestClient(t, srv.URL).DeleteBreakpoint(context.Background(), "d-1", "bp-1"))
	assert.True(t, deleted)
}

func TestGetProject_StringNumber(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1beta1/projects/my-project": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"projectId": "my-project", "projectNumber": "987654321"})
		},
	})

	p, err := newTestClient(t, srv.URL).GetProject(context.Background(), "my-project")
	require.NoError(t, err)
	assert.Equal(t, "my-project", p.ProjectID)
	assert.Equal(t, int64(987654321), p.ProjectNumber)
}

func TestErrorEnvelope(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v2/debugger/debuggees/d-1/breakpoints/missing": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"code": 404, "message": "breakpoint not found", "status": "NOT_FOUND"},
			})
		},
		"GET /v1beta1/projects/secret": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		},
	})
	client := newTestClient(t, srv.URL)

	_, err := client.GetBreakpoint(context.Background(), "d-1", "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Status)
	assert.Equal(t, "breakpoint not found", apiErr.Message)
	assert.Equal(t, 404, apiErr.HTTPStatus())

	_, err = client.GetProject(context.Background(), "secret")
	assert.True(t, IsPermissionDenied(err))
	assert.False(t, IsUnauthenticated(err))
}
