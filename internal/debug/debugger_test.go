package debug

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/pkg/types"
)

func newTestDebugger(t *testing.T, f *fakeAPI) *Debugger {
	t.Helper()
	d, err := NewDebugger(context.Background(), f, NewProjectCache(f, nil), "my-project", Options{ClientVersion: "cdbg/test"})
	require.NoError(t, err)
	return d
}

func TestNewDebugger_RequiresEndpoints(t *testing.T) {
	ctx := context.Background()
	f := newFakeAPI()

	_, err := NewDebugger(ctx, nil, NewProjectCache(f, nil), "my-project", Options{})
	assert.True(t, errors.HasCode(err, errors.CodeNoEndpoint))

	_, err = NewDebugger(ctx, f, nil, "my-project", Options{})
	assert.True(t, errors.HasCode(err, errors.CodeNoEndpoint))

	_, err = NewDebugger(ctx, f, NewProjectCache(nil, nil), "my-project", Options{})
	assert.True(t, errors.HasCode(err, errors.CodeNoEndpoint))

	_, err = NewDebugger(ctx, f, NewProjectCache(f, nil), "", Options{})
	assert.True(t, errors.HasCode(err, errors.CodeMissingParameter))
}

func TestNewDebugger_UnknownProject(t *testing.T) {
	f := newFakeAPI()
	_, err := NewDebugger(context.Background(), f, NewProjectCache(f, nil), "missing", Options{})
	assert.True(t, errors.HasCode(err, errors.CodeRemoteFailure))
}

func TestDebugger_ListDebuggees(t *testing.T) {
	f := newFakeAPI()
	f.debuggees = []types.Debuggee{
		{ID: "gcp:123456:a", Project: "123456", Uniquifier: "u-a", Labels: map[string]string{"module": "api"}},
		{ID: "gcp:999:b", Project: "999"},
	}
	d := newTestDebugger(t, f)
	assert.Equal(t, int64(123456), d.ProjectNumber())

	got, err := d.ListDebuggees(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gcp:123456:a", got[0].TargetID)
	assert.Equal(t, "my-project", got[0].ProjectID)
	assert.Equal(t, int64(123456), got[0].ProjectNumber)
	assert.Equal(t, "u-a", got[0].Uniquifier)
	assert.Equal(t, "api-default", got[0].Name())
}

func TestDebugger_FindDebuggee(t *testing.T) {
	f := newFakeAPI()
	f.debuggees = []types.Debuggee{
		{ID: "gcp:123456:a", Project: "123456", Labels: map[string]string{"module": "api", "version": "v1"}},
		{ID: "gcp:123456:b", Project: "123456", Description: "worker pool"},
	}
	d := newTestDebugger(t, f)
	ctx := context.Background()

	got, err := d.FindDebuggee(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, "gcp:123456:a", got.TargetID)

	got, err = d.FindDebuggee(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, "gcp:123456:b", got.TargetID)

	got, err = d.FindDebuggee(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "gcp:123456:b", got.TargetID)
}

func TestDebugger_ResolveTarget(t *testing.T) {
	f := newFakeAPI()
	f.debuggees = []types.Debuggee{
		{ID: "gcp:123456:a", Project: "123456", Labels: map[string]string{"module": "api", "version": "v1"}},
		{ID: "gcp:123456:b", Project: "123456", Labels: map[string]string{"module": "worker", "version": "v1"}},
	}
	d := newTestDebugger(t, f)
	ctx := context.Background()

	for _, inactive := range []bool{false, true} {
		got, err := d.ResolveTarget(ctx, "worker", inactive)
		require.NoError(t, err)
		assert.Equal(t, "gcp:123456:b", got.TargetID)

		_, err = d.ResolveTarget(ctx, "", inactive)
		assert.True(t, errors.HasCode(err, errors.CodeMultipleDebuggees))
	}
}

func TestDebugger_RegisterDebuggee(t *testing.T) {
	f := newFakeAPI()
	d := newTestDebugger(t, f)

	got, err := d.RegisterDebuggee(context.Background(), "test target", "", "")
	require.NoError(t, err)
	require.Len(t, f.registered, 1)

	sent := f.registered[0]
	assert.Equal(t, "123456", sent.Project)
	assert.Equal(t, "test target", sent.Description)
	assert.Equal(t, "cdbg/test", sent.AgentVersion)
	_, err = uuid.Parse(sent.Uniquifier)
	assert.NoError(t, err)

	assert.Equal(t, sent.Uniquifier, got.Uniquifier)
	assert.Equal(t, "my-project", got.ProjectID)

	target := d.Target(got)
	assert.Same(t, got, target.Debuggee())
}

func TestProjectCache_Lookups(t *testing.T) {
	f := newFakeAPI()
	cache := NewProjectCache(f, nil)
	ctx := context.Background()

	n, err := cache.ProjectNumber(ctx, "my-project")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), n)

	id, err := cache.ProjectID(ctx, 123456)
	require.NoError(t, err)
	assert.Equal(t, "my-project", id)

	_, err = cache.ProjectNumber(ctx, "my-project")
	require.NoError(t, err)
	assert.Equal(t, []string{"my-project"}, f.projectCalls)
}

func TestProjectCache_ReverseLookupMiss(t *testing.T) {
	f := newFakeAPI()
	cache := NewProjectCache(f, nil)
	ctx := context.Background()

	id, err := cache.ProjectID(ctx, 123456)
	require.NoError(t, err)
	assert.Equal(t, "my-project", id)
	assert.Equal(t, []string{"123456"}, f.projectCalls)

	// The service answers for 555 with a different project, so the number
	// stands in for the ID.
	f.projects["555"] = types.Project{ProjectID: "renumbered", ProjectNumber: 556}
	id, err = cache.ProjectID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, "555", id)

	_, err = cache.ProjectID(ctx, 42)
	assert.True(t, errors.HasCode(err, errors.CodeRemoteFailure))
}

func TestProjectCache_ConcurrentLookups(t *testing.T) {
	f := newFakeAPI()
	cache := NewProjectCache(f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := cache.ProjectNumber(context.Background(), "my-project")
			assert.NoError(t, err)
			assert.Equal(t, int64(123456), n)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, len(f.projectCalls), 16)
}
