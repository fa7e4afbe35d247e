package debug

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ctagard/cdbg/internal/api"
	"github.com/ctagard/cdbg/pkg/types"
)

// fakeAPI is an in-memory debugger and projects service.
type fakeAPI struct {
	mu sync.Mutex

	projects    map[string]types.Project // by ID and by number string
	debuggees   []types.Debuggee
	breakpoints map[string]map[string]types.Breakpoint // debuggee -> id -> bp
	listed      []types.Breakpoint                     // returned by ListBreakpoints when set
	nextID      int

	// finalAfter marks a breakpoint final after this many gets.
	finalAfter int

	getCalls     []string
	listCalls    []types.ListOptions
	setCalls     []types.Breakpoint
	deleteCalls  []string
	projectCalls []string
	registered   []types.Debuggee
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{
		projects:    make(map[string]types.Project),
		breakpoints: make(map[string]map[string]types.Breakpoint),
	}
	f.addProject("my-project", 123456)
	return f
}

func (f *fakeAPI) addProject(id string, number int64) {
	p := types.Project{ProjectID: id, ProjectNumber: number}
	f.projects[id] = p
	f.projects[strconv.FormatInt(number, 10)] = p
}

func (f *fakeAPI) addBreakpoint(debuggeeID string, bp types.Breakpoint) {
	if f.breakpoints[debuggeeID] == nil {
		f.breakpoints[debuggeeID] = make(map[string]types.Breakpoint)
	}
	f.breakpoints[debuggeeID][bp.ID] = bp
}

func (f *fakeAPI) GetProject(_ context.Context, projectID string) (*types.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectCalls = append(f.projectCalls, projectID)
	p, ok := f.projects[projectID]
	if !ok {
		return nil, &api.Error{StatusCode: 404, Status: "NOT_FOUND", Message: "no project " + projectID}
	}
	return &p, nil
}

func (f *fakeAPI) ListDebuggees(_ context.Context, project string, _ bool) ([]types.Debuggee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Debuggee
	for _, d := range f.debuggees {
		if d.Project == project {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeAPI) RegisterDebuggee(_ context.Context, d types.Debuggee) (*types.Debuggee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, d)
	d.ID = fmt.Sprintf("gcp:%s:%s", d.Project, d.Uniquifier)
	f.debuggees = append(f.debuggees, d)
	return &d, nil
}

func (f *fakeAPI) GetBreakpoint(_ context.Context, debuggeeID, id string) (*types.Breakpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, id)
	bp, ok := f.breakpoints[debuggeeID][id]
	if !ok {
		return nil, &api.Error{StatusCode: 404, Status: "NOT_FOUND", Message: "breakpoint not found"}
	}
	if f.finalAfter > 0 && len(f.getCalls) >= f.finalAfter {
		bp.IsFinalState = true
	}
	return &bp, nil
}

func (f *fakeAPI) DeleteBreakpoint(_ context.Context, debuggeeID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	if _, ok := f.breakpoints[debuggeeID][id]; !ok {
		return &api.Error{StatusCode: 404, Status: "NOT_FOUND", Message: "breakpoint not found"}
	}
	delete(f.breakpoints[debuggeeID], id)
	return nil
}

func (f *fakeAPI) ListBreakpoints(_ context.Context, debuggeeID string, opts types.ListOptions) ([]types.Breakpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, opts)
	if f.listed != nil {
		return f.listed, nil
	}
	var out []types.Breakpoint
	for _, bp := range f.breakpoints[debuggeeID] {
		out = append(out, bp)
	}
	return out, nil
}

func (f *fakeAPI) SetBreakpoint(_ context.Context, debuggeeID string, bp types.Breakpoint) (*types.Breakpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, bp)
	f.nextID++
	bp.ID = fmt.Sprintf("%013x-abcd-%x", 0x1000000000000+f.nextID, f.nextID)
	if f.breakpoints[debuggeeID] == nil {
		f.breakpoints[debuggeeID] = make(map[string]types.Breakpoint)
	}
	f.breakpoints[debuggeeID][bp.ID] = bp
	return &bp, nil
}

func testDebuggee() *Debuggee {
	return &Debuggee{
		ProjectNumber: 123456,
		ProjectID:     "my-project",
		TargetID:      "gcp:123456:abc",
		Uniquifier:    "uniq-1",
		Labels:        map[string]string{},
	}
}
