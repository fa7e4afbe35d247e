// Package debugtest provides an in-memory debugger service for tests of
// the packages built on internal/debug.
package debugtest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/ctagard/cdbg/internal/api"
	"github.com/ctagard/cdbg/internal/debug"
	"github.com/ctagard/cdbg/pkg/types"
)

// Service implements debug.DebuggerAPI and debug.ProjectsAPI in memory.
type Service struct {
	mu sync.Mutex

	projects    map[string]types.Project
	debuggees   []types.Debuggee
	breakpoints map[string]map[string]types.Breakpoint
	order       map[string][]string
	nextID      int
	deleted     []string
}

var (
	_ debug.DebuggerAPI = (*Service)(nil)
	_ debug.ProjectsAPI = (*Service)(nil)
)

// New returns an empty service.
func New() *Service {
	return &Service{
		projects:    make(map[string]types.Project),
		breakpoints: make(map[string]map[string]types.Breakpoint),
		order:       make(map[string][]string),
	}
}

// AddProject registers a project under its ID and number.
func (s *Service) AddProject(id string, number int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := types.Project{ProjectID: id, ProjectNumber: number}
	s.projects[id] = p
	s.projects[strconv.FormatInt(number, 10)] = p
}

// AddDebuggee adds an active debuggee to the project with the given number.
func (s *Service) AddDebuggee(projectNumber int64, id string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debuggees = append(s.debuggees, types.Debuggee{
		ID:         id,
		Project:    strconv.FormatInt(projectNumber, 10),
		Uniquifier: "uniq-" + id,
		Labels:     labels,
	})
}

// Update applies fn to a stored breakpoint, for example to complete it.
func (s *Service) Update(debuggeeID, id string, fn func(*types.Breakpoint)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.breakpoints[debuggeeID][id]
	if !ok {
		return
	}
	fn(&bp)
	s.breakpoints[debuggeeID][id] = bp
}

// Breakpoints returns the stored breakpoints of a debuggee in creation
// order.
func (s *Service) Breakpoints(debuggeeID string) []types.Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Breakpoint
	for _, id := range s.order[debuggeeID] {
		if bp, ok := s.breakpoints[debuggeeID][id]; ok {
			out = append(out, bp)
		}
	}
	return out
}

// Deleted returns the IDs of deleted breakpoints in deletion order.
func (s *Service) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func notFound(msg string) error {
	return &api.Error{StatusCode: http.StatusNotFound, Status: "NOT_FOUND", Message: msg}
}

// GetProject implements debug.ProjectsAPI.
func (s *Service) GetProject(_ context.Context, projectID string) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, notFound("project " + projectID + " not found")
	}
	return &p, nil
}

// ListDebuggees implements debug.DebuggerAPI.
func (s *Service) ListDebuggees(_ context.Context, project string, includeInactive bool) ([]types.Debuggee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Debuggee
	for _, d := range s.debuggees {
		if d.Project == project && (includeInactive || !d.IsInactive) {
			out = append(out, d)
		}
	}
	return out, nil
}

// RegisterDebuggee implements debug.DebuggerAPI.
func (s *Service) RegisterDebuggee(_ context.Context, d types.Debuggee) (*types.Debuggee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = fmt.Sprintf("gcp:%s:%s", d.Project, d.Uniquifier)
	s.debuggees = append(s.debuggees, d)
	return &d, nil
}

// GetBreakpoint implements debug.DebuggerAPI.
func (s *Service) GetBreakpoint(_ context.Context, debuggeeID, id string) (*types.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.breakpoints[debuggeeID][id]
	if !ok {
		return nil, notFound("breakpoint " + id + " not found")
	}
	return &bp, nil
}

// DeleteBreakpoint implements debug.DebuggerAPI.
func (s *Service) DeleteBreakpoint(_ context.Context, debuggeeID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.breakpoints[debuggeeID][id]; !ok {
		return notFound("breakpoint " + id + " not found")
	}
	delete(s.breakpoints[debuggeeID], id)
	s.deleted = append(s.deleted, id)
	return nil
}

// ListBreakpoints implements debug.DebuggerAPI. Completed breakpoints are
// listed only with IncludeInactive.
func (s *Service) ListBreakpoints(_ context.Context, debuggeeID string, opts types.ListOptions) ([]types.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Breakpoint
	for _, id := range s.order[debuggeeID] {
		bp, ok := s.breakpoints[debuggeeID][id]
		if !ok || (bp.IsFinalState && !opts.IncludeInactive) {
			continue
		}
		if opts.RestrictToType != "" && bp.EffectiveAction() != opts.RestrictToType {
			continue
		}
		out = append(out, bp)
	}
	return out, nil
}

// SetBreakpoint implements debug.DebuggerAPI. IDs sort in creation order.
func (s *Service) SetBreakpoint(_ context.Context, debuggeeID string, bp types.Breakpoint) (*types.Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	bp.ID = fmt.Sprintf("%013x-%04x-%x", 0x1000000000000+s.nextID, s.nextID, s.nextID)
	bp.CreateTime = "2024-01-01T00:00:00Z"
	if s.breakpoints[debuggeeID] == nil {
		s.breakpoints[debuggeeID] = make(map[string]types.Breakpoint)
	}
	s.breakpoints[debuggeeID][bp.ID] = bp
	s.order[debuggeeID] = append(s.order[debuggeeID], bp.ID)
	return &bp, nil
}
