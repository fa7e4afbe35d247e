package debug

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ctagard/cdbg/internal/errors"
	"github.com/ctagard/cdbg/pkg/types"
)

// ProjectsAPI looks projects up by ID. Project numbers are accepted in
// place of IDs.
type ProjectsAPI interface {
	GetProject(ctx context.Context, projectID string) (*types.Project, error)
}

// ProjectCache memoizes project ID <-> number lookups for the life of the
// process. Project identifiers never change, so entries are never evicted.
// Concurrent lookups of the same key share one remote call.
type ProjectCache struct {
	api    ProjectsAPI
	logger *slog.Logger

	mu       sync.RWMutex
	idToNum  map[string]int64
	numToID  map[int64]string
	inflight singleflight.Group
}

// NewProjectCache creates an empty cache backed by api.
func NewProjectCache(api ProjectsAPI, logger *slog.Logger) *ProjectCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectCache{
		api:     api,
		logger:  logger,
		idToNum: make(map[string]int64),
		numToID: make(map[int64]string),
	}
}

// ProjectNumber returns the number of the project with the given ID.
func (c *ProjectCache) ProjectNumber(ctx context.Context, projectID string) (int64, error) {
	if c == nil || c.api == nil {
		return 0, errors.NoEndpoint("projects API")
	}
	c.mu.RLock()
	n, ok := c.idToNum[projectID]
	c.mu.RUnlock()
	if ok {
		return n, nil
	}

	v, err, _ := c.inflight.Do(projectID, func() (interface{}, error) {
		project, err := c.api.GetProject(ctx, projectID)
		if err != nil {
			return nil, errors.RemoteFailure("get project "+projectID, err)
		}
		c.mu.Lock()
		c.idToNum[project.ProjectID] = project.ProjectNumber
		c.numToID[project.ProjectNumber] = project.ProjectID
		c.mu.Unlock()
		return project.ProjectNumber, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ProjectID returns the ID of the project with the given number.
//
// On a miss the number is looked up as if it were an ID, which the
// projects service allows. If that lookup succeeds but reports a different
// number, the number itself is returned as the ID and a warning is logged.
func (c *ProjectCache) ProjectID(ctx context.Context, projectNumber int64) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.NoEndpoint("projects API")
	}
	c.mu.RLock()
	id, ok := c.numToID[projectNumber]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	asID := strconv.FormatInt(projectNumber, 10)
	if _, err := c.ProjectNumber(ctx, asID); err != nil {
		return "", err
	}

	c.mu.RLock()
	id, ok = c.numToID[projectNumber]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("project lookup did not return the requested number; using the number as the project ID",
			"projectNumber", projectNumber)
		return asID, nil
	}
	return id, nil
}
