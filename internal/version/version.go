// Package version provides the cdbg version, the client version string sent
// to the debugger service, and a release check.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// Version is the current version of cdbg
	Version = "0.3.0"

	// GitHubRepo is the repository path
	GitHubRepo = "ctagard/cdbg"

	// GitHubAPIURL is the GitHub API endpoint for latest release
	GitHubAPIURL = "https://api.github.com/repos/%s/releases/latest"
)

// ClientVersion identifies this client to the debugger service, both as
// the clientVersion parameter and as the agent version of debuggees it
// registers.
func ClientVersion() string {
	return "cdbg/" + Version
}

// UpdateInfo contains information about available updates
type UpdateInfo struct {
	CurrentVersion  string    `json:"currentVersion"`
	LatestVersion   string    `json:"latestVersion,omitempty"`
	UpdateAvailable bool      `json:"updateAvailable"`
	ReleaseURL      string    `json:"releaseUrl,omitempty"`
	CheckedAt       time.Time `json:"checkedAt"`
	Error           string    `json:"error,omitempty"`
}

// UpdateMessage returns a human-readable message about the update, or ""
// when there is nothing to report.
func (u *UpdateInfo) UpdateMessage() string {
	if u.Error != "" || !u.UpdateAvailable {
		return ""
	}
	return fmt.Sprintf("A new version of cdbg is available: v%s (current: v%s). See %s",
		u.LatestVersion, u.CurrentVersion, u.ReleaseURL)
}

// Checker looks up the latest release once and caches the answer.
type Checker struct {
	// URL overrides the release endpoint. Defaults to the GitHub API.
	URL    string
	Client *http.Client

	mu         sync.RWMutex
	updateInfo *UpdateInfo
}

// NewChecker creates a new version checker
func NewChecker() *Checker {
	return &Checker{
		URL:    fmt.Sprintf(GitHubAPIURL, GitHubRepo),
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckForUpdates asks the release endpoint for a newer version. Failures
// are reported in UpdateInfo.Error rather than returned.
func (c *Checker) CheckForUpdates(ctx context.Context) *UpdateInfo {
	info := &UpdateInfo{CurrentVersion: Version, CheckedAt: time.Now()}
	if err := c.fetch(ctx, info); err != nil {
		info.Error = err.Error()
	}
	c.mu.Lock()
	c.updateInfo = info
	c.mu.Unlock()
	return info
}

func (c *Checker) fetch(ctx context.Context, info *UpdateInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", ClientVersion())

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("release endpoint returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	info.LatestVersion = strings.TrimPrefix(release.TagName, "v")
	info.ReleaseURL = release.HTMLURL
	info.UpdateAvailable = compareVersions(Version, info.LatestVersion) < 0
	return nil
}

// GetUpdateInfo returns the cached update info, nil before the first check.
func (c *Checker) GetUpdateInfo() *UpdateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updateInfo
}

// compareVersions compares two semver strings
// Returns -1 if v1 < v2, 0 if equal, 1 if v1 > v2
func compareVersions(v1, v2 string) int {
	a, b := parseVersion(v1), parseVersion(v2)
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// parseVersion reads major.minor.patch, ignoring a "v" prefix and any
// pre-release suffix. Missing parts are zero.
func parseVersion(v string) [3]int {
	var out [3]int
	parts := strings.SplitN(strings.TrimPrefix(v, "v"), ".", 3)
	for i, p := range parts {
		p = strings.SplitN(p, "-", 2)[0]
		fmt.Sscanf(p, "%d", &out[i])
	}
	return out
}
