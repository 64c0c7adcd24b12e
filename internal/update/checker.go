package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	hversion "github.com/hashicorp/go-version"
	"terminus/internal/util"
)

const (
	githubAPIBase   = "https://api.github.com"
	defaultInterval = 24 * time.Hour
	CacheFileName   = "update_check.json"
	// DefaultRepository is the GitHub project releases are published under.
	DefaultRepository = "pantheon-systems/terminus"
)

// Cache is the on-disk record of the last release lookup.
type Cache struct {
	LastCheckTime      time.Time `json:"last_check_time"`
	LatestVersionFound string    `json:"latest_version_found"`
	ReleaseURL         string    `json:"release_url"`
}

func (c *Cache) freshAt(now time.Time, interval time.Duration) bool {
	return c != nil && c.LatestVersionFound != "" && now.Sub(c.LastCheckTime) < interval
}

// CheckResult holds the outcome of an update check.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
	IsNewer        bool
}

// Checker looks up the latest published release, caching the answer on disk.
type Checker struct {
	APIBase    string
	CachePath  string
	Interval   time.Duration
	HTTPClient *http.Client
}

// NewChecker returns a checker caching under cacheDir for a day.
func NewChecker(cacheDir string) *Checker {
	return &Checker{
		APIBase:    githubAPIBase,
		CachePath:  filepath.Join(cacheDir, CacheFileName),
		Interval:   defaultInterval,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// loadCache returns nil for a missing, empty or unreadable cache; a stale
// or corrupt cache only costs a lookup.
func (c *Checker) loadCache() *Cache {
	data, err := os.ReadFile(c.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			util.Log.Debugf("Could not read update cache %s: %v", c.CachePath, err)
		}
		return nil
	}
	cache := &Cache{}
	if err := json.Unmarshal(data, cache); err != nil {
		util.Log.Debugf("Ignoring malformed update cache %s: %v", c.CachePath, err)
		return nil
	}
	return cache
}

func (c *Checker) saveCache(cache *Cache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0750); err != nil {
		return fmt.Errorf("creating update cache directory: %w", err)
	}
	return os.WriteFile(c.CachePath, data, 0640)
}

// lookup asks the releases API for repo's latest tag.
func (c *Checker) lookup(ctx context.Context, repo string) (*Cache, error) {
	endpoint := strings.TrimSuffix(c.APIBase, "/") + "/repos/" + repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	util.Log.Debugf("Looking up latest release at %s", endpoint)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release lookup for %s: %w", repo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("release lookup for %s returned %s: %s", repo, resp.Status, strings.TrimSpace(string(snippet)))
	}

	var release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release for %s: %w", repo, err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("latest release of %s has no tag", repo)
	}
	return &Cache{LastCheckTime: time.Now(), LatestVersionFound: release.TagName, ReleaseURL: release.HTMLURL}, nil
}

// Check compares currentVersion against the latest release of repo, consulting the cache
// first. Development builds are never checked and yield a nil result.
func (c *Checker) Check(ctx context.Context, currentVersion, repo string) (*CheckResult, error) {
	if currentVersion == "" || currentVersion == "dev" {
		util.Log.Debug("Running development version or version unknown, skipping update check.")
		return nil, nil
	}
	if repo == "" {
		return nil, errors.New("repository slug cannot be empty for update check")
	}
	interval := c.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	latest := c.loadCache()
	if latest.freshAt(time.Now(), interval) {
		util.Log.Debugf("Using cached release %s from %s", latest.LatestVersionFound, latest.LastCheckTime.Format(time.RFC3339))
	} else {
		var err error
		if latest, err = c.lookup(ctx, repo); err != nil {
			return nil, err
		}
		if err := c.saveCache(latest); err != nil {
			util.Log.Debugf("Failed to write update cache: %v", err)
		}
	}

	newer, err := newerRelease(currentVersion, latest.LatestVersionFound)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		CurrentVersion: currentVersion,
		LatestVersion:  latest.LatestVersionFound,
		ReleaseURL:     latest.ReleaseURL,
		IsNewer:        newer,
	}, nil
}

// newerRelease reports whether tag is a later version than current.
// Either may carry a leading "v".
func newerRelease(current, tag string) (bool, error) {
	parse := func(raw string) (*hversion.Version, error) {
		v, err := hversion.NewVersion(strings.TrimPrefix(raw, "v"))
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", raw, err)
		}
		return v, nil
	}
	have, err := parse(current)
	if err != nil {
		return false, err
	}
	want, err := parse(tag)
	if err != nil {
		return false, err
	}
	return want.GreaterThan(have), nil
}
