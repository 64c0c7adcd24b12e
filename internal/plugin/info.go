package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"terminus/internal/util"
)

// PackageType is the composer "type" every plugin declares.
const PackageType = "terminus-plugin"

const installedPattern = "vendor/*/*/composer.json"

// Plugin is an installed plugin package.
type Plugin struct {
	Name        string `json:"name"        yaml:"name"`
	Version     string `json:"version"     yaml:"version"`
	Description string `json:"description" yaml:"description"`
	Path        string `json:"path"        yaml:"path"`
	GitRevision string `json:"git_revision,omitempty" yaml:"git_revision,omitempty"`
}

// ShortName is the package part of the composer name.
func (p *Plugin) ShortName() string {
	if i := strings.LastIndex(p.Name, "/"); i >= 0 {
		return p.Name[i+1:]
	}
	return p.Name
}

// Matches reports whether project names this plugin, by full or short name.
func (p *Plugin) Matches(project string) bool {
	project = strings.ToLower(strings.TrimSpace(project))
	return project == strings.ToLower(p.Name) || project == strings.ToLower(p.ShortName())
}

type packageFile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Discover scans pluginsDir for installed plugin packages. A missing directory means no
// plugins are installed.
func Discover(pluginsDir string) ([]*Plugin, error) {
	if _, err := os.Stat(pluginsDir); err != nil {
		if os.IsNotExist(err) {
			util.Log.Debugf("Plugins directory %s does not exist, no plugins installed.", pluginsDir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check plugins directory %s: %w", pluginsDir, err)
	}

	matches, err := doublestar.Glob(os.DirFS(pluginsDir), installedPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugins directory %s: %w", pluginsDir, err)
	}
	sort.Strings(matches)

	plugins := make([]*Plugin, 0, len(matches))
	for _, match := range matches {
		manifestPath := filepath.Join(pluginsDir, filepath.FromSlash(match))
		p, err := readPlugin(manifestPath)
		if err != nil {
			util.Log.Warnf("Skipping unreadable package at %s: %v", filepath.Dir(manifestPath), err)
			continue
		}
		if p == nil {
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func readPlugin(manifestPath string) (*Plugin, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	var pkg packageFile
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", manifestPath, err)
	}
	if pkg.Type != PackageType {
		return nil, nil
	}

	dir := filepath.Dir(manifestPath)
	if pkg.Name == "" {
		// vendor/<vendor>/<package>/composer.json
		pkg.Name = filepath.Base(filepath.Dir(dir)) + "/" + filepath.Base(dir)
	}
	return &Plugin{
		Name:        pkg.Name,
		Version:     pkg.Version,
		Description: pkg.Description,
		Path:        dir,
		GitRevision: gitRevision(dir),
	}, nil
}

// gitRevision returns the abbreviated HEAD of a plugin installed from a git checkout.
func gitRevision(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			util.Log.Debugf("Could not open %s as git repository: %v", dir, err)
		}
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		util.Log.Debugf("Could not resolve HEAD of %s: %v", dir, err)
		return ""
	}
	return head.Hash().String()[:7]
}

// Find resolves an installed plugin by full or short name. A full name always wins; a
// short name shared by several vendors is rejected with ErrAmbiguousProject.
func Find(pluginsDir, project string) (*Plugin, error) {
	plugins, err := Discover(pluginsDir)
	if err != nil {
		return nil, err
	}
	var matches []*Plugin
	for _, p := range plugins {
		if !p.Matches(project) {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(project), p.Name) {
			return p, nil
		}
		matches = append(matches, p)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", project, ErrNotInstalled)
	case 1:
		return matches[0], nil
	}
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, p.Name)
	}
	return nil, fmt.Errorf("%s matches %s: %w", project, strings.Join(names, ", "), ErrAmbiguousProject)
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
