package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

const (
	ManifestFileName        = "composer.json"
	PluginsPackageName      = "pantheon-systems/terminus-plugins"
	DependenciesPackageName = "pantheon-systems/terminus-dependencies"
)

// Repository is a composer repository entry.
type Repository struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Manifest is a composer.json document. Unknown keys are kept as-is.
type Manifest struct {
	path string
	doc  map[string]json.RawMessage
}

// LoadManifest reads <dir>/composer.json.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &Manifest{path: path, doc: doc}, nil
}

// EnsureManifest loads <dir>/composer.json, creating the directory and a minimal manifest
// named packageName when absent.
func EnsureManifest(dir, packageName string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(path); err == nil {
		return LoadManifest(dir)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check manifest %s: %w", path, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	m := &Manifest{path: path, doc: make(map[string]json.RawMessage)}
	m.set("name", packageName)
	m.set("type", "project")
	m.set("require", map[string]string{})
	m.set("minimum-stability", "dev")
	m.set("prefer-stable", true)
	if err := m.Save(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) Path() string {
	return m.path
}

// Requires returns the "require" section.
func (m *Manifest) Requires() map[string]string {
	requires := make(map[string]string)
	if raw, ok := m.doc["require"]; ok {
		_ = json.Unmarshal(raw, &requires)
	}
	return requires
}

func (m *Manifest) Require(name, constraint string) {
	requires := m.Requires()
	requires[name] = constraint
	m.set("require", requires)
}

// RemoveRequire drops name from "require" and reports whether it was present.
func (m *Manifest) RemoveRequire(name string) bool {
	requires := m.Requires()
	if _, ok := requires[name]; !ok {
		return false
	}
	delete(requires, name)
	m.set("require", requires)
	return true
}

// Repositories returns the "repositories" section keyed by name. Entries written as a JSON
// array are keyed by their index.
func (m *Manifest) Repositories() map[string]Repository {
	repos := make(map[string]Repository)
	raw, ok := m.doc["repositories"]
	if !ok {
		return repos
	}
	if err := json.Unmarshal(raw, &repos); err == nil {
		return repos
	}
	var list []Repository
	if err := json.Unmarshal(raw, &list); err == nil {
		for i, r := range list {
			repos[strconv.Itoa(i)] = r
		}
	}
	return repos
}

func (m *Manifest) SetRepository(name string, repo Repository) {
	repos := m.Repositories()
	repos[name] = repo
	m.set("repositories", repos)
}

// RemoveRepository drops the repository registered under name, or any repository whose URL
// equals url when url is non-empty. It reports whether anything was removed.
func (m *Manifest) RemoveRepository(name, url string) bool {
	repos := m.Repositories()
	removed := false
	keys := make([]string, 0, len(repos))
	for k := range repos {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == name || (url != "" && repos[k].URL == url) {
			delete(repos, k)
			removed = true
		}
	}
	if removed {
		m.set("repositories", repos)
	}
	return removed
}

// Save writes the manifest back with composer's four-space indentation.
func (m *Manifest) Save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(m.doc); err != nil {
		return fmt.Errorf("failed to encode manifest %s: %w", m.path, err)
	}
	if err := os.WriteFile(m.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", m.path, err)
	}
	return nil
}

func (m *Manifest) set(key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	m.doc[key] = raw
}
