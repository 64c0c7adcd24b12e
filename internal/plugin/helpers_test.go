package plugin

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeComposer mimics the filesystem effects of the composer commands the manager runs.
type fakeComposer struct {
	calls   [][]string
	fail    func(args []string) int
	types   map[string]string
	version string
	// keepRequire leaves the manifest's require entry behind on remove.
	keepRequire bool
}

func (f *fakeComposer) Run(ctx context.Context, args ...string) (*Result, error) {
	f.calls = append(f.calls, args)
	if f.fail != nil {
		if code := f.fail(args); code != 0 {
			return &Result{Args: args, ExitCode: code, Output: "composer failed"}, nil
		}
	}

	switch args[0] {
	case "--version":
		v := f.version
		if v == "" {
			v = "2.7.1"
		}
		return &Result{Args: args, Output: "Composer version " + v + " 2024-02-09 15:26:28"}, nil
	case "remove":
		dir, name := args[2], args[3]
		if err := os.RemoveAll(filepath.Join(dir, "vendor", filepath.FromSlash(name))); err != nil {
			return nil, err
		}
		if m, err := LoadManifest(dir); err == nil && !f.keepRequire {
			m.RemoveRequire(name)
			if err := m.Save(); err != nil {
				return nil, err
			}
		}
	case "require":
		dir, name := args[2], args[3]
		pkgType := PackageType
		if t, ok := f.types[name]; ok {
			pkgType = t
		}
		if err := writePackage(dir, name, pkgType, "1.0.0"); err != nil {
			return nil, err
		}
		m, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		m.Require(name, "^1")
		if err := m.Save(); err != nil {
			return nil, err
		}
	case "update":
		dir := args[2]
		m, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0)
		for name := range m.Requires() {
			names = append(names, name)
		}
		sort.Strings(names)
		installed := filepath.Join(dir, "vendor", "composer", "installed.json")
		if err := os.MkdirAll(filepath.Dir(installed), 0755); err != nil {
			return nil, err
		}
		data, _ := json.Marshal(names)
		if err := os.WriteFile(installed, data, 0644); err != nil {
			return nil, err
		}
	}
	return &Result{Args: args}, nil
}

// callsMatching returns calls whose arguments contain every token.
func (f *fakeComposer) callsMatching(tokens ...string) [][]string {
	var out [][]string
	for _, call := range f.calls {
		joined := " " + strings.Join(call, " ") + " "
		match := true
		for _, tok := range tokens {
			if !strings.Contains(joined, " "+tok+" ") {
				match = false
				break
			}
		}
		if match {
			out = append(out, call)
		}
	}
	return out
}

func writePackage(dir, name, pkgType, version string) error {
	pkgDir := filepath.Join(dir, "vendor", filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Join(pkgDir, "src"), 0755); err != nil {
		return err
	}
	manifest, _ := json.Marshal(map[string]string{
		"name":        name,
		"type":        pkgType,
		"version":     version,
		"description": "Test package " + name,
	})
	if err := os.WriteFile(filepath.Join(pkgDir, ManifestFileName), manifest, 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(pkgDir, "src", "Command.php"), []byte("<?php // "+name+"\n"), 0644)
}

type fixture struct {
	root    string
	opts    Options
	runner  *fakeComposer
	manager *Manager
}

func newFixture(t *testing.T, installed ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		PluginsDir:      filepath.Join(root, "plugins"),
		DependenciesDir: filepath.Join(root, "dependencies"),
		BackupDir:       filepath.Join(root, "backups"),
		ComposerBin:     "composer",
	}

	plugins, err := EnsureManifest(opts.PluginsDir, PluginsPackageName)
	require.NoError(t, err)
	for _, name := range installed {
		require.NoError(t, writePackage(opts.PluginsDir, name, PackageType, "1.2.3"))
		plugins.Require(name, "^1")
	}
	require.NoError(t, plugins.Save())

	deps, err := EnsureManifest(opts.DependenciesDir, DependenciesPackageName)
	require.NoError(t, err)
	deps.Require("pantheon-systems/terminus", "*")
	require.NoError(t, deps.Save())

	runner := &fakeComposer{}
	m := NewManager(opts, runner)
	m.lookPath = func(string) (string, error) { return "/usr/bin/composer", nil }
	return &fixture{root: root, opts: opts, runner: runner, manager: m}
}

// snapshot records every path under root with its mode and content (or link target).
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = "link:" + target
		case info.IsDir():
			out[rel] = "dir:" + info.Mode().Perm().String()
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[rel] = info.Mode().Perm().String() + ":" + string(data)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
