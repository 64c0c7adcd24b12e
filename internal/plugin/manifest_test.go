package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureManifestCreatesMinimalDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deps")

	m, err := EnsureManifest(dir, DependenciesPackageName)
	require.NoError(t, err)
	assert.FileExists(t, m.Path())
	assert.Empty(t, m.Requires())

	m.Require("acme/tool", "*")
	require.NoError(t, m.Save())

	again, err := EnsureManifest(dir, "ignored/name")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"acme/tool": "*"}, again.Requires())

	data, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "pantheon-systems/terminus-dependencies"`)
	assert.Contains(t, string(data), "\n    \"require\"")
}

func TestManifestKeepsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	doc := `{"name":"x/y","config":{"allow-plugins":{"a/b":true}},"require":{"php":">=8.1"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(doc), 0644))

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.True(t, m.RemoveRequire("php"))
	assert.False(t, m.RemoveRequire("php"))
	require.NoError(t, m.Save())

	reloaded, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Requires())
	data, err := os.ReadFile(reloaded.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"allow-plugins"`)
}

func TestManifestRepositories(t *testing.T) {
	t.Run("keyed by name", func(t *testing.T) {
		m, err := EnsureManifest(t.TempDir(), DependenciesPackageName)
		require.NoError(t, err)
		m.SetRepository("acme/a", Repository{Type: "path", URL: "/plugins/vendor/acme/a"})
		m.SetRepository("acme/b", Repository{Type: "path", URL: "/plugins/vendor/acme/b"})

		assert.True(t, m.RemoveRepository("acme/a", ""))
		assert.False(t, m.RemoveRepository("acme/a", ""))
		assert.True(t, m.RemoveRepository("other", "/plugins/vendor/acme/b"))
		assert.Empty(t, m.Repositories())
	})

	t.Run("array form", func(t *testing.T) {
		dir := t.TempDir()
		doc := `{"repositories":[{"type":"path","url":"/p/a"},{"type":"vcs","url":"https://example.com/b.git"}]}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(doc), 0644))

		m, err := LoadManifest(dir)
		require.NoError(t, err)
		require.Len(t, m.Repositories(), 2)
		assert.Equal(t, "vcs", m.Repositories()["1"].Type)

		assert.True(t, m.RemoveRepository("acme/a", "/p/a"))
		repos := m.Repositories()
		require.Len(t, repos, 1)
		assert.Equal(t, "https://example.com/b.git", repos["1"].URL)
	})
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte("{not json"), 0644))
	_, err = LoadManifest(dir)
	assert.ErrorContains(t, err, "failed to parse manifest")
}
