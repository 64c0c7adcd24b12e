package plugin

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverMissingDirectory(t *testing.T) {
	plugins, err := Discover(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

func TestFindByFullAndShortName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writePackage(dir, "acme/Terminus-Build-Tools-Plugin", PackageType, "2.0.0"))

	for _, name := range []string{"acme/terminus-build-tools-plugin", "terminus-build-tools-plugin", " Terminus-Build-Tools-Plugin "} {
		p, err := Find(dir, name)
		require.NoError(t, err, name)
		assert.Equal(t, "acme/Terminus-Build-Tools-Plugin", p.Name)
	}

	_, err := Find(dir, "acme/other")
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestFindRejectsSharedShortName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writePackage(dir, "acme/foo", PackageType, "1.0.0"))
	require.NoError(t, writePackage(dir, "other/foo", PackageType, "1.0.0"))

	_, err := Find(dir, "foo")
	assert.ErrorIs(t, err, ErrAmbiguousProject)
	assert.ErrorContains(t, err, "acme/foo, other/foo")

	p, err := Find(dir, "other/foo")
	require.NoError(t, err)
	assert.Equal(t, "other/foo", p.Name)
}

func TestDiscoverReadsGitRevision(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writePackage(dir, "acme/git-plugin", PackageType, "dev-main"))
	pkgDir := filepath.Join(dir, "vendor", "acme", "git-plugin")

	repo, err := git.PlainInit(pkgDir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(ManifestFileName)
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	p, err := Find(dir, "git-plugin")
	require.NoError(t, err)
	assert.Equal(t, hash.String()[:7], p.GitRevision)
	assert.Equal(t, "git-plugin", p.ShortName())
}
