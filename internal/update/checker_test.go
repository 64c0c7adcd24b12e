package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewerRelease(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
		wantErr         bool
	}{
		{current: "3.6.0", latest: "3.6.1", want: true},
		{current: "v3.6.1", latest: "3.6.1", want: false},
		{current: "4.0.0", latest: "v3.9.9", want: false},
		{current: "3.6.1", latest: "not-a-version", wantErr: true},
	}
	for _, tt := range tests {
		got, err := newerRelease(tt.current, tt.latest)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.current, tt.latest)
	}
}

func newReleaseServer(t *testing.T, tag string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/repos/pantheon-systems/terminus/releases/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"` + tag + `","html_url":"https://github.com/pantheon-systems/terminus/releases/tag/` + tag + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckUsesCache(t *testing.T) {
	var hits int32
	srv := newReleaseServer(t, "3.7.0", &hits)
	c := NewChecker(t.TempDir())
	c.APIBase = srv.URL

	res, err := c.Check(context.Background(), "3.6.2", DefaultRepository)
	require.NoError(t, err)
	assert.True(t, res.IsNewer)
	assert.Equal(t, "3.7.0", res.LatestVersion)
	assert.FileExists(t, c.CachePath)

	res, err = c.Check(context.Background(), "3.7.0", DefaultRepository)
	require.NoError(t, err)
	assert.False(t, res.IsNewer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCheckRefreshesStaleCache(t *testing.T) {
	var hits int32
	srv := newReleaseServer(t, "3.8.0", &hits)
	c := NewChecker(t.TempDir())
	c.APIBase = srv.URL
	require.NoError(t, c.saveCache(&Cache{LastCheckTime: time.Now().Add(-48 * time.Hour), LatestVersionFound: "3.7.0"}))

	res, err := c.Check(context.Background(), "3.7.0", DefaultRepository)
	require.NoError(t, err)
	assert.True(t, res.IsNewer)
	assert.Equal(t, "3.8.0", res.LatestVersion)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCheckSkipsDevelopmentBuilds(t *testing.T) {
	c := NewChecker(filepath.Join(t.TempDir(), "cache"))
	c.APIBase = "http://127.0.0.1:0"

	res, err := c.Check(context.Background(), "dev", DefaultRepository)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestCheckIgnoresMalformedCache(t *testing.T) {
	var hits int32
	srv := newReleaseServer(t, "3.7.1", &hits)
	c := NewChecker(t.TempDir())
	c.APIBase = srv.URL
	require.NoError(t, os.WriteFile(c.CachePath, []byte("{not json"), 0640))

	res, err := c.Check(context.Background(), "3.7.1", DefaultRepository)
	require.NoError(t, err)
	assert.False(t, res.IsNewer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.NotNil(t, c.loadCache())
}
