package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	base := t.TempDir()

	cfg, err := Load(base)
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "https://terminus.pantheon.io:443/api/", cfg.APIBaseURL())
	assert.Equal(t, filepath.Join(base, PluginsDirName), cfg.PluginsDir)
	assert.Equal(t, filepath.Join(base, DependenciesDirName), cfg.DependenciesDir)
	assert.Equal(t, filepath.Join(base, CacheDirName), cfg.CacheDir)
	assert.Equal(t, DefaultWorkflowPollInterval, cfg.WorkflowPollInterval)
	assert.Equal(t, DefaultWorkflowTimeout, cfg.WorkflowTimeout)
	assert.False(t, cfg.KeepBackups)
	assert.Empty(t, cfg.SessionToken)
}

func TestLoadFileAndEnv(t *testing.T) {
	base := t.TempDir()
	content := []byte(`host: api.example.test
port: 8443
plugins_dir: /opt/terminus/plugins
workflow_poll_interval: 1s
workflow_timeout: 2m
keep_backups: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(base, GlobalConfigFileName), content, 0644))
	t.Setenv("TERMINUS_COMPOSER_BIN", "/usr/local/bin/composer2")
	t.Setenv("TERMINUS_PORT", "9443")

	cfg, err := Load(base)
	require.NoError(t, err)

	assert.Equal(t, "api.example.test", cfg.Host)
	assert.Equal(t, 9443, cfg.Port, "env overrides file")
	assert.Equal(t, "/opt/terminus/plugins", cfg.PluginsDir)
	assert.Equal(t, time.Second, cfg.WorkflowPollInterval)
	assert.Equal(t, 2*time.Minute, cfg.WorkflowTimeout)
	assert.Equal(t, DefaultWorkflowMaxPollInterval, cfg.WorkflowMaxPollInterval)
	assert.True(t, cfg.KeepBackups)
	assert.Equal(t, "/usr/local/bin/composer2", cfg.ComposerBin)
}

func TestLoadRejectsBackupInsidePlugins(t *testing.T) {
	base := t.TempDir()
	content := []byte("plugins_dir: " + filepath.Join(base, "plugins") + "\nbackup_dir: " + filepath.Join(base, "plugins", ".backups") + "\n")
	require.NoError(t, os.WriteFile(filepath.Join(base, GlobalConfigFileName), content, 0644))

	_, err := Load(base)
	assert.ErrorContains(t, err, "backup_dir")
	assert.ErrorContains(t, err, "must not contain")
}

func TestLoadSessionFromCache(t *testing.T) {
	base := t.TempDir()
	cacheDir := filepath.Join(base, CacheDirName)
	require.NoError(t, os.MkdirAll(cacheDir, 0755))

	future := time.Now().Add(time.Hour).Unix()
	session := []byte(`{"session":"abc123","expires_at":` + itoa(future) + `,"user_id":"u1"}`)
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, SessionFileName), session, 0600))

	cfg, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.SessionToken)
}

func TestLoadSessionTokenExpired(t *testing.T) {
	cacheDir := t.TempDir()
	past := time.Now().Add(-time.Hour).Unix()
	session := []byte(`{"session":"stale","expires_at":` + itoa(past) + `}`)
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, SessionFileName), session, 0600))

	token, err := LoadSessionToken(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Host:                 "h",
			Port:                 443,
			Protocol:             "https",
			PluginsDir:           "/p",
			DependenciesDir:      "/d",
			BackupDir:            "/b",
			WorkflowPollInterval: time.Second,
			WorkflowTimeout:      time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad protocol", mutate: func(c *Config) { c.Protocol = "ftp" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "same dirs", mutate: func(c *Config) { c.DependenciesDir = c.PluginsDir }, wantErr: true},
		{name: "same dirs after cleaning", mutate: func(c *Config) { c.DependenciesDir = "/p/" }, wantErr: true},
		{name: "backup inside plugins", mutate: func(c *Config) { c.BackupDir = "/p/backups" }, wantErr: true},
		{name: "deps inside plugins", mutate: func(c *Config) { c.DependenciesDir = "/p/deps" }, wantErr: true},
		{name: "plugins inside backup", mutate: func(c *Config) { c.BackupDir = "/" }, wantErr: true},
		{name: "backup equals deps", mutate: func(c *Config) { c.BackupDir = "/d" }, wantErr: true},
		{name: "sibling with shared prefix", mutate: func(c *Config) { c.BackupDir = "/pb" }},
		{name: "zero interval", mutate: func(c *Config) { c.WorkflowPollInterval = 0 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.WorkflowTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, c.WorkflowPollInterval, c.WorkflowMaxPollInterval, "max interval raised to poll interval")
		})
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
