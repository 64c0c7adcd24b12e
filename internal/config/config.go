package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"terminus/internal/util"
)

// DefaultBasePath returns ~/.terminus, falling back to ./.terminus when the home
// directory cannot be determined.
func DefaultBasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		util.Log.Warnf("Could not determine home directory: %v. Using current directory.", err)
		return BaseDirName
	}
	return filepath.Join(home, BaseDirName)
}

// Load reads the configuration rooted at basePath. A missing config file is not an error;
// defaults and TERMINUS_* environment variables still apply.
func Load(basePath string) (*Config, error) {
	if basePath == "" {
		basePath = DefaultBasePath()
	}
	basePath = expandHome(basePath)

	configFilePath := filepath.Join(basePath, GlobalConfigFileName)
	v := viper.New()
	v.SetConfigFile(configFilePath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	setDefaults(v, basePath)

	if _, statErr := os.Stat(configFilePath); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
			}
		}
		util.Log.Debugf("Loaded config from %s", configFilePath)
	} else if os.IsNotExist(statErr) {
		util.Log.Debugf("Config file not found at %s, using defaults.", configFilePath)
	} else {
		return nil, fmt.Errorf("failed to check config file %s: %w", configFilePath, statErr)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.BasePath = basePath
	cfg.ConfigFile = configFilePath

	cfg.CacheDir = expandHome(cfg.CacheDir)
	cfg.PluginsDir = expandHome(cfg.PluginsDir)
	cfg.DependenciesDir = expandHome(cfg.DependenciesDir)
	cfg.BackupDir = expandHome(cfg.BackupDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.SessionToken == "" {
		token, err := LoadSessionToken(cfg.CacheDir)
		if err != nil {
			util.Log.Warnf("Ignoring unreadable session file: %v", err)
		}
		cfg.SessionToken = token
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, basePath string) {
	cacheDir := filepath.Join(basePath, CacheDirName)

	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("protocol", DefaultProtocol)
	v.SetDefault("session_token", "")
	v.SetDefault("cache_dir", cacheDir)
	v.SetDefault("plugins_dir", filepath.Join(basePath, PluginsDirName))
	v.SetDefault("dependencies_dir", filepath.Join(basePath, DependenciesDirName))
	v.SetDefault("backup_dir", filepath.Join(cacheDir, "backups"))
	v.SetDefault("keep_backups", false)
	v.SetDefault("composer_bin", DefaultComposerBin)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("workflow_poll_interval", DefaultWorkflowPollInterval)
	v.SetDefault("workflow_max_poll_interval", DefaultWorkflowMaxPollInterval)
	v.SetDefault("workflow_timeout", DefaultWorkflowTimeout)
	v.SetDefault("workflow_max_retries", DefaultWorkflowMaxRetries)
	v.SetDefault("update_check", true)
	v.SetDefault("debug", false)
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: host must not be empty")
	}
	if c.Protocol != "http" && c.Protocol != "https" {
		return fmt.Errorf("config: protocol must be 'http' or 'https', got '%s'", c.Protocol)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.PluginsDir == "" || c.DependenciesDir == "" {
		return errors.New("config: plugins_dir and dependencies_dir must be set")
	}
	if err := checkDisjoint(map[string]string{
		"plugins_dir":      c.PluginsDir,
		"dependencies_dir": c.DependenciesDir,
		"backup_dir":       c.BackupDir,
	}); err != nil {
		return err
	}
	if c.WorkflowPollInterval <= 0 {
		return fmt.Errorf("config: workflow_poll_interval must be positive, got %v", c.WorkflowPollInterval)
	}
	if c.WorkflowMaxPollInterval < c.WorkflowPollInterval {
		c.WorkflowMaxPollInterval = c.WorkflowPollInterval
	}
	if c.WorkflowTimeout <= 0 {
		return fmt.Errorf("config: workflow_timeout must be positive, got %v", c.WorkflowTimeout)
	}
	if c.WorkflowMaxRetries < 0 {
		c.WorkflowMaxRetries = 0
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	return nil
}

// LoadSessionToken reads the session token saved in <cacheDir>/session. An absent or
// expired session yields an empty token and no error.
func LoadSessionToken(cacheDir string) (string, error) {
	sessionPath := filepath.Join(cacheDir, SessionFileName)
	data, err := os.ReadFile(sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			util.Log.Debugf("No session file at %s", sessionPath)
			return "", nil
		}
		return "", fmt.Errorf("failed to read session file %s: %w", sessionPath, err)
	}

	var session sessionFile
	if err := json.Unmarshal(data, &session); err != nil {
		return "", fmt.Errorf("failed to parse session file %s: %w", sessionPath, err)
	}
	if session.ExpiresAt > 0 && time.Unix(session.ExpiresAt, 0).Before(time.Now()) {
		util.Log.Debugf("Session in %s expired at %s", sessionPath, time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
		return "", nil
	}
	return session.Session, nil
}

// checkDisjoint rejects directories that are equal or nested in one another. Rollback
// restores whole directories, so an overlap would let one restore clobber another.
// Empty entries are skipped.
func checkDisjoint(dirs map[string]string) error {
	keys := make([]string, 0, len(dirs))
	for k, dir := range dirs {
		if dir != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, a := range keys {
		for _, b := range keys[i+1:] {
			switch {
			case pathWithin(dirs[a], dirs[b]):
				return fmt.Errorf("config: %s '%s' must not contain %s '%s'", a, dirs[a], b, dirs[b])
			case pathWithin(dirs[b], dirs[a]):
				return fmt.Errorf("config: %s '%s' must not contain %s '%s'", b, dirs[b], a, dirs[a])
			}
		}
	}
	return nil
}

// pathWithin reports whether child is parent or lies below it.
func pathWithin(parent, child string) bool {
	p, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	c, err := filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(p, c)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
