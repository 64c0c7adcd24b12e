package config

import (
	"fmt"
	"time"
)

// Config represents the merged configuration from <base>/config.yml, TERMINUS_* environment
// variables and built-in defaults.
type Config struct {
	Host         string `mapstructure:"host"          yaml:"host"          json:"host"`
	Port         int    `mapstructure:"port"          yaml:"port"          json:"port"`
	Protocol     string `mapstructure:"protocol"      yaml:"protocol"      json:"protocol"`
	SessionToken string `mapstructure:"session_token" yaml:"-"             json:"-"`

	CacheDir        string `mapstructure:"cache_dir"        yaml:"cache_dir"        json:"cache_dir"`
	PluginsDir      string `mapstructure:"plugins_dir"      yaml:"plugins_dir"      json:"plugins_dir"`
	DependenciesDir string `mapstructure:"dependencies_dir" yaml:"dependencies_dir" json:"dependencies_dir"`
	BackupDir       string `mapstructure:"backup_dir"       yaml:"backup_dir"       json:"backup_dir"`
	KeepBackups     bool   `mapstructure:"keep_backups"     yaml:"keep_backups"     json:"keep_backups"`
	ComposerBin     string `mapstructure:"composer_bin"     yaml:"composer_bin"     json:"composer_bin"`

	HTTPTimeout             time.Duration `mapstructure:"http_timeout"               yaml:"http_timeout"               json:"http_timeout"`
	WorkflowPollInterval    time.Duration `mapstructure:"workflow_poll_interval"     yaml:"workflow_poll_interval"     json:"workflow_poll_interval"`
	WorkflowMaxPollInterval time.Duration `mapstructure:"workflow_max_poll_interval" yaml:"workflow_max_poll_interval" json:"workflow_max_poll_interval"`
	WorkflowTimeout         time.Duration `mapstructure:"workflow_timeout"           yaml:"workflow_timeout"           json:"workflow_timeout"`
	WorkflowMaxRetries      int           `mapstructure:"workflow_max_retries"       yaml:"workflow_max_retries"       json:"workflow_max_retries"`

	UpdateCheck bool `mapstructure:"update_check" yaml:"update_check" json:"update_check"`
	Debug       bool `mapstructure:"debug"        yaml:"debug"        json:"debug"`

	// Set by Load, not read from the file.
	BasePath   string `mapstructure:"-" yaml:"base_path"   json:"base_path"`
	ConfigFile string `mapstructure:"-" yaml:"config_file" json:"config_file"`
}

// APIBaseURL returns the root URL of the management API.
func (c *Config) APIBaseURL() string {
	return fmt.Sprintf("%s://%s:%d/api/", c.Protocol, c.Host, c.Port)
}

// sessionFile mirrors the JSON document written to <cache_dir>/session on login.
type sessionFile struct {
	Session   string `json:"session"`
	ExpiresAt int64  `json:"expires_at"`
	UserID    string `json:"user_id"`
}
