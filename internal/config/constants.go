package config

import "time"

const (
	BaseDirName          = ".terminus"
	GlobalConfigFileName = "config.yml"
	CacheDirName         = "cache"
	SessionFileName      = "session"
	PluginsDirName       = "plugins-3.x"
	DependenciesDirName  = "terminus-dependencies-3.x"

	DefaultHost        = "terminus.pantheon.io"
	DefaultPort        = 443
	DefaultProtocol    = "https"
	DefaultComposerBin = "composer"

	DefaultHTTPTimeout             = 60 * time.Second
	DefaultWorkflowPollInterval    = 3 * time.Second
	DefaultWorkflowMaxPollInterval = 15 * time.Second
	DefaultWorkflowTimeout         = 30 * time.Minute
	DefaultWorkflowMaxRetries      = 3

	EnvPrefix = "TERMINUS"
)
