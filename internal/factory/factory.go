// Package factory builds the clients and managers commands depend on from the loaded
// configuration.
package factory

import (
	"fmt"
	"net/http"
	"sync"

	"terminus/internal/api"
	"terminus/internal/config"
	"terminus/internal/history"
	"terminus/internal/models"
	"terminus/internal/plugin"
	"terminus/internal/update"
	"terminus/internal/util"
	"terminus/internal/workflow"
)

// Factory is created once per process. Config is filled in by Load before any command runs.
type Factory struct {
	Version string
	Config  *config.Config

	// HTTPClient overrides the client used for API requests.
	HTTPClient *http.Client
	// ComposerRunner and LookPath override how composer is located and run.
	ComposerRunner plugin.Runner
	LookPath       func(string) (string, error)

	clientOnce sync.Once
	client     *api.Client
	clientErr  error
}

func New(version string) *Factory {
	return &Factory{Version: version}
}

// NewWithConfig returns a factory around an already loaded configuration.
func NewWithConfig(cfg *config.Config, version string) *Factory {
	return &Factory{Version: version, Config: cfg}
}

// Load reads the configuration rooted at basePath.
func (f *Factory) Load(basePath string) error {
	cfg, err := config.Load(basePath)
	if err != nil {
		return err
	}
	f.Config = cfg
	return nil
}

func (f *Factory) config() (*config.Config, error) {
	if f.Config == nil {
		return nil, fmt.Errorf("configuration has not been loaded")
	}
	return f.Config, nil
}

// APIClient returns the shared management API client.
func (f *Factory) APIClient() (*api.Client, error) {
	f.clientOnce.Do(func() {
		cfg, err := f.config()
		if err != nil {
			f.clientErr = err
			return
		}
		util.Log.Debugf("Using API at %s", cfg.APIBaseURL())
		f.client, f.clientErr = api.NewClient(api.Options{
			BaseURL:      cfg.APIBaseURL(),
			SessionToken: cfg.SessionToken,
			UserAgent:    api.DefaultUserAgent(f.Version),
			Timeout:      cfg.HTTPTimeout,
			HTTPClient:   f.HTTPClient,
		})
	})
	return f.client, f.clientErr
}

func (f *Factory) Sites() (*models.Sites, error) {
	client, err := f.APIClient()
	if err != nil {
		return nil, err
	}
	return models.NewSites(client), nil
}

// PluginManager returns a manager for the configured plugin directories.
func (f *Factory) PluginManager() (*plugin.Manager, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	runner := f.ComposerRunner
	if runner == nil {
		runner = plugin.NewExecRunner(cfg.ComposerBin)
	}
	m := plugin.NewManager(plugin.Options{
		PluginsDir:      cfg.PluginsDir,
		DependenciesDir: cfg.DependenciesDir,
		BackupDir:       cfg.BackupDir,
		KeepBackups:     cfg.KeepBackups,
		ComposerBin:     cfg.ComposerBin,
	}, runner)
	if f.LookPath != nil {
		m.SetLookPath(f.LookPath)
	}
	return m, nil
}

// History returns the plugin operation log kept in the cache directory.
func (f *Factory) History() (*history.Log, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	return history.NewLog(cfg.CacheDir), nil
}

// WorkflowOptions bounds workflow polling.
func (f *Factory) WorkflowOptions() workflow.Options {
	if f.Config == nil {
		return workflow.Options{Interval: config.DefaultWorkflowPollInterval}
	}
	return workflow.Options{
		Interval:    f.Config.WorkflowPollInterval,
		MaxInterval: f.Config.WorkflowMaxPollInterval,
		Timeout:     f.Config.WorkflowTimeout,
		MaxRetries:  f.Config.WorkflowMaxRetries,
	}
}

// UpdateChecker returns a release checker caching its results in the cache directory, or
// nil when update checks are disabled.
func (f *Factory) UpdateChecker() *update.Checker {
	if f.Config == nil || !f.Config.UpdateCheck {
		return nil
	}
	return update.NewChecker(f.Config.CacheDir)
}
