package self_ops

import (
	"errors"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"terminus/internal/factory"
	"terminus/internal/history"
	"terminus/internal/plugin"
	"terminus/internal/util"
)

const installUsage = "terminus self:plugin:install <project 1> [project 2] ..."

// AddInstallCommand defines the self:plugin:install command.
func AddInstallCommand(parentCmd *cobra.Command, f *factory.Factory) {
	parentCmd.AddCommand(NewInstallCommand(f))
}

func NewInstallCommand(f *factory.Factory) *cobra.Command {
	var manager *plugin.Manager
	return &cobra.Command{
		Use:     "self:plugin:install <project> [project]...",
		Short:   "Install one or more Terminus plugins.",
		Aliases: []string{"self:plugin:add"},
		Long: heredoc.Doc(`
			Installs each named composer package into the plugins directory and
			registers it with the shared dependencies project. Packages must be
			named <vendor>/<package> and declare the type terminus-plugin.
		`),
		Example: heredoc.Doc(`
			# Install the build tools plugin
			terminus self:plugin:install pantheon-systems/terminus-build-tools-plugin
		`),
		Args: cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New(installUsage)
			}
			var err error
			manager, err = requireComposer(cmd, f)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes := manager.Install(cmd.Context(), args)
			recordOutcomes(f, history.OperationInstall, outcomes)
			return nil
		},
	}
}

// requireComposer returns the plugin manager once composer is confirmed usable.
func requireComposer(cmd *cobra.Command, f *factory.Factory) (*plugin.Manager, error) {
	manager, err := f.PluginManager()
	if err != nil {
		return nil, err
	}
	if err := manager.CheckRequirements(cmd.Context()); err != nil {
		return nil, err
	}
	return manager, nil
}

func recordOutcomes(f *factory.Factory, operation string, outcomes []*plugin.Outcome) {
	for _, o := range outcomes {
		util.Log.Debugf("%s %s: %s", operation, o.Project, o.State)
	}
	log, err := f.History()
	if err != nil {
		util.Log.Warnf("Plugin history unavailable: %v", err)
		return
	}
	log.RecordOutcomes(operation, outcomes)
}
