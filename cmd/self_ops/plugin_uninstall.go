package self_ops

import (
	"errors"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"terminus/internal/factory"
	"terminus/internal/history"
	"terminus/internal/plugin"
)

const uninstallUsage = "terminus self:plugin:<uninstall|remove> <project> [project 2] ..."

// AddUninstallCommand defines the self:plugin:uninstall command.
func AddUninstallCommand(parentCmd *cobra.Command, f *factory.Factory) {
	parentCmd.AddCommand(NewUninstallCommand(f))
}

func NewUninstallCommand(f *factory.Factory) *cobra.Command {
	var manager *plugin.Manager
	return &cobra.Command{
		Use:   "self:plugin:uninstall <project> [project]...",
		Short: "Remove one or more Terminus plugins.",
		Aliases: []string{
			"self:plugin:remove", "self:plugin:rm", "self:plugin:delete",
			"remove", "rm", "delete",
		},
		Long: heredoc.Doc(`
			Removes each named plugin from the plugins directory and from the shared
			dependencies project. Plugins may be named by their full composer name
			or by the package part alone.

			Both directories are backed up before anything changes. If composer fails
			the backups are restored and the remaining plugins are still processed.
		`),
		Example: heredoc.Doc(`
			# Uninstall two plugins
			terminus self:plugin:uninstall pantheon-systems/terminus-build-tools-plugin terminus-rsync-plugin
		`),
		Args: cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New(uninstallUsage)
			}
			var err error
			manager, err = requireComposer(cmd, f)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes := manager.Uninstall(cmd.Context(), args)
			recordOutcomes(f, history.OperationUninstall, outcomes)
			return nil
		},
	}
}
