package self_ops

import (
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"terminus/internal/factory"
	"terminus/internal/plugin"
	"terminus/internal/util"
)

// AddListCommand defines the self:plugin:list command.
func AddListCommand(parentCmd *cobra.Command, f *factory.Factory) {
	parentCmd.AddCommand(NewListCommand(f))
}

func NewListCommand(f *factory.Factory) *cobra.Command {
	var format string
	listCmd := &cobra.Command{
		Use:     "self:plugin:list",
		Short:   "List all installed Terminus plugins.",
		Long:    `Displays the name, version and description of every plugin in the plugins directory.`,
		Aliases: []string{"self:plugin:ls", "self:plugins"},
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			return util.ValidateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := f.PluginManager()
			if err != nil {
				return err
			}
			plugins, err := manager.List()
			if err != nil {
				return fmt.Errorf("failed to list plugins: %w", err)
			}

			out := cmd.OutOrStdout()
			if format != util.FormatTable {
				if plugins == nil {
					plugins = []*plugin.Plugin{}
				}
				return util.WriteStructured(out, format, plugins)
			}
			if len(plugins) == 0 {
				util.Log.Warn("You have no plugins installed.")
				return nil
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.Wrap = true
			table.AddRow("NAME", "VERSION", "DESCRIPTION", "REVISION")
			for _, p := range plugins {
				table.AddRow(p.Name, p.Version, p.Description, p.GitRevision)
			}
			_, err = fmt.Fprintln(out, table)
			return err
		},
	}
	listCmd.Flags().StringVar(&format, "format", util.FormatTable, "Output format: table, json or yaml")
	return listCmd
}
