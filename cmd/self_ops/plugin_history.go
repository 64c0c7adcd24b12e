package self_ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"terminus/internal/factory"
	"terminus/internal/history"
	"terminus/internal/util"
)

// AddHistoryCommand defines the self:plugin:history command.
func AddHistoryCommand(parentCmd *cobra.Command, f *factory.Factory) {
	parentCmd.AddCommand(NewHistoryCommand(f))
}

func NewHistoryCommand(f *factory.Factory) *cobra.Command {
	var (
		format string
		query  history.Query
	)
	historyCmd := &cobra.Command{
		Use:   "self:plugin:history",
		Short: "Show past plugin installs and uninstalls.",
		Long:  `Lists recorded plugin operations, newest first, with the state each project ended in.`,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			return util.ValidateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := f.History()
			if err != nil {
				return err
			}
			events, err := log.List(query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format != util.FormatTable {
				return util.WriteStructured(out, format, events)
			}
			if len(events) == 0 {
				util.Log.Info("No plugin operations recorded.")
				return nil
			}
			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("TIME", "OPERATION", "PROJECT", "OUTCOME", "ERROR")
			for _, ev := range events {
				table.AddRow(ev.Timestamp.Local().Format(time.DateTime), ev.Operation, ev.Project, ev.Outcome, ev.Error)
			}
			_, err = fmt.Fprintln(out, table)
			return err
		},
	}
	historyCmd.Flags().StringVar(&format, "format", util.FormatTable, "Output format: table, json or yaml")
	historyCmd.Flags().StringVar(&query.Project, "project", "", "Only show operations on this project")
	historyCmd.Flags().StringVar(&query.Operation, "operation", "", "Only show install or uninstall operations")
	historyCmd.Flags().StringVar(&query.Outcome, "outcome", "", "Only show operations that ended in this state (e.g. DONE, ROLLED_BACK)")
	historyCmd.Flags().IntVar(&query.Limit, "limit", 25, "Maximum number of entries to show")
	historyCmd.Flags().IntVar(&query.Offset, "offset", 0, "Number of entries to skip")
	return historyCmd
}
