package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"terminus/cmd/version"
	"terminus/internal/factory"
	"terminus/internal/update"
	"terminus/internal/util"
)

var (
	debug       bool
	cfgFileBase string

	f = factory.New(version.GetVersion())

	updateResult chan *update.CheckResult
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "terminus",
	Short: "Terminus is the command-line interface for Pantheon sites.",
	Long: heredoc.Doc(`
		Terminus manages Pantheon sites and environments from the command line
		and extends itself through composer-installed plugins.

		Configuration is read from ~/.terminus/config.yml and TERMINUS_*
		environment variables.
	`),
	Version:      version.GetVersion(),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- Initialize Logger Early ---
		util.InitLogger(debug)
		util.Log.Debugf("Debug flag set to: %v", debug)

		if err := f.Load(cfgFileBase); err != nil {
			return err
		}
		if f.Config.Debug && !debug {
			util.InitLogger(true)
			util.Log.Debug("Enabling debug mode based on config file.")
		}
		util.Log.Debugf("Using terminus base path: %s", f.Config.BasePath)

		// --- Perform Update Check (in background) ---
		if cmd.Name() != "self:info" {
			startUpdateCheck(cmd.Context())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		printUpdateNotice()
	},
}

func startUpdateCheck(ctx context.Context) {
	checker := f.UpdateChecker()
	if checker == nil || updateResult != nil {
		return
	}
	updateResult = make(chan *update.CheckResult, 1)
	go func() {
		result, err := checker.Check(ctx, version.GetVersion(), version.GetRepository())
		if err != nil {
			util.Log.Debugf("Update check failed: %v", err)
		}
		updateResult <- result
	}()
}

func printUpdateNotice() {
	if updateResult == nil {
		return
	}
	var result *update.CheckResult
	select {
	case result = <-updateResult:
	case <-time.After(2 * time.Second):
		util.Log.Debug("Update check did not finish in time, skipping notice.")
		return
	}
	if result == nil || !result.IsNewer {
		return
	}
	fmt.Fprintf(os.Stderr, "\n---\n")
	fmt.Fprintf(os.Stderr, "[Terminus Update Available]\n")
	fmt.Fprintf(os.Stderr, "  Your version:   %s\n", result.CurrentVersion)
	fmt.Fprintf(os.Stderr, "  Latest version: %s\n", result.LatestVersion)
	fmt.Fprintf(os.Stderr, "  Release notes:  %s\n", result.ReleaseURL)
	fmt.Fprintf(os.Stderr, "---\n\n")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&cfgFileBase, "config", "c", "", "Base directory for terminus configuration (default ~/.terminus)")

	version.AddInfoCommand(rootCmd, f)
}
