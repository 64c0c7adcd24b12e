package env_ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"terminus/internal/factory"
	"terminus/internal/models"
	"terminus/internal/util"
	"terminus/internal/workflow"
)

// ErrProtectedEnvironment is returned when asked to rebuild test or live.
var ErrProtectedEnvironment = errors.New("Test and live are not valid environments for this command.")

// AddCodeRebuildCommand defines the env:code-rebuild command.
func AddCodeRebuildCommand(parentCmd *cobra.Command, f *factory.Factory) {
	parentCmd.AddCommand(NewCodeRebuildCommand(f))
}

func NewCodeRebuildCommand(f *factory.Factory) *cobra.Command {
	return &cobra.Command{
		Use:     "env:code-rebuild <site>.<env>",
		Aliases: []string{"code-rebuild"},
		Short:   "Rebuild code for the given environment (only dev and multidev allowed).",
		Long: heredoc.Doc(`
			Syncs the code of a dev or multidev environment from its git repository
			and runs the build steps again, including the composer artifact install.
			The command waits for the remote workflow to finish and prints its result.

			Test and live environments cannot be rebuilt.
		`),
		Example: heredoc.Doc(`
			# Sync code into the dev environment of my-site
			terminus env:code-rebuild my-site.dev
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := RunCodeRebuild(cmd.Context(), f, args[0])
			return err
		},
	}
}

// RunCodeRebuild starts a sync_code workflow for siteEnv and waits for it. It returns the
// workflow's final message.
func RunCodeRebuild(ctx context.Context, f *factory.Factory, siteEnv string) (string, error) {
	siteName, envName, err := models.SplitSiteEnv(siteEnv)
	if err != nil {
		return "", err
	}
	if models.IsProtectedEnvironment(envName) {
		return "", ErrProtectedEnvironment
	}

	sites, err := f.Sites()
	if err != nil {
		return "", err
	}
	site, err := sites.Get(ctx, siteName)
	if err != nil {
		return "", err
	}
	if err := site.RequireNotFrozen(); err != nil {
		return "", err
	}
	env, err := site.Environment(ctx, envName)
	if err != nil {
		return "", err
	}

	util.Log.Debugf("Starting code rebuild on %s.%s", site.Name, env.Name())
	wf, err := env.SyncCode(ctx, models.SyncCodeParams{
		Converge:   true,
		BuildSteps: models.BuildSteps{ArtifactInstall: true},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start code rebuild on %s: %w", siteEnv, err)
	}

	if err := workflow.Wait(ctx, wf, f.WorkflowOptions()); err != nil {
		return "", err
	}

	msg := wf.Message()
	util.Log.Info(msg)
	return msg, nil
}
