package env_ops

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"terminus/internal/api"
	"terminus/internal/api/apitest"
	"terminus/internal/config"
	"terminus/internal/factory"
	"terminus/internal/models"
	"terminus/internal/workflow"
)

func newFactory(t *testing.T, srv *apitest.Server, session string) *factory.Factory {
	t.Helper()
	u, err := url.Parse(srv.BaseURL())
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := &config.Config{
		Host:                    host,
		Port:                    port,
		Protocol:                u.Scheme,
		SessionToken:            session,
		HTTPTimeout:             5 * time.Second,
		WorkflowPollInterval:    time.Millisecond,
		WorkflowMaxPollInterval: 5 * time.Millisecond,
		WorkflowTimeout:         5 * time.Second,
		WorkflowMaxRetries:      1,
	}
	return factory.NewWithConfig(cfg, "test")
}

func newServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer(
		apitest.Site{ID: "11111111-2222-3333-4444-555555555555", Name: "my-site", Environments: []string{"dev", "test", "live", "feature"}},
		apitest.Site{ID: "66666666-7777-8888-9999-000000000000", Name: "cold-site", Frozen: true, Environments: []string{"dev"}},
	)
	t.Cleanup(srv.Close)
	return srv
}

func TestCodeRebuildRejectsTestAndLiveWithoutRemoteCalls(t *testing.T) {
	for _, env := range []string{"test", "live"} {
		t.Run(env, func(t *testing.T) {
			srv := newServer(t)
			f := newFactory(t, srv, apitest.Token)

			_, err := RunCodeRebuild(context.Background(), f, "my-site."+env)

			assert.ErrorIs(t, err, ErrProtectedEnvironment)
			assert.EqualError(t, err, "Test and live are not valid environments for this command.")
			assert.Empty(t, srv.Requests())
		})
	}
}

func TestCodeRebuildSyncsCode(t *testing.T) {
	for _, env := range []string{"dev", "feature"} {
		t.Run(env, func(t *testing.T) {
			srv := newServer(t)
			srv.SetWorkflowScript(apitest.WorkflowScript{PendingPolls: 2, Result: "succeeded", ActiveDescription: "Sync code on \"" + env + "\" finished"})
			f := newFactory(t, srv, apitest.Token)

			msg, err := RunCodeRebuild(context.Background(), f, "my-site."+env)
			require.NoError(t, err)
			assert.Equal(t, "Sync code on \""+env+"\" finished", msg)

			reqs := srv.WorkflowRequests()
			require.Len(t, reqs, 1)
			assert.Equal(t, "sync_code", reqs[0].Type)
			assert.Equal(t, env, reqs[0].Env)
			assert.JSONEq(t, `{"converge":true,"build_steps":{"artifact_install":true}}`, string(reqs[0].Params))
		})
	}
}

func TestCodeRebuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		siteEnv string
		session string
		script  *apitest.WorkflowScript
		check   func(t *testing.T, err error)
	}{
		{
			name:    "malformed argument",
			siteEnv: "my-site",
			session: apitest.Token,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, models.ErrInvalidSiteEnv)
			},
		},
		{
			name:    "not logged in",
			siteEnv: "my-site.dev",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, api.ErrUnauthorized)
			},
		},
		{
			name:    "frozen site",
			siteEnv: "cold-site.dev",
			session: apitest.Token,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, models.ErrSiteFrozen)
			},
		},
		{
			name:    "unknown site",
			siteEnv: "nobody.dev",
			session: apitest.Token,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, api.ErrNotFound)
			},
		},
		{
			name:    "unknown environment",
			siteEnv: "my-site.nope",
			session: apitest.Token,
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "Could not find an environment identified by nope.")
			},
		},
		{
			name:    "workflow fails",
			siteEnv: "my-site.dev",
			session: apitest.Token,
			script:  &apitest.WorkflowScript{Result: "failed", FailureReason: "composer install exited with code 2"},
			check: func(t *testing.T, err error) {
				var failed *workflow.FailedError
				require.True(t, errors.As(err, &failed))
				assert.Equal(t, "composer install exited with code 2", failed.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t)
			if tt.script != nil {
				srv.SetWorkflowScript(*tt.script)
			}
			f := newFactory(t, srv, tt.session)

			_, err := RunCodeRebuild(context.Background(), f, tt.siteEnv)
			require.Error(t, err)
			tt.check(t, err)
			if tt.script == nil {
				assert.Empty(t, srv.WorkflowRequests())
			}
		})
	}
}

func TestCodeRebuildCommand(t *testing.T) {
	srv := newServer(t)
	f := newFactory(t, srv, apitest.Token)

	cmd := NewCodeRebuildCommand(f)
	cmd.SetArgs([]string{"my-site.dev"})
	require.NoError(t, cmd.Execute())
	assert.Len(t, srv.WorkflowRequests(), 1)

	cmd = NewCodeRebuildCommand(f)
	cmd.SetArgs([]string{})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	assert.Error(t, cmd.Execute())
	assert.Contains(t, cmd.Aliases, "code-rebuild")
}
