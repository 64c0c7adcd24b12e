package models

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"terminus/internal/api"
)

// Environment is a deployment slot of a Site: dev, test, live or a multidev.
type Environment struct {
	ID   string `json:"id"`
	Site *Site  `json:"-"`
}

// BuildSteps selects the build steps run by a code sync.
type BuildSteps struct {
	ArtifactInstall bool `json:"artifact_install"`
}

// SyncCodeParams are the parameters of a sync_code workflow.
type SyncCodeParams struct {
	Converge   bool       `json:"converge"`
	BuildSteps BuildSteps `json:"build_steps"`
}

// Name returns the environment id.
func (e *Environment) Name() string {
	return e.ID
}

// IsProtectedEnvironment reports whether name is one of the fixed test/live environments.
func IsProtectedEnvironment(name string) bool {
	return name == "test" || name == "live"
}

// Environment resolves one of the site's environments by id.
func (s *Site) Environment(ctx context.Context, name string) (*Environment, error) {
	envs := map[string]struct {
		ID string `json:"id"`
	}{}
	if err := s.client.Get(ctx, "sites/"+url.PathEscape(s.ID)+"/environments", &envs); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, &NotFoundError{Kind: "site", ID: s.Name}
		}
		return nil, fmt.Errorf("failed to list environments of site '%s': %w", s.Name, err)
	}
	if _, ok := envs[name]; !ok {
		return nil, &NotFoundError{Kind: "environment", ID: name}
	}
	return &Environment{ID: name, Site: s}, nil
}

// SyncCode starts a sync_code workflow on the environment and returns its handle.
func (e *Environment) SyncCode(ctx context.Context, params SyncCodeParams) (*Workflow, error) {
	return e.createWorkflow(ctx, "sync_code", params)
}

func (e *Environment) createWorkflow(ctx context.Context, workflowType string, params interface{}) (*Workflow, error) {
	body := struct {
		Type   string      `json:"type"`
		Params interface{} `json:"params"`
	}{Type: workflowType, Params: params}

	wf := &Workflow{client: e.Site.client, siteID: e.Site.ID}
	path := fmt.Sprintf("sites/%s/environments/%s/workflows", url.PathEscape(e.Site.ID), url.PathEscape(e.ID))
	if err := e.Site.client.Post(ctx, path, body, &wf.attrs); err != nil {
		return nil, fmt.Errorf("failed to start %s workflow on %s.%s: %w", workflowType, e.Site.Name, e.ID, err)
	}
	return wf, nil
}
