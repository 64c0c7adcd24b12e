// Package models wraps the management API resources the commands operate on.
package models

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"terminus/internal/api"
)

// FrozenSiteMessage is returned for operations refused on frozen sites.
const FrozenSiteMessage = "This site is frozen. Its test and live environments and many commands will be unavailable while it remains frozen."

// ErrSiteFrozen is returned by Site.RequireNotFrozen.
var ErrSiteFrozen = errors.New(FrozenSiteMessage)

// NotFoundError reports a site or environment the user cannot access.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "site" {
		return fmt.Sprintf("Could not locate a site your user may access identified by %s.", e.ID)
	}
	return fmt.Sprintf("Could not find an %s identified by %s.", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == api.ErrNotFound
}

// Site is a remote site. It is never mutated locally.
type Site struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Frozen bool   `json:"frozen"`

	client *api.Client
}

// Sites resolves sites by name.
type Sites struct {
	client *api.Client
}

func NewSites(client *api.Client) *Sites {
	return &Sites{client: client}
}

// Get resolves a site by name (or UUID).
func (s *Sites) Get(ctx context.Context, name string) (*Site, error) {
	if name == "" {
		return nil, &NotFoundError{Kind: "site", ID: name}
	}

	var lookup struct {
		ID string `json:"id"`
	}
	if err := s.client.Get(ctx, "site-names/"+url.PathEscape(name), &lookup); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, &NotFoundError{Kind: "site", ID: name}
		}
		return nil, fmt.Errorf("failed to look up site '%s': %w", name, err)
	}

	site := &Site{client: s.client}
	if err := s.client.Get(ctx, "sites/"+url.PathEscape(lookup.ID)+"?site_state=true", site); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, &NotFoundError{Kind: "site", ID: name}
		}
		return nil, fmt.Errorf("failed to load site '%s': %w", name, err)
	}
	if site.ID == "" {
		site.ID = lookup.ID
	}
	return site, nil
}

// RequireNotFrozen returns ErrSiteFrozen if the site is frozen.
func (s *Site) RequireNotFrozen() error {
	if s.Frozen {
		return ErrSiteFrozen
	}
	return nil
}

// SplitSiteEnv splits "<site>.<env>". The environment is everything after the first dot.
func SplitSiteEnv(siteEnv string) (site, env string, err error) {
	parts := strings.SplitN(siteEnv, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidSiteEnv
	}
	return parts[0], parts[1], nil
}

// ErrInvalidSiteEnv is returned by SplitSiteEnv for malformed identifiers.
var ErrInvalidSiteEnv = errors.New("The environment argument must be given as <site_name>.<environment>")
