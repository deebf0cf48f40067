// Package plugin implements the index-based plug-in resource: it validates
// repository and administrative access against servers exposing an HTML
// directory index, and discovers repositories by scraping the root listing.
//
// A Resource holds only immutable configuration and injected collaborators,
// so a single instance can serve concurrent callers.
package plugin

import (
	"context"
	"fmt"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/probe"
)

// ToDataFunc maps the repository index body to the "info" status data.
type ToDataFunc func(body string) any

// IdentityData returns the body unchanged.
func IdentityData(body string) any {
	return body
}

// Resource is an index-based plug-in.
type Resource struct {
	key        string
	simpleName string
	ns         params.Namespace

	prober   probe.Prober
	resolver params.Resolver

	repositoryURL RepositoryURLFunc
	toData        ToDataFunc
}

// Option customises a Resource.
type Option func(*Resource)

// WithRepositoryURL replaces the repository URL strategy.
func WithRepositoryURL(fn RepositoryURLFunc) Option {
	return func(r *Resource) {
		if fn != nil {
			r.repositoryURL = fn
		}
	}
}

// WithToData replaces the status data mapping.
func WithToData(fn ToDataFunc) Option {
	return func(r *Resource) {
		if fn != nil {
			r.toData = fn
		}
	}
}

// New creates a resource for the plug-in key. simpleName prefixes validation
// rule names ("<simpleName>-repository", "<simpleName>-admin").
func New(key, simpleName string, prober probe.Prober, resolver params.Resolver, opts ...Option) (*Resource, error) {
	if key == "" {
		return nil, fmt.Errorf("plug-in key is required")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("parameter resolver is required")
	}

	r := &Resource{
		key:           key,
		simpleName:    simpleName,
		ns:            params.NewNamespace(key),
		prober:        prober,
		resolver:      resolver,
		repositoryURL: DefaultRepositoryURL,
		toData:        IdentityData,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Key returns the plug-in key.
func (r *Resource) Key() string {
	return r.key
}

// SimpleName returns the name used in validation rules.
func (r *Resource) SimpleName() string {
	return r.simpleName
}

// Namespace returns the parameter keys of the plug-in.
func (r *Resource) Namespace() params.Namespace {
	return r.ns
}

// LastVersion returns the last known version of the tool. Index listings do
// not advertise one.
func (r *Resource) LastVersion() string {
	return ""
}

// RepositoryURL returns the repository URL for the given parameters.
func (r *Resource) RepositoryURL(p params.Set) string {
	return r.repositoryURL(r.ns, p)
}

// ToData maps a repository index body to status data.
func (r *Resource) ToData(body string) any {
	return r.toData(body)
}

// credentials extracts the probe credentials from the parameters.
func (r *Resource) credentials(p params.Set) probe.Credentials {
	return probe.Credentials{
		User:     p.Get(r.ns.User),
		Password: p.Get(r.ns.Password),
		Token:    p.Get(r.ns.Token),
	}
}

// get probes url with the credentials of p.
func (r *Resource) get(ctx context.Context, url string, p params.Set) (probe.Result, error) {
	return r.prober.Probe(ctx, probe.Request{URL: url, Credentials: r.credentials(p)})
}
