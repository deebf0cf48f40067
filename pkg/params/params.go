// Package params defines the parameter namespace of an index-based plug-in,
// the parameter sets handed to it per invocation, and the collaborator that
// resolves those sets for nodes and subscriptions.
package params

import (
	"context"
	"errors"
)

// Set is an immutable-by-convention mapping from a full parameter key
// (e.g. "service:scm:svn:url") to its value. Missing keys read as "".
type Set map[string]string

// Get returns the value for key, or "" when absent.
func (s Set) Get(key string) string {
	return s[key]
}

// Clone returns a shallow copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Namespace holds the parameter keys derived from a plug-in key.
type Namespace struct {
	Key        string
	URL        string // base server URL
	Repository string // repository path fragment
	User       string
	Password   string
	Index      string // "true" when the server root exposes an index to validate admin access
	Token      string // optional bearer token, replaces basic credentials when set
	Help       string // optional help link shown next to the repository home link
}

// NewNamespace derives the parameter keys of the plug-in identified by key.
func NewNamespace(key string) Namespace {
	return Namespace{
		Key:        key,
		URL:        key + ":url",
		Repository: key + ":repository",
		User:       key + ":user",
		Password:   key + ":password",
		Index:      key + ":index",
		Token:      key + ":token",
		Help:       key + ":help",
	}
}

// Qualify returns the full parameter key for a short name, e.g. "url" ->
// "service:scm:svn:url".
func (n Namespace) Qualify(name string) string {
	return n.Key + ":" + name
}

// ErrNotFound is returned when no parameters exist for a node or subscription.
var ErrNotFound = errors.New("parameters not found")

// Resolver resolves the parameters of nodes and subscriptions. Implementations
// must be safe for concurrent use.
type Resolver interface {
	// SubscriptionParameters returns the parameters of a subscription,
	// including the ones inherited from its node.
	SubscriptionParameters(ctx context.Context, subscription int) (Set, error)

	// NodeParameters returns the parameters of a node.
	NodeParameters(ctx context.Context, node string) (Set, error)
}
