package scm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/plugin"
	"github.com/greg-hellings/scmindex/pkg/probe"
)

// Registry holds the tool resources of the SCM service by tool name. All
// tools share the same prober and parameter resolver.
type Registry struct {
	service  *Service
	prober   probe.Prober
	resolver params.Resolver

	mu    sync.RWMutex
	tools map[string]*plugin.Resource
}

// NewRegistry creates an empty registry.
func NewRegistry(prober probe.Prober, resolver params.Resolver) *Registry {
	return &Registry{
		service:  NewService(),
		prober:   prober,
		resolver: resolver,
		tools:    make(map[string]*plugin.Resource),
	}
}

// Service returns the parent SCM service.
func (r *Registry) Service() *Service {
	return r.service
}

// Resolver returns the parameter resolver shared by the tools.
func (r *Registry) Resolver() params.Resolver {
	return r.resolver
}

// Register creates and stores the resource of a tool.
func (r *Registry) Register(tool string, flavor Flavor) (*plugin.Resource, error) {
	res, err := NewFlavoredTool(tool, flavor, r.prober, r.resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to register tool %s: %w", tool, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[res.SimpleName()]; exists {
		return nil, fmt.Errorf("tool %s already registered", res.SimpleName())
	}
	r.tools[res.SimpleName()] = res
	return res, nil
}

// Tool returns the resource of a registered tool.
func (r *Registry) Tool(name string) (*plugin.Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.tools[name]
	return res, ok
}

// Names returns the sorted names of the registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
