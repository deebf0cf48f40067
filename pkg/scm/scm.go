// Package scm provides the source code management service and the
// index-based tool resources plugged into it (e.g. "service:scm:svn").
package scm

import (
	"fmt"
	"strings"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/plugin"
	"github.com/greg-hellings/scmindex/pkg/probe"
)

// ServiceKey is the key of the SCM service.
const ServiceKey = "service:scm"

// Flavor selects how a tool builds repository URLs and status data.
type Flavor string

const (
	// FlavorIndex is a plain index server: default URL strategy, raw body status.
	FlavorIndex Flavor = "index"
	// FlavorSVN is a Subversion server: trailing slash URLs, revision status.
	FlavorSVN Flavor = "svn"
)

// Service is the parent SCM service resource.
type Service struct{}

// NewService creates the SCM service.
func NewService() *Service {
	return &Service{}
}

// Key returns the service key.
func (s *Service) Key() string {
	return ServiceKey
}

// ToolKey returns the plug-in key of a tool, e.g. "svn" -> "service:scm:svn".
func ToolKey(tool string) string {
	return ServiceKey + ":" + tool
}

// NewTool creates the resource of an index-based tool of the SCM service.
// The tool name is also the simple name used in validation rules.
func NewTool(tool string, prober probe.Prober, resolver params.Resolver, opts ...plugin.Option) (*plugin.Resource, error) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	return plugin.New(ToolKey(tool), tool, prober, resolver, opts...)
}

// NewFlavoredTool creates a tool resource configured for the given flavor.
// The flavor is case-insensitive; an empty flavor means FlavorIndex.
func NewFlavoredTool(tool string, flavor Flavor, prober probe.Prober, resolver params.Resolver) (*plugin.Resource, error) {
	switch Flavor(strings.ToLower(strings.TrimSpace(string(flavor)))) {
	case FlavorIndex, "":
		return NewTool(tool, prober, resolver)
	case FlavorSVN:
		return NewSVN(tool, prober, resolver)
	default:
		return nil, fmt.Errorf("unsupported flavor: %s (supported: %s)", flavor, strings.Join(SupportedFlavors(), ", "))
	}
}

// SupportedFlavors returns the list of supported flavors.
func SupportedFlavors() []string {
	return []string{string(FlavorIndex), string(FlavorSVN)}
}
