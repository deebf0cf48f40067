// Package config loads the declaration of SCM tools, their nodes, and their
// subscriptions from a YAML or TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/probe"
	"github.com/greg-hellings/scmindex/pkg/scm"
)

// DefaultTimeout is the probe timeout used when none is configured.
const DefaultTimeout = "30s"

// Config represents the top-level configuration file structure
type Config struct {
	Probe ProbeConfig  `yaml:"probe" toml:"probe"`
	Tools []ToolConfig `yaml:"tools" toml:"tools" validate:"dive"`
}

// ProbeConfig configures the HTTP probe shared by every tool
type ProbeConfig struct {
	Timeout string `yaml:"timeout" toml:"timeout"`
}

// ToolConfig declares an index-based tool of the SCM service
type ToolConfig struct {
	Name          string               `yaml:"name" toml:"name" validate:"required"`
	Flavor        string               `yaml:"flavor" toml:"flavor" validate:"omitempty,oneof=index svn"`
	Nodes         []NodeConfig         `yaml:"nodes" toml:"nodes" validate:"dive"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" toml:"subscriptions" validate:"dive"`
}

// NodeConfig declares a node (a configured server) and its parameters.
// Parameter names are either short ("url") or fully qualified
// ("service:scm:svn:url").
type NodeConfig struct {
	ID         string            `yaml:"id" toml:"id" validate:"required"`
	Parameters map[string]string `yaml:"parameters" toml:"parameters"`
}

// SubscriptionConfig declares a subscription to a node. Its parameters
// override the ones inherited from the node.
type SubscriptionConfig struct {
	ID         int               `yaml:"id" toml:"id" validate:"gt=0"`
	Node       string            `yaml:"node" toml:"node" validate:"required"`
	Parameters map[string]string `yaml:"parameters" toml:"parameters"`
}

// LoadFromFile reads a YAML or TOML configuration file (by extension) and
// returns the parsed, validated Config
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills in default values and validates the configuration
func (c *Config) ApplyDefaults() error {
	if c.Probe.Timeout == "" {
		c.Probe.Timeout = DefaultTimeout
	}
	if _, err := time.ParseDuration(c.Probe.Timeout); err != nil {
		return fmt.Errorf("invalid probe timeout %q: %w", c.Probe.Timeout, err)
	}

	for i := range c.Tools {
		tool := &c.Tools[i]
		tool.Name = strings.TrimSpace(tool.Name)
		tool.Flavor = strings.ToLower(strings.TrimSpace(tool.Flavor))
		if tool.Flavor == "" {
			tool.Flavor = string(scm.FlavorIndex)
		}
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	toolNames := make(map[string]bool)
	nodeIDs := make(map[string]bool)
	subscriptionIDs := make(map[int]bool)
	for _, tool := range c.Tools {
		if toolNames[tool.Name] {
			return fmt.Errorf("tool %s: declared more than once", tool.Name)
		}
		toolNames[tool.Name] = true

		toolNodes := make(map[string]bool)
		for _, node := range tool.Nodes {
			if nodeIDs[node.ID] {
				return fmt.Errorf("tool %s: node %s declared more than once", tool.Name, node.ID)
			}
			nodeIDs[node.ID] = true
			toolNodes[node.ID] = true
		}
		for _, sub := range tool.Subscriptions {
			if subscriptionIDs[sub.ID] {
				return fmt.Errorf("tool %s: subscription %d declared more than once", tool.Name, sub.ID)
			}
			subscriptionIDs[sub.ID] = true
			if !toolNodes[sub.Node] {
				return fmt.Errorf("tool %s: subscription %d references unknown node %s", tool.Name, sub.ID, sub.Node)
			}
		}
	}

	return nil
}

// Timeout returns the probe timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Probe.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// Tool returns the tool declared with name.
func (c *Config) Tool(name string) (*ToolConfig, bool) {
	for i := range c.Tools {
		if c.Tools[i].Name == name {
			return &c.Tools[i], true
		}
	}
	return nil, false
}

// Key returns the plug-in key of the tool.
func (t *ToolConfig) Key() string {
	return scm.ToolKey(t.Name)
}

// node returns the node declared with id.
func (t *ToolConfig) node(id string) (NodeConfig, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeConfig{}, false
}

// Store builds the parameter store of every tool. Short parameter names are
// qualified with the tool key and subscriptions inherit their node's
// parameters.
func (c *Config) Store() *params.Store {
	store := params.NewStore()
	for i := range c.Tools {
		tool := &c.Tools[i]
		ns := params.NewNamespace(tool.Key())

		for _, node := range tool.Nodes {
			store.PutNode(node.ID, qualify(ns, node.Parameters))
		}
		for _, sub := range tool.Subscriptions {
			node, _ := tool.node(sub.Node)
			merged := qualify(ns, node.Parameters)
			for k, v := range qualify(ns, sub.Parameters) {
				merged[k] = v
			}
			store.PutSubscription(sub.ID, merged)
		}
	}
	return store
}

func qualify(ns params.Namespace, in map[string]string) params.Set {
	out := make(params.Set, len(in))
	for k, v := range in {
		if !strings.Contains(k, ":") {
			k = ns.Qualify(k)
		}
		out[k] = v
	}
	return out
}

// NewRegistry registers every declared tool in a registry backed by the
// configuration's parameter store.
func (c *Config) NewRegistry(prober probe.Prober) (*scm.Registry, error) {
	reg := scm.NewRegistry(prober, c.Store())
	for _, tool := range c.Tools {
		if _, err := reg.Register(tool.Name, scm.Flavor(tool.Flavor)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
