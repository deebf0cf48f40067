// Package report checks every configured node and subscription of the SCM
// tools in parallel and aggregates the outcome into a health report.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/greg-hellings/scmindex/pkg/config"
	"github.com/greg-hellings/scmindex/pkg/plugin"
	"github.com/greg-hellings/scmindex/pkg/scm"
)

// Report contains the results of checking nodes and subscriptions
type Report struct {
	Nodes         []NodeReport
	Subscriptions []SubscriptionReport
}

// NodeReport is the administrative access status of a node
type NodeReport struct {
	Tool string `json:"tool"`
	Node string `json:"node"`
	Up   bool   `json:"up"`

	// Error contains any error encountered during the check
	Error error `json:"-"`
}

// SubscriptionReport is the repository status of a subscription
type SubscriptionReport struct {
	Tool         string            `json:"tool"`
	Subscription int               `json:"subscription"`
	Node         string            `json:"node"`
	Repository   string            `json:"repository"`
	Status       plugin.NodeStatus `json:"status"`
	Info         any               `json:"info,omitempty"`
	Home         scm.Home          `json:"home"`

	// Error contains any error encountered during the check
	Error error `json:"-"`
}

// Generator checks the tools of a registry
type Generator struct {
	registry *scm.Registry
}

// NewGenerator creates a new report generator
func NewGenerator(registry *scm.Registry) *Generator {
	return &Generator{registry: registry}
}

// Generate checks every node and subscription declared in cfg
func (g *Generator) Generate(ctx context.Context, cfg *config.Config) (*Report, error) {
	// Check if context is already canceled
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	type nodeJob struct {
		tool string
		node string
	}
	type subJob struct {
		tool string
		sub  config.SubscriptionConfig
	}
	var nodeJobs []nodeJob
	var subJobs []subJob
	for _, tool := range cfg.Tools {
		for _, node := range tool.Nodes {
			nodeJobs = append(nodeJobs, nodeJob{tool: tool.Name, node: node.ID})
		}
		for _, sub := range tool.Subscriptions {
			subJobs = append(subJobs, subJob{tool: tool.Name, sub: sub})
		}
	}

	slog.Info("Starting status report generation",
		"nodeCount", len(nodeJobs),
		"subscriptionCount", len(subJobs))

	// Check in parallel; the resources are safe for concurrent use
	var wg sync.WaitGroup
	nodeReports := make([]NodeReport, len(nodeJobs))
	subReports := make([]SubscriptionReport, len(subJobs))

	for i, job := range nodeJobs {
		wg.Add(1)
		go func(index int, j nodeJob) {
			defer wg.Done()
			nodeReports[index] = g.checkNode(ctx, j.tool, j.node)
		}(i, job)
	}
	for i, job := range subJobs {
		wg.Add(1)
		go func(index int, j subJob) {
			defer wg.Done()
			subReports[index] = g.checkSubscription(ctx, j.tool, j.sub)
		}(i, job)
	}

	wg.Wait()

	// Check if context was canceled during the checks
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sort.SliceStable(subReports, func(i, j int) bool {
		return subReports[i].Subscription < subReports[j].Subscription
	})

	slog.Info("Status report generation complete",
		"nodeCount", len(nodeReports),
		"subscriptionCount", len(subReports))

	return &Report{Nodes: nodeReports, Subscriptions: subReports}, nil
}

// checkNode runs the administrative access check of a node
func (g *Generator) checkNode(ctx context.Context, toolName, node string) NodeReport {
	report := NodeReport{Tool: toolName, Node: node}

	tool, ok := g.registry.Tool(toolName)
	if !ok {
		report.Error = fmt.Errorf("unknown tool: %s", toolName)
		return report
	}

	p, err := g.registry.Resolver().NodeParameters(ctx, node)
	if err != nil {
		report.Error = fmt.Errorf("failed to resolve node parameters: %w", err)
		return report
	}

	report.Up, report.Error = tool.CheckStatus(ctx, p)
	slog.Debug("Node checked", "tool", toolName, "node", node, "up", report.Up, "error", report.Error)
	return report
}

// checkSubscription validates the repository of a subscription
func (g *Generator) checkSubscription(ctx context.Context, toolName string, sub config.SubscriptionConfig) SubscriptionReport {
	report := SubscriptionReport{
		Tool:         toolName,
		Subscription: sub.ID,
		Node:         sub.Node,
		Status:       plugin.StatusDown,
	}

	tool, ok := g.registry.Tool(toolName)
	if !ok {
		report.Error = fmt.Errorf("unknown tool: %s", toolName)
		return report
	}

	p, err := g.registry.Resolver().SubscriptionParameters(ctx, sub.ID)
	if err != nil {
		report.Error = fmt.Errorf("failed to resolve subscription parameters: %w", err)
		return report
	}
	report.Repository = p.Get(tool.Namespace().Repository)
	report.Home = scm.HomeLink(toolName, p)

	status, err := tool.CheckSubscriptionStatus(ctx, p)
	if err != nil {
		report.Error = err
		slog.Debug("Subscription check failed", "tool", toolName, "subscription", sub.ID, "error", err)
		return report
	}
	report.Status = status.Status
	report.Info = status.Data["info"]
	return report
}

// HasErrors returns true if any check encountered an error
func (r *Report) HasErrors() bool {
	for _, n := range r.Nodes {
		if n.Error != nil {
			return true
		}
	}
	for _, s := range r.Subscriptions {
		if s.Error != nil {
			return true
		}
	}
	return false
}

// GetErrors returns all errors keyed by node or subscription identifier
func (r *Report) GetErrors() map[string]error {
	errors := make(map[string]error)
	for _, n := range r.Nodes {
		if n.Error != nil {
			errors[n.GetIdentifier()] = n.Error
		}
	}
	for _, s := range r.Subscriptions {
		if s.Error != nil {
			errors[s.GetIdentifier()] = s.Error
		}
	}
	return errors
}

// GetIdentifier returns a human-readable identifier for a node report
func (n *NodeReport) GetIdentifier() string {
	return fmt.Sprintf("%s/%s", n.Tool, n.Node)
}

// GetIdentifier returns a human-readable identifier for a subscription report
func (s *SubscriptionReport) GetIdentifier() string {
	return fmt.Sprintf("%s/#%d", s.Tool, s.Subscription)
}
