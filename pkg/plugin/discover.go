package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greg-hellings/scmindex/pkg/index"
	"github.com/greg-hellings/scmindex/pkg/normalize"
)

// FindAllByName returns at most ten repositories of the node's server whose
// name contains criterion, ignoring case, accents, and punctuation. Entries
// keep the order of the root listing.
//
// An unreachable server or an unparsable listing yields no entries rather
// than an error; only an unknown node is reported.
func (r *Resource) FindAllByName(ctx context.Context, node, criterion string) ([]index.Entry, error) {
	p, err := r.resolver.NodeParameters(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve node parameters: %w", err)
	}

	url := BaseURL(r.ns, p)
	body := ""
	res, err := r.get(ctx, url, p)
	switch {
	case err != nil:
		slog.Debug("Root listing request failed", "plugin", r.key, "url", url, "error", err)
	case !res.Reachable:
		slog.Debug("Root listing unreachable", "plugin", r.key, "url", url, "status", res.StatusCode)
	default:
		body = res.Body
	}

	wanted := normalize.Normalize(criterion)
	matches := make([]index.Entry, 0)
	for _, name := range index.ParseEntries(body) {
		if strings.Contains(normalize.Normalize(name), wanted) {
			matches = append(matches, index.NewEntry(name))
		}
	}

	slog.Debug("Repository discovery complete",
		"plugin", r.key,
		"node", node,
		"criterion", criterion,
		"matches", len(matches))

	return index.NewPage(matches, index.DefaultPageRequest).Content, nil
}
