package scm

import (
	"strings"

	"github.com/greg-hellings/scmindex/pkg/params"
)

// Home is the home feature of a subscription: where to browse the repository
// and where to find help.
type Home struct {
	URL  string `json:"url"`
	Help string `json:"help,omitempty"`
}

// HomeLink returns the home feature of a subscription of the given tool.
func HomeLink(tool string, p params.Set) Home {
	ns := params.NewNamespace(ToolKey(tool))
	return Home{
		URL:  strings.TrimSuffix(p.Get(ns.URL), "/") + "/" + p.Get(ns.Repository),
		Help: p.Get(ns.Help),
	}
}
