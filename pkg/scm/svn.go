package scm

import (
	"regexp"
	"strconv"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/plugin"
	"github.com/greg-hellings/scmindex/pkg/probe"
)

// revisionPattern matches the revision advertised in the title of a
// Subversion index: "<title>repo - Revision 123: /</title>".
var revisionPattern = regexp.MustCompile(`Revision\s+(\d+)\s*:`)

// Revision extracts the revision number from a Subversion index body.
func Revision(body string) (int, bool) {
	m := revisionPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	rev, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return rev, true
}

// RevisionData maps an index body to its revision number, or to the raw body
// when no revision is advertised.
func RevisionData(body string) any {
	if rev, ok := Revision(body); ok {
		return rev
	}
	return body
}

// NewSVN creates a Subversion tool. Subversion only lists a repository when
// asked for "repo/", and the status data is the revision number.
func NewSVN(tool string, prober probe.Prober, resolver params.Resolver) (*plugin.Resource, error) {
	if tool == "" {
		tool = string(FlavorSVN)
	}
	return NewTool(tool, prober, resolver,
		plugin.WithRepositoryURL(plugin.TrailingSlashRepositoryURL),
		plugin.WithToData(RevisionData))
}
