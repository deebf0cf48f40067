package plugin

import (
	"strings"

	"github.com/greg-hellings/scmindex/pkg/params"
)

// RepositoryURLFunc builds the URL of the repository described by p.
type RepositoryURLFunc func(ns params.Namespace, p params.Set) string

// DefaultRepositoryURL joins the base URL and the repository fragment with
// exactly one slash. The fragment itself is used as is.
func DefaultRepositoryURL(ns params.Namespace, p params.Set) string {
	return BaseURL(ns, p) + p.Get(ns.Repository)
}

// TrailingSlashRepositoryURL is DefaultRepositoryURL with a trailing slash
// enforced, as required by servers that only list a directory when asked for
// "repo/".
func TrailingSlashRepositoryURL(ns params.Namespace, p params.Set) string {
	return appendIfMissing(DefaultRepositoryURL(ns, p), "/")
}

// BaseURL returns the server URL with a trailing slash.
func BaseURL(ns params.Namespace, p params.Set) string {
	return appendIfMissing(p.Get(ns.URL), "/")
}

func appendIfMissing(s, suffix string) string {
	if strings.HasSuffix(s, suffix) {
		return s
	}
	return s + suffix
}
