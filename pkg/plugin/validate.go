package plugin

import (
	"context"
	"log/slog"
	"strings"

	"github.com/greg-hellings/scmindex/pkg/index"
	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/validation"
)

// AccessState is the outcome of the administrative access check.
type AccessState int

const (
	// AccessNotStarted is the state before the gate is evaluated.
	AccessNotStarted AccessState = iota
	// AccessSkipped means the gate was closed and no probe was issued.
	AccessSkipped
	// AccessProbing means the server root is being fetched.
	AccessProbing
	// AccessPassed means the root listing was fetched and exposes the root anchor.
	AccessPassed
	// AccessFailed means the root listing was unreachable or incomplete.
	AccessFailed
)

func (s AccessState) String() string {
	switch s {
	case AccessNotStarted:
		return "not-started"
	case AccessSkipped:
		return "skipped"
	case AccessProbing:
		return "probing"
	case AccessPassed:
		return "passed"
	case AccessFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ValidateRepository fetches the repository URL and returns its body. An
// unreachable repository is a validation.RepositoryUnreachable error on the
// repository parameter.
func (r *Resource) ValidateRepository(ctx context.Context, p params.Set) (string, error) {
	url := r.RepositoryURL(p)
	res, err := r.get(ctx, url, p)
	if err != nil || !res.Reachable {
		slog.Debug("Repository validation failed",
			"plugin", r.key,
			"url", url,
			"status", res.StatusCode,
			"error", err)
		return "", validation.New(validation.RepositoryUnreachable,
			r.ns.Repository, r.simpleName+"-repository", p.Get(r.ns.Repository))
	}
	return res.Body, nil
}

// AdminCheckEnabled reports whether administrative access must be validated:
// the base URL is HTTP(S) and the index flag is exactly "true". Other
// schemes cannot be probed and are not penalised.
func (r *Resource) AdminCheckEnabled(p params.Set) bool {
	return strings.HasPrefix(p.Get(r.ns.URL), "http") && p.Get(r.ns.Index) == "true"
}

// ValidateAccess runs the administrative access check when enabled.
func (r *Resource) ValidateAccess(ctx context.Context, p params.Set) error {
	_, err := r.validateAccess(ctx, p)
	return err
}

func (r *Resource) validateAccess(ctx context.Context, p params.Set) (AccessState, error) {
	if !r.AdminCheckEnabled(p) {
		slog.Debug("Administrative validation skipped", "plugin", r.key, "state", AccessSkipped)
		return AccessSkipped, nil
	}
	return r.validateAdminAccess(ctx, p)
}

// validateAdminAccess fetches the server root and requires the root anchor.
func (r *Resource) validateAdminAccess(ctx context.Context, p params.Set) (AccessState, error) {
	url := BaseURL(r.ns, p)
	slog.Debug("Validating administrative access", "plugin", r.key, "url", url, "state", AccessProbing)

	res, err := r.get(ctx, url, p)
	if err != nil || !res.Reachable || !index.HasRootAnchor(res.Body) {
		slog.Debug("Administrative validation failed",
			"plugin", r.key,
			"url", url,
			"status", res.StatusCode,
			"error", err,
			"state", AccessFailed)
		return AccessFailed, validation.New(validation.AdminAccessDenied,
			r.ns.URL, r.simpleName+"-admin", p.Get(r.ns.User))
	}
	return AccessPassed, nil
}
