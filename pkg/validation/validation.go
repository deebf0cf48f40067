// Package validation defines the typed errors raised when a repository or a
// server does not satisfy the access checks of an index-based plug-in.
package validation

import (
	"errors"
	"fmt"
)

// Kind identifies which check failed.
type Kind int

const (
	// RepositoryUnreachable means the repository URL could not be fetched.
	RepositoryUnreachable Kind = iota + 1
	// AdminAccessDenied means the server root could not be fetched or does not
	// expose the root listing.
	AdminAccessDenied
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case RepositoryUnreachable:
		return "RepositoryUnreachable"
	case AdminAccessDenied:
		return "AdminAccessDenied"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels usable with errors.Is.
var (
	ErrRepositoryUnreachable = errors.New("repository unreachable")
	ErrAdminAccessDenied     = errors.New("administrative access denied")
)

// Error is a validation failure attached to the parameter at fault.
type Error struct {
	Kind  Kind
	Field string // full parameter key, e.g. "service:scm:svn:repository"
	Rule  string // symbolic rule, e.g. "svn-repository"
	Value string // offending value, reported for diagnostics
}

// New creates a validation error.
func New(kind Kind, field, rule, value string) *Error {
	return &Error{Kind: kind, Field: field, Rule: rule, Value: value}
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed on %s: %s (%s)", e.Field, e.Rule, e.Value)
}

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case RepositoryUnreachable:
		return target == ErrRepositoryUnreachable
	case AdminAccessDenied:
		return target == ErrAdminAccessDenied
	}
	return false
}

// As returns the validation error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
