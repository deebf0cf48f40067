package plugin

import (
	"context"
	"fmt"

	"github.com/greg-hellings/scmindex/pkg/params"
)

// NodeStatus is the health of a node or subscription.
type NodeStatus string

const (
	// StatusUp means every enabled check passed.
	StatusUp NodeStatus = "up"
	// StatusDown means a check failed.
	StatusDown NodeStatus = "down"
)

// IsUp reports whether the status is up.
func (s NodeStatus) IsUp() bool {
	return s == StatusUp
}

// SubscriptionStatus is the status of a subscription with tool specific data.
type SubscriptionStatus struct {
	Status NodeStatus     `json:"status"`
	Data   map[string]any `json:"data"`
}

// Link validates the repository of a subscription. Administrative access is
// not checked here.
func (r *Resource) Link(ctx context.Context, subscription int) error {
	p, err := r.resolver.SubscriptionParameters(ctx, subscription)
	if err != nil {
		return fmt.Errorf("failed to resolve subscription parameters: %w", err)
	}
	if _, err := r.ValidateRepository(ctx, p); err != nil {
		return err
	}
	return nil
}

// CheckStatus reports whether the node described by p is up: the
// administrative access check passes or is not applicable. Validation errors
// are returned so callers can report the faulty parameter.
func (r *Resource) CheckStatus(ctx context.Context, p params.Set) (bool, error) {
	if err := r.ValidateAccess(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// CheckSubscriptionStatus validates the repository and maps its index body
// into the "info" data entry.
func (r *Resource) CheckSubscriptionStatus(ctx context.Context, p params.Set) (*SubscriptionStatus, error) {
	body, err := r.ValidateRepository(ctx, p)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{
		Status: StatusUp,
		Data:   map[string]any{"info": r.ToData(body)},
	}, nil
}
