package params

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store is a thread-safe, in-memory Resolver. It is populated from the
// configuration file by the CLI and used directly by tests.
type Store struct {
	mu            sync.RWMutex
	nodes         map[string]Set
	subscriptions map[int]Set
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes:         make(map[string]Set),
		subscriptions: make(map[int]Set),
	}
}

// PutNode stores or replaces the parameters of a node.
func (s *Store) PutNode(node string, set Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node] = set.Clone()
}

// PutSubscription stores or replaces the parameters of a subscription.
func (s *Store) PutSubscription(subscription int, set Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[subscription] = set.Clone()
}

// NodeParameters returns a copy of the node parameters.
func (s *Store) NodeParameters(_ context.Context, node string) (Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.nodes[node]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", node, ErrNotFound)
	}
	return set.Clone(), nil
}

// SubscriptionParameters returns a copy of the subscription parameters.
func (s *Store) SubscriptionParameters(_ context.Context, subscription int) (Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.subscriptions[subscription]
	if !ok {
		return nil, fmt.Errorf("subscription %d: %w", subscription, ErrNotFound)
	}
	return set.Clone(), nil
}

// Nodes returns the sorted identifiers of all stored nodes.
func (s *Store) Nodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Subscriptions returns the sorted identifiers of all stored subscriptions.
func (s *Store) Subscriptions() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.subscriptions))
	for id := range s.subscriptions {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
