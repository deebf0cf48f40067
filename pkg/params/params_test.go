package params

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNewNamespace(t *testing.T) {
	ns := NewNamespace("service:scm:svn")

	checks := map[string]string{
		ns.Key:        "service:scm:svn",
		ns.URL:        "service:scm:svn:url",
		ns.Repository: "service:scm:svn:repository",
		ns.User:       "service:scm:svn:user",
		ns.Password:   "service:scm:svn:password",
		ns.Index:      "service:scm:svn:index",
		ns.Token:      "service:scm:svn:token",
		ns.Help:       "service:scm:svn:help",
	}
	for got, want := range checks {
		if got != want {
			t.Errorf("Expected key %s, got %s", want, got)
		}
	}

	if q := ns.Qualify("url"); q != ns.URL {
		t.Errorf("Qualify(url) = %s, want %s", q, ns.URL)
	}
}

func TestSetGetMissing(t *testing.T) {
	var s Set
	if v := s.Get("anything"); v != "" {
		t.Errorf("Expected empty value from nil set, got %q", v)
	}

	s = Set{"a": "1"}
	if v := s.Get("a"); v != "1" {
		t.Errorf("Expected 1, got %q", v)
	}
	if v := s.Get("b"); v != "" {
		t.Errorf("Expected empty value for missing key, got %q", v)
	}
}

func TestStoreNodeParameters(t *testing.T) {
	store := NewStore()
	in := Set{"service:url": "http://localhost"}
	store.PutNode("service:impl:node", in)

	// Mutating the input after storing must not leak into the store
	in["service:url"] = "changed"

	got, err := store.NodeParameters(context.Background(), "service:impl:node")
	if err != nil {
		t.Fatalf("NodeParameters error: %v", err)
	}
	if got["service:url"] != "http://localhost" {
		t.Errorf("Expected stored url, got %q", got["service:url"])
	}

	// Mutating the returned copy must not leak into the store either
	got["service:url"] = "changed again"
	again, _ := store.NodeParameters(context.Background(), "service:impl:node")
	if again["service:url"] != "http://localhost" {
		t.Errorf("Store leaked a mutable reference: %q", again["service:url"])
	}
}

func TestStoreNotFound(t *testing.T) {
	store := NewStore()

	if _, err := store.NodeParameters(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for node, got %v", err)
	}
	if _, err := store.SubscriptionParameters(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for subscription, got %v", err)
	}
}

func TestStoreListing(t *testing.T) {
	store := NewStore()
	store.PutNode("b", Set{})
	store.PutNode("a", Set{})
	store.PutSubscription(3, Set{})
	store.PutSubscription(1, Set{})

	nodes := store.Nodes()
	if len(nodes) != 2 || nodes[0] != "a" || nodes[1] != "b" {
		t.Errorf("Unexpected nodes: %v", nodes)
	}
	subs := store.Subscriptions()
	if len(subs) != 2 || subs[0] != 1 || subs[1] != 3 {
		t.Errorf("Unexpected subscriptions: %v", subs)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()
	store.PutSubscription(1, Set{"k": "v"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.SubscriptionParameters(context.Background(), 1)
		}()
		go func(n int) {
			defer wg.Done()
			store.PutSubscription(n+100, Set{"k": "v"})
		}(i)
	}
	wg.Wait()

	if got := len(store.Subscriptions()); got != 51 {
		t.Errorf("Expected 51 subscriptions, got %d", got)
	}
}
