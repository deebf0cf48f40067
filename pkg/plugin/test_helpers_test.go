package plugin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/probe"
)

// rootListing is the server root index, listing repositories and the root anchor
const rootListing = `<html><head><title>Repositories</title></head><body><ul>
<li><a href="/">..</a></li>
<li><a href="has-event/">has-event/</a></li>
<li><a href="other/">other/</a></li>
<li><a href="bootstrap/">bootstrap/</a></li>
<li><a href="cas-client/">cas-client/</a></li>
<li><a href="gas-meter/">gas-meter/</a></li>
<li><a href="mas-ter/">mas-ter/</a></li>
</ul></body></html>`

// repoListing is the index of my-repo
const repoListing = `<html><head><title>my-repo - Revision 12: /</title></head><body><ul>
<li><a href="../">..</a></li>
<li><a href="trunk/">trunk/</a></li>
<li><a href="tags/">tags/</a></li>
</ul></body></html>`

// mockIndexServer serves configurable paths and records requests.
type mockIndexServer struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]mockRoute
	requests []string
}

type mockRoute struct {
	status int
	body   string
}

func newMockIndexServer(t *testing.T) *mockIndexServer {
	t.Helper()
	m := &mockIndexServer{routes: make(map[string]mockRoute)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.URL.Path)
		route, ok := m.routes[r.URL.Path]
		m.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(route.status)
		_, _ = w.Write([]byte(route.body))
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockIndexServer) stub(path string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = mockRoute{status: status, body: body}
}

func (m *mockIndexServer) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// fixture builds the standard resource used across tests: key "service",
// simple name "impl", subscription 1 and node "service:impl:node" sharing
// the same parameters.
type fixture struct {
	server     *mockIndexServer
	store      *params.Store
	parameters params.Set
	resource   *Resource
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	srv := newMockIndexServer(t)
	f := &fixture{
		server: srv,
		store:  params.NewStore(),
		parameters: params.Set{
			"service:url":        srv.URL,
			"service:user":       "user",
			"service:password":   "secret",
			"service:index":      "true",
			"service:repository": "my-repo",
		},
	}
	f.sync()

	res, err := New("service", "impl", probe.NewHTTPProber(), f.store, opts...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	f.resource = res
	return f
}

// sync pushes the current parameters to the store.
func (f *fixture) sync() {
	f.store.PutSubscription(1, f.parameters)
	f.store.PutNode("service:impl:node", f.parameters)
}

func (f *fixture) set(key, value string) {
	f.parameters[key] = value
	f.sync()
}

// countingProber records probes and answers with a fixed result.
type countingProber struct {
	mu     sync.Mutex
	calls  []probe.Request
	result probe.Result
	err    error
}

func (c *countingProber) Probe(_ context.Context, req probe.Request) (probe.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	return c.result, c.err
}

func (c *countingProber) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
