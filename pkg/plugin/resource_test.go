package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/greg-hellings/scmindex/pkg/index"
	"github.com/greg-hellings/scmindex/pkg/params"
	"github.com/greg-hellings/scmindex/pkg/probe"
	"github.com/greg-hellings/scmindex/pkg/validation"
)

func assertValidationError(t *testing.T, err error, kind validation.Kind, field, rule, value string) {
	t.Helper()
	verr, ok := validation.As(err)
	if !ok {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if verr.Kind != kind {
		t.Errorf("Kind = %s, want %s", verr.Kind, kind)
	}
	if verr.Field != field {
		t.Errorf("Field = %s, want %s", verr.Field, field)
	}
	if verr.Rule != rule {
		t.Errorf("Rule = %s, want %s", verr.Rule, rule)
	}
	if verr.Value != value {
		t.Errorf("Value = %s, want %s", verr.Value, value)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	store := params.NewStore()
	prober := probe.NewHTTPProber()

	if _, err := New("", "impl", prober, store); err == nil {
		t.Error("Expected error for empty key")
	}
	if _, err := New("service", "impl", nil, store); err == nil {
		t.Error("Expected error for nil prober")
	}
	if _, err := New("service", "impl", prober, nil); err == nil {
		t.Error("Expected error for nil resolver")
	}
}

func TestGetKey(t *testing.T) {
	f := newFixture(t)
	if f.resource.Key() != "service" {
		t.Errorf("Expected key service, got %s", f.resource.Key())
	}
	if f.resource.SimpleName() != "impl" {
		t.Errorf("Expected simple name impl, got %s", f.resource.SimpleName())
	}
	if f.resource.Namespace().URL != "service:url" {
		t.Errorf("Unexpected namespace: %+v", f.resource.Namespace())
	}
}

func TestLastVersion(t *testing.T) {
	f := newFixture(t)
	if v := f.resource.LastVersion(); v != "" {
		t.Errorf("Expected no last version, got %q", v)
	}
}

func TestRepositoryURL(t *testing.T) {
	ns := params.NewNamespace("service")

	tests := []struct {
		name string
		url  string
		repo string
		want string
	}{
		{name: "slash added", url: "http://host", repo: "repo", want: "http://host/repo"},
		{name: "slash not doubled", url: "http://host/", repo: "repo", want: "http://host/repo"},
		{name: "path kept", url: "http://host/svn", repo: "repo", want: "http://host/svn/repo"},
		{name: "fragment not normalized", url: "http://host", repo: "/repo", want: "http://host//repo"},
		{name: "missing everything", url: "", repo: "", want: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params.Set{ns.URL: tt.url, ns.Repository: tt.repo}
			if got := DefaultRepositoryURL(ns, p); got != tt.want {
				t.Errorf("DefaultRepositoryURL() = %q, want %q", got, tt.want)
			}
			if got := TrailingSlashRepositoryURL(ns, p); got != appendIfMissing(tt.want, "/") {
				t.Errorf("TrailingSlashRepositoryURL() = %q", got)
			}
		})
	}
}

func TestRepositoryURLSingleSeparator(t *testing.T) {
	ns := params.NewNamespace("k")
	for _, base := range []string{"http://h", "http://h/", "https://h/a", "https://h/a/"} {
		got := DefaultRepositoryURL(ns, params.Set{ns.URL: base, ns.Repository: "r"})
		trimmed := strings.TrimSuffix(base, "/")
		if got != trimmed+"/r" {
			t.Errorf("base %q: got %q, want %q", base, got, trimmed+"/r")
		}
	}
}

func TestWithRepositoryURLStrategy(t *testing.T) {
	f := newFixture(t, WithRepositoryURL(func(ns params.Namespace, p params.Set) string {
		return BaseURL(ns, p) + "repos/" + p.Get(ns.Repository)
	}))
	f.server.stub("/repos/my-repo", http.StatusOK, repoListing)

	if err := f.resource.Link(context.Background(), 1); err != nil {
		t.Fatalf("Link error: %v", err)
	}

	// nil strategies are ignored
	res, err := New("service", "impl", probe.NewHTTPProber(), f.store, WithRepositoryURL(nil), WithToData(nil))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got := res.RepositoryURL(params.Set{"service:url": "http://h", "service:repository": "r"}); got != "http://h/r" {
		t.Errorf("Expected default strategy, got %q", got)
	}
	if got := res.ToData("body"); got != "body" {
		t.Errorf("Expected identity data, got %v", got)
	}
}

func TestLink(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/my-repo", http.StatusOK, repoListing)

	if err := f.resource.Link(context.Background(), 1); err != nil {
		t.Fatalf("Link error: %v", err)
	}

	// Link never checks administrative access
	for _, path := range f.server.requested() {
		if path == "/" {
			t.Error("Link must not probe the server root")
		}
	}
}

func TestLinkNotFound(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/my-repo", http.StatusOK, repoListing)
	f.set("service:repository", "missing-repo")

	err := f.resource.Link(context.Background(), 1)
	assertValidationError(t, err, validation.RepositoryUnreachable, "service:repository", "impl-repository", "missing-repo")
	if !errors.Is(err, validation.ErrRepositoryUnreachable) {
		t.Error("Expected error to match ErrRepositoryUnreachable")
	}
}

func TestLinkUnknownSubscription(t *testing.T) {
	f := newFixture(t)

	err := f.resource.Link(context.Background(), 99)
	if !errors.Is(err, params.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, ok := validation.As(err); ok {
		t.Error("Unknown subscription is not a validation error")
	}
}

func TestLinkAuthenticationFailed(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/my-repo", http.StatusOK, repoListing)
	f.set("service:password", "wrong")

	err := f.resource.Link(context.Background(), 1)
	assertValidationError(t, err, validation.RepositoryUnreachable, "service:repository", "impl-repository", "my-repo")
}

func TestLinkPasswordTrimmed(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/my-repo", http.StatusOK, repoListing)
	f.set("service:password", "  secret \n")

	if err := f.resource.Link(context.Background(), 1); err != nil {
		t.Fatalf("Expected trimmed password to authenticate: %v", err)
	}
}

func TestCheckSubscriptionStatus(t *testing.T) {
	f := newFixture(t,
		WithRepositoryURL(TrailingSlashRepositoryURL),
		WithToData(func(string) any { return 1 }))
	f.server.stub("/my-repo/", http.StatusOK, repoListing)

	status, err := f.resource.CheckSubscriptionStatus(context.Background(), f.parameters)
	if err != nil {
		t.Fatalf("CheckSubscriptionStatus error: %v", err)
	}
	if !status.Status.IsUp() {
		t.Error("Expected status up")
	}
	if status.Data["info"] != 1 {
		t.Errorf("Expected info 1, got %v", status.Data["info"])
	}
}

func TestCheckSubscriptionStatusDefaultData(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/my-repo", http.StatusOK, repoListing)

	status, err := f.resource.CheckSubscriptionStatus(context.Background(), f.parameters)
	if err != nil {
		t.Fatalf("CheckSubscriptionStatus error: %v", err)
	}
	if status.Data["info"] != repoListing {
		t.Errorf("Expected the raw body as info, got %v", status.Data["info"])
	}
}

func TestCheckSubscriptionStatusNotFound(t *testing.T) {
	f := newFixture(t)

	status, err := f.resource.CheckSubscriptionStatus(context.Background(), f.parameters)
	if status != nil {
		t.Errorf("Expected no status, got %+v", status)
	}
	assertValidationError(t, err, validation.RepositoryUnreachable, "service:repository", "impl-repository", "my-repo")
}

func TestToDataIdentity(t *testing.T) {
	res, err := New("service:scm:impl", "impl", probe.NewHTTPProber(), params.NewStore())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got := res.ToData("some"); got != "some" {
		t.Errorf("Expected some, got %v", got)
	}
}

func TestCheckStatus(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/", http.StatusOK, rootListing)

	up, err := f.resource.CheckStatus(context.Background(), f.parameters)
	if err != nil {
		t.Fatalf("CheckStatus error: %v", err)
	}
	if !up {
		t.Error("Expected status up")
	}
}

func TestCheckStatusURLWithTrailingSlash(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/", http.StatusOK, rootListing)
	f.set("service:url", f.server.URL+"/")

	if up, err := f.resource.CheckStatus(context.Background(), f.parameters); err != nil || !up {
		t.Fatalf("Expected up, got %v / %v", up, err)
	}
}

func TestCheckStatusAuthenticationFailed(t *testing.T) {
	f := newFixture(t)

	up, err := f.resource.CheckStatus(context.Background(), f.parameters)
	if up {
		t.Error("Expected status down")
	}
	assertValidationError(t, err, validation.AdminAccessDenied, "service:url", "impl-admin", "user")
}

func TestCheckStatusNotAdmin(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/", http.StatusNotFound, "")

	_, err := f.resource.CheckStatus(context.Background(), f.parameters)
	assertValidationError(t, err, validation.AdminAccessDenied, "service:url", "impl-admin", "user")
	if !errors.Is(err, validation.ErrAdminAccessDenied) {
		t.Error("Expected error to match ErrAdminAccessDenied")
	}
}

func TestCheckStatusInvalidIndex(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/", http.StatusOK, "<html>some</html>")

	_, err := f.resource.CheckStatus(context.Background(), f.parameters)
	assertValidationError(t, err, validation.AdminAccessDenied, "service:url", "impl-admin", "user")
}

// TestCheckStatusGate covers the administrative gate. Only the exact literal
// "true" enables the check: "True", "TRUE" and "1" all skip it.
func TestCheckStatusGate(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		index     string
		dropIndex bool
		wantProbe bool
	}{
		{name: "http and true", url: "http://host", index: "true", wantProbe: true},
		{name: "https and true", url: "https://host", index: "true", wantProbe: true},
		{name: "index false", url: "http://host", index: "false"},
		{name: "index missing", url: "http://host", dropIndex: true},
		{name: "index True", url: "http://host", index: "True"},
		{name: "index TRUE", url: "http://host", index: "TRUE"},
		{name: "index 1", url: "http://host", index: "1"},
		{name: "index padded", url: "http://host", index: " true"},
		{name: "custom scheme", url: "custom://host", index: "true"},
		{name: "hq scheme", url: "hq://", index: "true"},
		{name: "upper case scheme", url: "HTTP://host", index: "true"},
		{name: "missing url", url: "", index: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &countingProber{result: probe.Result{Reachable: true, StatusCode: 200, Body: index.RootAnchor}}
			res, err := New("service", "impl", prober, params.NewStore())
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			p := params.Set{"service:url": tt.url, "service:index": tt.index, "service:user": "user"}
			if tt.dropIndex {
				delete(p, "service:index")
			}

			up, err := res.CheckStatus(context.Background(), p)
			if err != nil || !up {
				t.Fatalf("Expected up without error, got %v / %v", up, err)
			}
			if got := prober.count() == 1; got != tt.wantProbe {
				t.Errorf("Probe issued = %v, want %v", got, tt.wantProbe)
			}
			if res.AdminCheckEnabled(p) != tt.wantProbe {
				t.Errorf("AdminCheckEnabled = %v, want %v", !tt.wantProbe, tt.wantProbe)
			}
		})
	}
}

func TestValidateAccessStates(t *testing.T) {
	ok := &countingProber{result: probe.Result{Reachable: true, Body: index.RootAnchor}}
	ko := &countingProber{result: probe.Result{StatusCode: 404}}
	broken := &countingProber{err: errors.New("bad url")}

	tests := []struct {
		name   string
		prober probe.Prober
		p      params.Set
		want   AccessState
	}{
		{name: "skipped", prober: ok, p: params.Set{"service:url": "svn://h", "service:index": "true"}, want: AccessSkipped},
		{name: "passed", prober: ok, p: params.Set{"service:url": "http://h", "service:index": "true"}, want: AccessPassed},
		{name: "failed", prober: ko, p: params.Set{"service:url": "http://h", "service:index": "true"}, want: AccessFailed},
		{name: "probe error", prober: broken, p: params.Set{"service:url": "http://h", "service:index": "true"}, want: AccessFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := New("service", "impl", tt.prober, params.NewStore())
			state, err := res.validateAccess(context.Background(), tt.p)
			if state != tt.want {
				t.Errorf("State = %s, want %s", state, tt.want)
			}
			if (err != nil) != (tt.want == AccessFailed) {
				t.Errorf("Unexpected error %v for state %s", err, state)
			}
		})
	}
}

func TestAccessStateString(t *testing.T) {
	names := map[AccessState]string{
		AccessNotStarted: "not-started",
		AccessSkipped:    "skipped",
		AccessProbing:    "probing",
		AccessPassed:     "passed",
		AccessFailed:     "failed",
		AccessState(42):  "unknown",
	}
	for state, want := range names {
		if state.String() != want {
			t.Errorf("String() = %s, want %s", state.String(), want)
		}
	}
}

func TestValidateRepositoryProbeError(t *testing.T) {
	prober := &countingProber{err: errors.New("bad url")}
	res, _ := New("service", "impl", prober, params.NewStore())

	_, err := res.ValidateRepository(context.Background(), params.Set{"service:repository": "r"})
	assertValidationError(t, err, validation.RepositoryUnreachable, "service:repository", "impl-repository", "r")
}

func TestFindAllByName(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/", http.StatusOK, rootListing)

	projects, err := f.resource.FindAllByName(context.Background(), "service:impl:node", "as-")
	if err != nil {
		t.Fatalf("FindAllByName error: %v", err)
	}
	if len(projects) != 4 {
		t.Fatalf("Expected 4 projects, got %d: %v", len(projects), projects)
	}
	if projects[0].ID != "has-event" || projects[0].Name != "has-event" {
		t.Errorf("Unexpected first project: %+v", projects[0])
	}
	want := []index.Entry{
		index.NewEntry("has-event"),
		index.NewEntry("cas-client"),
		index.NewEntry("gas-meter"),
		index.NewEntry("mas-ter"),
	}
	if !reflect.DeepEqual(projects, want) {
		t.Errorf("FindAllByName() = %v, want %v", projects, want)
	}
}

func TestFindAllByNameSingleMatch(t *testing.T) {
	prober := &countingProber{result: probe.Result{
		Reachable: true,
		Body:      `<a href="has-event/">has-event/</a><a href="other/">other/</a>`,
	}}
	store := params.NewStore()
	store.PutNode("node", params.Set{"service:url": "http://host"})
	res, _ := New("service", "impl", prober, store)

	for _, criterion := range []string{"has-", "HAS", "hás"} {
		projects, err := res.FindAllByName(context.Background(), "node", criterion)
		if err != nil {
			t.Fatalf("FindAllByName error: %v", err)
		}
		if len(projects) != 1 || projects[0].ID != "has-event" {
			t.Errorf("criterion %q: expected [has-event], got %v", criterion, projects)
		}
	}

	if prober.calls[0].URL != "http://host/" {
		t.Errorf("Expected root URL with trailing slash, got %s", prober.calls[0].URL)
	}
}

func TestFindAllByNameNoListing(t *testing.T) {
	f := newFixture(t)

	projects, err := f.resource.FindAllByName(context.Background(), "service:impl:node", "as-")
	if err != nil {
		t.Fatalf("FindAllByName error: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("Expected no projects, got %v", projects)
	}
}

func TestFindAllByNameDegradesGracefully(t *testing.T) {
	tests := []struct {
		name   string
		prober *countingProber
	}{
		{name: "probe error", prober: &countingProber{err: errors.New("bad url")}},
		{name: "unreachable", prober: &countingProber{result: probe.Result{StatusCode: 500}}},
		{name: "empty body", prober: &countingProber{result: probe.Result{Reachable: true}}},
		{name: "garbage body", prober: &countingProber{result: probe.Result{Reachable: true, Body: `<a href="<a href="`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := params.NewStore()
			store.PutNode("node", params.Set{"service:url": "http://host"})
			res, _ := New("service", "impl", tt.prober, store)

			projects, err := res.FindAllByName(context.Background(), "node", "")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if projects == nil || len(projects) != 0 {
				t.Errorf("Expected an empty, non-nil result, got %#v", projects)
			}
		})
	}
}

func TestFindAllByNameUnknownNode(t *testing.T) {
	f := newFixture(t)
	if _, err := f.resource.FindAllByName(context.Background(), "missing", "x"); !errors.Is(err, params.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFindAllByNamePagedSubsequence(t *testing.T) {
	var b strings.Builder
	raw := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		name := fmt.Sprintf("repo-%02d", i)
		if i%3 == 0 {
			name = fmt.Sprintf("skip-%02d", i)
		}
		raw = append(raw, name)
		b.WriteString(`<a href="` + name + `/">` + name + `</a>`)
	}

	prober := &countingProber{result: probe.Result{Reachable: true, Body: b.String()}}
	store := params.NewStore()
	store.PutNode("node", params.Set{"service:url": "http://host"})
	res, _ := New("service", "impl", prober, store)

	projects, err := res.FindAllByName(context.Background(), "node", "repo")
	if err != nil {
		t.Fatalf("FindAllByName error: %v", err)
	}
	if len(projects) != 10 {
		t.Fatalf("Expected a full page of 10, got %d", len(projects))
	}

	// Order preserving subsequence of the raw listing
	j := 0
	for _, p := range projects {
		for j < len(raw) && raw[j] != p.ID {
			j++
		}
		if j == len(raw) {
			t.Fatalf("Result %v is not an ordered subsequence of the listing", projects)
		}
		j++
	}
	if projects[0].ID != "repo-01" || projects[9].ID != "repo-14" {
		t.Errorf("Unexpected page bounds: first=%s last=%s", projects[0].ID, projects[9].ID)
	}
}

func TestConcurrentOperations(t *testing.T) {
	f := newFixture(t)
	f.server.stub("/", http.StatusOK, rootListing)
	f.server.stub("/my-repo", http.StatusOK, repoListing)
	for i := 2; i <= 20; i++ {
		p := f.parameters.Clone()
		p["service:repository"] = "repo-" + strconv.Itoa(i)
		f.store.PutSubscription(i, p)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 1; i <= 20; i++ {
		wg.Add(3)
		go func(id int) {
			defer wg.Done()
			err := f.resource.Link(context.Background(), id)
			if id == 1 && err != nil {
				errs <- fmt.Errorf("link %d: %w", id, err)
			}
			if id != 1 && !errors.Is(err, validation.ErrRepositoryUnreachable) {
				errs <- fmt.Errorf("link %d: expected unreachable, got %v", id, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if up, err := f.resource.CheckStatus(context.Background(), f.parameters.Clone()); err != nil || !up {
				errs <- fmt.Errorf("check status: %v %v", up, err)
			}
		}()
		go func() {
			defer wg.Done()
			if projects, err := f.resource.FindAllByName(context.Background(), "service:impl:node", "as"); err != nil || len(projects) != 4 {
				errs <- fmt.Errorf("find: %v %v", projects, err)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
