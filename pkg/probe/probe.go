// Package probe performs the authenticated GET requests an index-based
// plug-in needs. A probe reports whether the URL answered with a success
// status and, when it did, the response body.
//
// Probes never retry. Bounding slow servers is done with the client timeout
// and with the context passed to Probe.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

// MaxBodySize caps the number of body bytes kept from a response.
const MaxBodySize = 8 << 20

// DefaultTimeout bounds a single probe when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Credentials authenticate a probe. When Token is set it is sent as a bearer
// token; otherwise basic authentication is used unless User and Password are
// both empty.
type Credentials struct {
	User     string
	Password string
	Token    string
}

// Anonymous reports whether the credentials carry no authentication.
func (c Credentials) Anonymous() bool {
	return c.Token == "" && c.User == "" && strings.TrimSpace(c.Password) == ""
}

// Request is a single GET probe.
type Request struct {
	URL         string
	Credentials Credentials
}

// Result is the outcome of a probe. Body is only set when Reachable.
type Result struct {
	Reachable  bool
	StatusCode int // 0 when no response was received
	Body       string
}

// Prober performs probes. Implementations must be safe for concurrent use.
type Prober interface {
	// Probe issues a GET request. Connection failures and non-2xx statuses
	// are reported through Result.Reachable; the error is reserved for
	// requests that cannot be built at all.
	Probe(ctx context.Context, req Request) (Result, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, req Request) (Result, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Observer is notified of every completed probe.
type Observer func(req Request, res Result, elapsed time.Duration)

// HTTPProber is the net/http Prober.
type HTTPProber struct {
	client   *http.Client
	observer Observer
}

// Option configures an HTTPProber.
type Option func(*HTTPProber)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *HTTPProber) {
		if c != nil {
			p.client = c
		}
	}
}

// WithTimeout sets the overall timeout of each probe.
func WithTimeout(d time.Duration) Option {
	return func(p *HTTPProber) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithObserver registers an observer, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(p *HTTPProber) {
		p.observer = o
	}
}

// NewHTTPProber creates a prober on top of a pooled cleanhttp client.
func NewHTTPProber(opts ...Option) *HTTPProber {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = DefaultTimeout

	p := &HTTPProber{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build probe request: %w", err)
	}

	client := p.client
	creds := req.Credentials
	switch {
	case creds.Token != "":
		client = p.withBearer(creds.Token)
	case !creds.Anonymous():
		httpReq.SetBasicAuth(creds.User, strings.TrimSpace(creds.Password))
	}

	res := p.do(client, httpReq)
	if p.observer != nil {
		p.observer(req, res, time.Since(start))
	}
	return res, nil
}

func (p *HTTPProber) do(client *http.Client, httpReq *http.Request) Result {
	resp, err := client.Do(httpReq)
	if err != nil {
		slog.Debug("Probe failed", "url", httpReq.URL.Redacted(), "error", err)
		return Result{}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close probe response body", "error", closeErr)
		}
	}()

	res := Result{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("Probe returned non-success status", "url", httpReq.URL.Redacted(), "status", resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		slog.Debug("Failed to read probe response body", "url", httpReq.URL.Redacted(), "error", err)
		return res
	}

	res.Reachable = true
	res.Body = string(body)
	slog.Debug("Probe succeeded", "url", httpReq.URL.Redacted(), "status", resp.StatusCode, "bytes", len(body))
	return res
}

// withBearer returns a shallow copy of the client whose transport adds the
// bearer token. The shared client is never mutated.
func (p *HTTPProber) withBearer(token string) *http.Client {
	c := *p.client
	c.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   p.client.Transport,
	}
	return &c
}
