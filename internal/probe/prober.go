// Package probe performs bounded-time liveness checks against deployment services.
package probe

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/utils"
	"github.com/stackpulse/stackpulse/pkg/logging"
)

const (
	// DefaultTimeout bounds a single probe
	DefaultTimeout = 5 * time.Second
	// DefaultHealthPath is appended to backend URLs
	DefaultHealthPath = "/health"
	// HealthyUptime is reported for a successful probe
	HealthyUptime = 100.0
)

// Endpoint is a single probe target
type Endpoint struct {
	Service interfaces.ServiceName
	URL     string
}

// Prober runs liveness checks. All failures collapse into an unhealthy result.
type Prober struct {
	client     Client
	timeout    time.Duration
	healthPath string
	now        func() time.Time
}

// Option configures a Prober
type Option func(*Prober)

// WithClient replaces the HTTP client
func WithClient(c Client) Option {
	return func(p *Prober) { p.client = c }
}

// WithTimeout sets the default probe timeout
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithHealthPath sets the path appended to backend URLs
func WithHealthPath(path string) Option {
	return func(p *Prober) {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		p.healthPath = path
	}
}

// WithClock sets the clock used for LastCheck timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Prober) { p.now = now }
}

// New creates a Prober with the default HTTP client and a 5s timeout
func New(opts ...Option) *Prober {
	p := &Prober{
		timeout:    DefaultTimeout,
		healthPath: DefaultHealthPath,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = NewHTTPClient()
	}
	return p
}

// Timeout returns the default timeout
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// EndpointFor returns the probe target for a service base URL.
// Frontends are probed at their own URL, backends at URL plus the health path.
func (p *Prober) EndpointFor(service interfaces.ServiceName, baseURL string) Endpoint {
	url := baseURL
	if service == interfaces.ServiceBackend {
		url = strings.TrimRight(baseURL, "/") + p.healthPath
	}
	return Endpoint{Service: service, URL: url}
}

type outcome struct {
	resp *Response
	err  error
}

// Probe checks one endpoint. It returns within timeout plus scheduling overhead
// even if the client ignores cancellation. A non-positive timeout uses the default.
func (p *Prober) Probe(ctx context.Context, ep Endpoint, timeout time.Duration) interfaces.HealthCheckResult {
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		resp, err := p.client.Get(ctx, ep.URL)
		done <- outcome{resp: resp, err: err}
	}()

	result := interfaces.HealthCheckResult{
		Service: ep.Service,
		Status:  interfaces.HealthStatusUnhealthy,
	}

	select {
	case o := <-done:
		elapsed := time.Since(start)
		result.LastCheck = p.now()
		if o.err != nil {
			logging.ProbeError("", string(ep.Service), utils.RedactURL(ep.URL), o.err)
			return result
		}
		if o.resp == nil || o.resp.StatusCode < 200 || o.resp.StatusCode > 299 {
			return result
		}
		result.Status = interfaces.HealthStatusHealthy
		result.ResponseTimeMillis = elapsed.Milliseconds()
		result.Uptime = HealthyUptime
	case <-ctx.Done():
		result.LastCheck = p.now()
		logging.ProbeError("", string(ep.Service), utils.RedactURL(ep.URL), ctx.Err())
	}
	return result
}

// ProbeAll checks every endpoint concurrently with the default timeout.
// Results keep the order of endpoints.
func (p *Prober) ProbeAll(ctx context.Context, endpoints []Endpoint) []interfaces.HealthCheckResult {
	results := make([]interfaces.HealthCheckResult, len(endpoints))
	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			results[i] = p.Probe(ctx, ep, p.timeout)
		}(i, ep)
	}
	wg.Wait()
	return results
}
