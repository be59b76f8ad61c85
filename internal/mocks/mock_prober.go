package mocks

import (
	"context"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
	"github.com/stackpulse/stackpulse/internal/probe"
)

// MockProber is a minimal prober that answers from a per-URL table
type MockProber struct {
	Results   map[string]interfaces.HealthStatus
	Latency   int64
	Now       func() time.Time
	ProbeFunc func(ctx context.Context, endpoints []probe.Endpoint) []interfaces.HealthCheckResult
	probed    *CallTracker[probe.Endpoint]
}

// NewMockProber creates a prober reporting every URL healthy
func NewMockProber() *MockProber {
	return &MockProber{
		Results: make(map[string]interfaces.HealthStatus),
		Latency: 12,
		Now:     time.Now,
		probed:  NewCallTracker[probe.Endpoint](),
	}
}

// EndpointFor builds the endpoint the way the real prober does
func (m *MockProber) EndpointFor(service interfaces.ServiceName, baseURL string) probe.Endpoint {
	url := baseURL
	if service == interfaces.ServiceBackend {
		url = baseURL + probe.DefaultHealthPath
	}
	return probe.Endpoint{Service: service, URL: url}
}

// ProbeAll returns one result per endpoint, in order
func (m *MockProber) ProbeAll(ctx context.Context, endpoints []probe.Endpoint) []interfaces.HealthCheckResult {
	for _, ep := range endpoints {
		m.probed.RecordCall(ep)
	}

	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, endpoints)
	}

	results := make([]interfaces.HealthCheckResult, 0, len(endpoints))
	for _, ep := range endpoints {
		status, ok := m.Results[ep.URL]
		if !ok {
			status = interfaces.HealthStatusHealthy
		}
		r := interfaces.HealthCheckResult{Service: ep.Service, Status: status, LastCheck: m.Now()}
		if status == interfaces.HealthStatusHealthy {
			r.ResponseTimeMillis = m.Latency
			r.Uptime = probe.HealthyUptime
		}
		results = append(results, r)
	}
	return results
}

// Probed returns every endpoint probed so far
func (m *MockProber) Probed() []probe.Endpoint {
	return m.probed.GetCalls()
}
