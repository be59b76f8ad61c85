package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDrainBytes bounds how much of a response body is read before closing
const maxDrainBytes = 64 * 1024

// Response is the part of an HTTP response a probe cares about
type Response struct {
	StatusCode int
	Elapsed    time.Duration
}

// Client performs a GET against a URL. Implementations must honor ctx cancellation.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// HTTPClient is the net/http backed Client
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a client that relies on the request context for deadlines
func NewHTTPClient() *HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.ResponseHeaderTimeout = DefaultTimeout
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Get issues the request and drains the body so the connection can be reused
func (c *HTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}
	req.Header.Set("User-Agent", "stackpulse-probe/1.0")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return &Response{StatusCode: resp.StatusCode, Elapsed: time.Since(start)}, nil
}
