package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=services_test -destination=mock_http_client_test.go -source=upstream.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures a vendor client.
type ClientOption func(*vendorTransport)

func WithHTTPClient(hc HTTPClient) ClientOption {
	return func(t *vendorTransport) {
		t.hc = hc
	}
}

func WithCircuitBreaker(threshold int, cooldown time.Duration) ClientOption {
	return func(t *vendorTransport) {
		t.cb = newCircuitBreaker(threshold, cooldown)
	}
}

const (
	maxErrorBody   = 4096
	maxPayloadBody = 8 << 20
)

type vendorTransport struct {
	baseURL string
	hc      HTTPClient
	cb      *circuitBreaker
}

func newVendorTransport(baseURL string, opts []ClientOption) vendorTransport {
	t := vendorTransport{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 12 * time.Second},
		cb:      newCircuitBreaker(3, 20*time.Second),
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// get performs one GET and returns the body with its status. Transport
// errors are unwrapped from *url.Error so the credential-bearing URL never
// leaks into messages.
func (t *vendorTransport) get(ctx context.Context, fullURL string) ([]byte, int, error) {
	if !t.cb.allow() {
		return nil, 0, ErrCircuitOpen
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", scrubURL(err))
	}
	req.Header.Set("Accept", "application/json")

	res, err := t.hc.Do(req)
	if err != nil {
		t.cb.fail()
		return nil, 0, scrubURL(err)
	}
	defer res.Body.Close()

	limit := int64(maxPayloadBody)
	if res.StatusCode >= 300 {
		limit = maxErrorBody
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		t.cb.fail()
		return nil, res.StatusCode, fmt.Errorf("read body: %w", scrubURL(err))
	}
	if res.StatusCode >= 500 {
		t.cb.fail()
	} else {
		t.cb.success()
	}
	return body, res.StatusCode, nil
}

func scrubURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

type circuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}
