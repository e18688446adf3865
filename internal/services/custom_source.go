package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"finboard/backend-go/internal/models"
)

// CustomSource fetches arbitrary JSON for widgets bound to a raw URL. Only
// https/http URLs on allow-listed hosts are fetched.
type CustomSource struct {
	hosts map[string]bool
	vendorTransport
}

func NewCustomSource(hosts []string, opts ...ClientOption) *CustomSource {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}
	return &CustomSource{hosts: allowed, vendorTransport: newVendorTransport("", opts)}
}

// Allowed reports whether rawURL may be fetched. Subdomains of an
// allow-listed host are accepted.
func (c *CustomSource) Allowed(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, false
	}
	host := strings.ToLower(u.Hostname())
	for h := range c.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return u, true
		}
	}
	return nil, false
}

// Fetch returns the decoded JSON document at rawURL with query merged in.
func (c *CustomSource) Fetch(ctx context.Context, rawURL string, query map[string]string) (any, error) {
	u, ok := c.Allowed(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, rawURL)
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	label := u.Host

	body, status, err := c.get(ctx, u.String())
	if err != nil {
		return nil, vendorErr(models.ProviderCustom, label, ErrTransport, "", err)
	}
	if status == http.StatusTooManyRequests {
		return nil, vendorErr(models.ProviderCustom, label, ErrRateLimited, "", &UpstreamError{Status: status, Body: string(body)})
	}
	if status >= 300 {
		return nil, vendorErr(models.ProviderCustom, label, ErrTransport, "", &UpstreamError{Status: status, Body: string(body)})
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, vendorErr(models.ProviderCustom, label, ErrDataShape, "", err)
	}
	if doc == nil {
		return nil, vendorErr(models.ProviderCustom, label, ErrNoData, "", nil)
	}
	return doc, nil
}
