package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"finboard/backend-go/internal/models"
)

// FinnhubClient calls https://finnhub.io/api/v1/<endpoint> with the key in
// the "token" query parameter.
type FinnhubClient struct {
	apiKey string
	vendorTransport
}

func NewFinnhubClient(baseURL, apiKey string, opts ...ClientOption) *FinnhubClient {
	return &FinnhubClient{
		apiKey:          apiKey,
		vendorTransport: newVendorTransport(strings.TrimRight(baseURL, "/"), opts),
	}
}

func (c *FinnhubClient) Provider() models.Provider { return models.ProviderFinnhub }

func (c *FinnhubClient) Fetch(ctx context.Context, spec OperationSpec, params url.Values) ([]byte, error) {
	q := spec.Forwarded(params)
	q.Set("token", c.apiKey)

	body, status, err := c.get(ctx, c.baseURL+"/"+spec.Name+"?"+q.Encode())
	if err != nil {
		return nil, vendorErr(models.ProviderFinnhub, spec.Name, ErrTransport, "", err)
	}
	if err := finnhubMarker(spec.Name, body); err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		return nil, vendorErr(models.ProviderFinnhub, spec.Name, ErrRateLimited, "", &UpstreamError{Status: status, Body: string(body)})
	}
	if status >= 300 {
		return nil, vendorErr(models.ProviderFinnhub, spec.Name, ErrTransport, "", &UpstreamError{Status: status, Body: string(body)})
	}
	return body, nil
}

// finnhubMarker reads {"error": "..."} bodies. Finnhub reports its quota as
// "API limit reached"; anything else is a rejected request.
func finnhubMarker(op string, body []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil
	}
	raw, ok := top["error"]
	if !ok {
		return nil
	}
	msg := rawString(raw)
	if strings.Contains(strings.ToLower(msg), "limit") {
		return vendorErr(models.ProviderFinnhub, op, ErrRateLimited, msg, nil)
	}
	return vendorErr(models.ProviderFinnhub, op, ErrInvalidParam, msg, nil)
}
