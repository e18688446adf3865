package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"finboard/backend-go/internal/models"
)

// AlphaVantageClient calls https://www.alphavantage.co/query. Every logical
// operation is the same endpoint selected by the "function" parameter.
type AlphaVantageClient struct {
	apiKey string
	vendorTransport
}

func NewAlphaVantageClient(baseURL, apiKey string, opts ...ClientOption) *AlphaVantageClient {
	return &AlphaVantageClient{
		apiKey:          apiKey,
		vendorTransport: newVendorTransport(strings.TrimRight(baseURL, "/"), opts),
	}
}

func (c *AlphaVantageClient) Provider() models.Provider { return models.ProviderAlphaVantage }

func (c *AlphaVantageClient) Fetch(ctx context.Context, spec OperationSpec, params url.Values) ([]byte, error) {
	q := spec.Forwarded(params)
	q.Set("function", spec.Name)
	q.Set("apikey", c.apiKey)

	body, status, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, vendorErr(models.ProviderAlphaVantage, spec.Name, ErrTransport, "", err)
	}
	if err := alphaMarker(spec.Name, body); err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		return nil, vendorErr(models.ProviderAlphaVantage, spec.Name, ErrRateLimited, "", &UpstreamError{Status: status, Body: string(body)})
	}
	if status >= 300 {
		return nil, vendorErr(models.ProviderAlphaVantage, spec.Name, ErrTransport, "", &UpstreamError{Status: status, Body: string(body)})
	}
	return body, nil
}

// alphaMarker detects the messages Alpha Vantage embeds in otherwise
// successful bodies. "Note" and "Information" carry the call-frequency
// notice; "Error Message" means the request itself was rejected.
func alphaMarker(op string, body []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil
	}
	for _, key := range []string{"Note", "Information"} {
		if raw, ok := top[key]; ok {
			return vendorErr(models.ProviderAlphaVantage, op, ErrRateLimited, rawString(raw), nil)
		}
	}
	if raw, ok := top["Error Message"]; ok {
		return vendorErr(models.ProviderAlphaVantage, op, ErrInvalidParam, rawString(raw), nil)
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
