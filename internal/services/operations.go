package services

import (
	"net/url"
	"strings"

	"finboard/backend-go/internal/models"
)

type cacheClass int

const (
	cacheQuote cacheClass = iota
	cacheSeries
	cacheReference
)

// OperationSpec is one catalog row: a logical operation as served by one vendor.
type OperationSpec struct {
	Provider  models.Provider
	Operation models.Operation
	Name      string
	Required  []string
	Optional  []string
	class     cacheClass
}

var catalog = []OperationSpec{
	{Provider: models.ProviderAlphaVantage, Operation: models.OpQuote, Name: "GLOBAL_QUOTE", Required: []string{"symbol"}, class: cacheQuote},
	{Provider: models.ProviderAlphaVantage, Operation: models.OpOverview, Name: "OVERVIEW", Required: []string{"symbol"}, class: cacheReference},
	{Provider: models.ProviderAlphaVantage, Operation: models.OpDailySeries, Name: "TIME_SERIES_DAILY", Required: []string{"symbol"}, Optional: []string{"outputsize"}, class: cacheSeries},
	{Provider: models.ProviderAlphaVantage, Operation: models.OpIntradaySeries, Name: "TIME_SERIES_INTRADAY", Required: []string{"symbol", "interval"}, Optional: []string{"outputsize"}, class: cacheSeries},
	{Provider: models.ProviderAlphaVantage, Operation: models.OpSymbolSearch, Name: "SYMBOL_SEARCH", Required: []string{"keywords"}, class: cacheReference},

	{Provider: models.ProviderFinnhub, Operation: models.OpQuote, Name: "quote", Required: []string{"symbol"}, class: cacheQuote},
	{Provider: models.ProviderFinnhub, Operation: models.OpProfile, Name: "stock/profile2", Required: []string{"symbol"}, class: cacheReference},
	{Provider: models.ProviderFinnhub, Operation: models.OpCandle, Name: "stock/candle", Required: []string{"symbol", "resolution", "from", "to"}, class: cacheSeries},
	{Provider: models.ProviderFinnhub, Operation: models.OpGainers, Name: "stock/gainers", Optional: []string{"exchange"}, class: cacheQuote},
	{Provider: models.ProviderFinnhub, Operation: models.OpMetrics, Name: "stock/metric", Required: []string{"symbol", "metric"}, class: cacheReference},
	{Provider: models.ProviderFinnhub, Operation: models.OpNews, Name: "company-news", Required: []string{"symbol", "from", "to"}, class: cacheReference},
}

// LookupOperation resolves either a vendor name ("GLOBAL_QUOTE",
// "stock/candle") or a logical name ("quote") for the provider.
func LookupOperation(p models.Provider, name string) (OperationSpec, error) {
	trimmed := strings.TrimSpace(name)
	for _, spec := range catalog {
		if spec.Provider != p {
			continue
		}
		if strings.EqualFold(spec.Name, trimmed) || string(spec.Operation) == strings.ToLower(trimmed) {
			return spec, nil
		}
	}
	return OperationSpec{}, &UnsupportedError{Provider: p, Name: name}
}

// Operations lists the catalog rows for a provider in declaration order.
func Operations(p models.Provider) []OperationSpec {
	out := []OperationSpec{}
	for _, spec := range catalog {
		if spec.Provider == p {
			out = append(out, spec)
		}
	}
	return out
}

func ParseProvider(raw string) (models.Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "alphavantage", "alpha", "alpha_vantage", "alpha-vantage":
		return models.ProviderAlphaVantage, true
	case "finnhub":
		return models.ProviderFinnhub, true
	case "custom":
		return models.ProviderCustom, true
	}
	return "", false
}

func (s OperationSpec) NeedsSymbol() bool {
	for _, p := range s.Required {
		if p == "symbol" {
			return true
		}
	}
	return false
}

// Validate reports the first missing required parameter.
func (s OperationSpec) Validate(params url.Values) error {
	for _, p := range s.Required {
		if strings.TrimSpace(params.Get(p)) == "" {
			return &ParamError{Param: p}
		}
	}
	return nil
}

// Forwarded keeps only the declared parameters, trimmed, in a fresh bag.
func (s OperationSpec) Forwarded(params url.Values) url.Values {
	out := url.Values{}
	for _, group := range [][]string{s.Required, s.Optional} {
		for _, p := range group {
			if v := strings.TrimSpace(params.Get(p)); v != "" {
				if p == "symbol" {
					v = strings.ToUpper(v)
				}
				out.Set(p, v)
			}
		}
	}
	return out
}
