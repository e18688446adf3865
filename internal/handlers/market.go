package handlers

import (
	"net/http"
	"net/url"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/services"
)

// AlphaVantage serves /api/alphaVantage?function=...
func (a *API) AlphaVantage(w http.ResponseWriter, r *http.Request) {
	a.serveMarket(w, r, models.ProviderAlphaVantage, "function")
}

// Finnhub serves /api/finnhub?endpoint=...
func (a *API) Finnhub(w http.ResponseWriter, r *http.Request) {
	a.serveMarket(w, r, models.ProviderFinnhub, "endpoint")
}

// Market serves /api/v1/market?provider=...&operation=...
func (a *API) Market(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("provider")
	if raw == "" {
		writeError(w, &services.ParamError{Param: "provider"})
		return
	}
	p, ok := services.ParseProvider(raw)
	if !ok || p == models.ProviderCustom {
		writeError(w, &services.UnsupportedError{Name: raw})
		return
	}
	a.serveMarket(w, r, p, "operation")
}

func (a *API) serveMarket(w http.ResponseWriter, r *http.Request, p models.Provider, selector string) {
	q := r.URL.Query()
	name := q.Get(selector)
	if name == "" {
		writeError(w, &services.ParamError{Param: selector})
		return
	}
	params := url.Values{}
	for k, vs := range q {
		if k == selector || k == "provider" || len(vs) == 0 {
			continue
		}
		params.Set(k, vs[0])
	}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	payload, err := a.market.Query(ctx, p, name, params)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	if payload.CacheHit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, payload)
}

type operationInfo struct {
	Provider  models.Provider  `json:"provider"`
	Operation models.Operation `json:"operation"`
	Name      string           `json:"name"`
	Required  []string         `json:"required"`
	Optional  []string         `json:"optional,omitempty"`
}

// Operations lists the catalog so the add-widget form can offer only what
// the configured vendors serve.
func (a *API) Operations(w http.ResponseWriter, r *http.Request) {
	providers := []models.Provider{models.ProviderAlphaVantage, models.ProviderFinnhub}
	if raw := r.URL.Query().Get("provider"); raw != "" {
		p, ok := services.ParseProvider(raw)
		if !ok || p == models.ProviderCustom {
			writeError(w, &services.UnsupportedError{Name: raw})
			return
		}
		providers = []models.Provider{p}
	}
	out := []operationInfo{}
	for _, p := range providers {
		if !a.market.HasProvider(p) {
			continue
		}
		for _, spec := range services.Operations(p) {
			required := spec.Required
			if required == nil {
				required = []string{}
			}
			out = append(out, operationInfo{
				Provider:  spec.Provider,
				Operation: spec.Operation,
				Name:      spec.Name,
				Required:  required,
				Optional:  spec.Optional,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": out})
}
