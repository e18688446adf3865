package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/services"
)

// Fields lists the selectable leaf paths of a live normalized payload, for
// the field picker of a new widget.
func (a *API) Fields(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("provider")
	if raw == "" {
		writeError(w, &services.ParamError{Param: "provider"})
		return
	}
	p, ok := services.ParseProvider(raw)
	if !ok {
		writeError(w, &services.UnsupportedError{Name: raw})
		return
	}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	var doc any
	if p == models.ProviderCustom {
		target := q.Get("url")
		if target == "" {
			writeError(w, &services.ParamError{Param: "url"})
			return
		}
		if a.custom == nil {
			writeError(w, services.ErrHostNotAllowed)
			return
		}
		data, err := a.custom.Fetch(ctx, target, nil)
		if err != nil {
			a.writeUpstreamError(w, r, err)
			return
		}
		doc = data
	} else {
		name := q.Get("operation")
		if name == "" {
			writeError(w, &services.ParamError{Param: "operation"})
			return
		}
		params := url.Values{}
		for k, vs := range q {
			if k != "provider" && k != "operation" && len(vs) > 0 {
				params.Set(k, vs[0])
			}
		}
		payload, err := a.market.Query(ctx, p, name, params)
		if err != nil {
			a.writeUpstreamError(w, r, err)
			return
		}
		if err := json.Unmarshal(payload.Data, &doc); err != nil {
			a.writeUpstreamError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": services.LeafPaths(doc, a.cfg.MaxFieldDepth)})
}

// FieldsOf does the same for a JSON document posted by the caller.
func (a *API) FieldsOf(w http.ResponseWriter, r *http.Request) {
	var doc any
	if err := readJSON(r, &doc); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": services.LeafPaths(doc, a.cfg.MaxFieldDepth)})
}
