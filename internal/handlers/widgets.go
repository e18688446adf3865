package handlers

import (
	"net/http"
	"strings"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/services"
)

func (a *API) ListWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"widgets": a.store.List()})
}

// CreateWidget runs the add-widget flow: a widget without a position is
// placed at the first free slot and a symbol-bound widget without a symbol
// gets the configured default.
func (a *API) CreateWidget(w http.ResponseWriter, r *http.Request) {
	var in models.WidgetConfig
	if err := readJSON(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Position.W == 0 && in.Position.H == 0 {
		next := services.NextPlacement(a.positions(), services.GridColumns, 0, 0)
		in.Position = models.Position{X: next.X, Y: next.Y, W: next.W, H: next.H}
	}
	a.applyDefaultSymbol(&in)

	created, err := a.store.Add(r.Context(), in)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) GetWidget(w http.ResponseWriter, r *http.Request) {
	wc, ok := a.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, services.ErrWidgetNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wc)
}

func (a *API) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	var patch models.WidgetPatch
	if err := readJSON(r, &patch); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.store.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteWidget is idempotent: removing an unknown id still answers 204.
func (a *API) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	if _, err := a.store.Remove(r.Context(), r.PathValue("id")); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) positions() []models.Position {
	list := a.store.List()
	out := make([]models.Position, 0, len(list))
	for _, wc := range list {
		out = append(out, wc.Position)
	}
	return out
}

func (a *API) applyDefaultSymbol(wc *models.WidgetConfig) {
	src := &wc.Source
	if src.IsCustom() || len(src.Symbols) > 0 || strings.TrimSpace(src.Symbol) != "" || src.Params["symbol"] != "" {
		return
	}
	p, ok := services.ParseProvider(string(src.Provider))
	if !ok {
		return
	}
	spec, err := services.LookupOperation(p, src.Operation)
	if err != nil || !spec.NeedsSymbol() {
		return
	}
	src.Symbol = a.cfg.DefaultSymbol
}
