package handlers

import (
	"net/http"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/services"
)

// NextLayout reports where the add-widget placeholder goes. w and h
// default to half the grid by four rows.
func (a *API) NextLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width := parseIntParam(q.Get("w"), 0, 0, services.GridColumns)
	height := parseIntParam(q.Get("h"), 0, 0, 100)
	pos := services.NextPlacement(a.positions(), services.GridColumns, width, height)
	writeJSON(w, http.StatusOK, map[string]any{
		"i":        services.PlaceholderID,
		"position": pos,
	})
}

// ApplyLayout takes the grid's layout-change batch and persists it in one
// save when anything moved.
func (a *API) ApplyLayout(w http.ResponseWriter, r *http.Request) {
	var items []models.LayoutItem
	if err := readJSON(r, &items); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	changed, err := a.store.ApplyLayout(r.Context(), items)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}
