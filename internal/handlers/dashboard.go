package handlers

import (
	"io"
	"net/http"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/services"
)

func (a *API) ExportDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="finboard.json"`)
	writeJSON(w, http.StatusOK, a.store.Export())
}

// ImportDashboard replaces the whole widget list. A document that fails
// validation leaves the current dashboard untouched.
func (a *API) ImportDashboard(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) > maxBodyBytes {
		writeMessage(w, http.StatusRequestEntityTooLarge, "dashboard document too large")
		return
	}
	doc, err := services.ParseDocument(body)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.store.Import(r.Context(), doc); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DashboardDocument{Version: models.ExportVersion, Widgets: a.store.List()})
}
