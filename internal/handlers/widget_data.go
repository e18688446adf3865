package handlers

import (
	"net/http"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/services"
)

// WidgetData returns the widget, its render state and, for tables, one
// page of rows.
func (a *API) WidgetData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wc, ok := a.store.Get(id)
	if !ok {
		writeError(w, services.ErrWidgetNotFound)
		return
	}
	st, ok := a.refresher.State(id)
	if !ok {
		st = models.RenderState{WidgetID: id, Status: models.StatusLoading, UpdatedISO: nowISO()}
	}
	page := parseIntParam(r.URL.Query().Get("page"), 1, 1, 1<<20)
	a.writeWidgetData(w, wc, st, page)
}

// RefreshWidget fetches the widget now instead of waiting for its cadence.
func (a *API) RefreshWidget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wc, ok := a.store.Get(id)
	if !ok {
		writeError(w, services.ErrWidgetNotFound)
		return
	}
	st, err := a.refresher.RefreshNow(r.Context(), id)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	a.writeWidgetData(w, wc, st, 1)
}

func (a *API) writeWidgetData(w http.ResponseWriter, wc models.WidgetConfig, st models.RenderState, page int) {
	resp := models.WidgetDataResponse{Widget: wc, State: st}
	if wc.Kind == models.KindTable && st.Status == models.StatusReady {
		tp, err := services.BuildTablePage(st.Data, wc.Fields, page, a.cfg.TablePageSize, a.cfg.MaxFieldDepth)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "Unexpected table data for "+wc.ID)
			return
		}
		resp.Table = &tp
	}
	writeJSON(w, http.StatusOK, resp)
}
