package http

import (
	"net/http"

	"finboard/backend-go/internal/config"
	"finboard/backend-go/internal/handlers"
)

func NewRouter(cfg config.Config, deps handlers.Deps) http.Handler {
	api := handlers.New(cfg, deps)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", api.Health)
	mux.HandleFunc("GET /api/alphaVantage", api.AlphaVantage)
	mux.HandleFunc("GET /api/finnhub", api.Finnhub)
	mux.HandleFunc("GET /api/v1/market", api.Market)
	mux.HandleFunc("GET /api/v1/operations", api.Operations)

	mux.HandleFunc("GET /api/v1/widgets", api.ListWidgets)
	mux.HandleFunc("POST /api/v1/widgets", api.CreateWidget)
	mux.HandleFunc("GET /api/v1/widgets/stream", api.StreamWidgets)
	mux.HandleFunc("GET /api/v1/widgets/ws", api.WidgetsSocket)
	mux.HandleFunc("GET /api/v1/widgets/{id}", api.GetWidget)
	mux.HandleFunc("PATCH /api/v1/widgets/{id}", api.UpdateWidget)
	mux.HandleFunc("DELETE /api/v1/widgets/{id}", api.DeleteWidget)
	mux.HandleFunc("GET /api/v1/widgets/{id}/data", api.WidgetData)
	mux.HandleFunc("POST /api/v1/widgets/{id}/refresh", api.RefreshWidget)

	mux.HandleFunc("GET /api/v1/dashboard/export", api.ExportDashboard)
	mux.HandleFunc("POST /api/v1/dashboard/import", api.ImportDashboard)
	mux.HandleFunc("GET /api/v1/layout/next", api.NextLayout)
	mux.HandleFunc("POST /api/v1/layout", api.ApplyLayout)
	mux.HandleFunc("GET /api/v1/fields", api.Fields)
	mux.HandleFunc("POST /api/v1/fields", api.FieldsOf)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	h := http.Handler(mux)
	h = withRecovery(deps.Logger)(h)
	h = withLogging(deps.Logger, deps.Metrics)(h)
	h = withRateLimit(cfg.RateLimitPerMin)(h)
	h = withCORS(h)
	return h
}
