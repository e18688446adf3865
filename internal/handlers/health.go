package handlers

import (
	"net/http"
	"os"

	"finboard/backend-go/internal/models"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	providers := map[string]bool{
		string(models.ProviderAlphaVantage): a.market.HasProvider(models.ProviderAlphaVantage),
		string(models.ProviderFinnhub):      a.market.HasProvider(models.ProviderFinnhub),
		string(models.ProviderCustom):       len(a.cfg.CustomSourceHosts) > 0,
	}
	resp := models.HealthResponse{
		Ok:      providers[string(models.ProviderAlphaVantage)] || providers[string(models.ProviderFinnhub)],
		TsISO:   nowISO(),
		Service: "finboard-backend",
		Version: os.Getenv("SERVICE_VERSION"),
		Store:   a.store.Backend(),
		Widgets: a.store.Len(),
		Env: map[string]bool{
			"ALPHA_KEY":    a.cfg.AlphaKey != "",
			"FINNHUB_KEY":  a.cfg.FinnhubKey != "",
			"REDIS_URL":    a.cfg.RedisURL != "",
			"DATABASE_URL": a.cfg.DatabaseURL != "",
		},
		Providers: providers,
	}
	writeJSON(w, http.StatusOK, resp)
}
