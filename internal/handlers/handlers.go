package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"finboard/backend-go/internal/config"
	"finboard/backend-go/internal/metrics"
	"finboard/backend-go/internal/services"
)

// maxBodyBytes bounds JSON request bodies, including imported dashboards.
const maxBodyBytes = 1 << 20

type Deps struct {
	Market    *services.MarketService
	Store     *services.WidgetStore
	Refresher *services.Refresher
	Custom    *services.CustomSource
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type API struct {
	cfg       config.Config
	market    *services.MarketService
	store     *services.WidgetStore
	refresher *services.Refresher
	custom    *services.CustomSource
	logger    *zap.Logger
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	keepAlive time.Duration
}

func New(cfg config.Config, deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		cfg:       cfg,
		market:    deps.Market,
		store:     deps.Store,
		refresher: deps.Refresher,
		custom:    deps.Custom,
		logger:    logger,
		metrics:   deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		keepAlive: 15 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// readJSON decodes a bounded request body into v.
func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseIntParam(v string, def int, min int, max int) int {
	if v == "" {
		return def
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return def
	}
	if out < min {
		return min
	}
	if out > max {
		return max
	}
	return out
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func timeboxed(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
