package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"finboard/backend-go/internal/config"
	"finboard/backend-go/internal/handlers"
	internalhttp "finboard/backend-go/internal/http"
	"finboard/backend-go/internal/logging"
	"finboard/backend-go/internal/metrics"
	"finboard/backend-go/internal/services"
	"finboard/backend-go/internal/storage"
)

func main() {
	_ = godotenv.Load(
		".env",
		".env.local",
		"../.env",
		"../.env.local",
		"backend-go/.env",
		"backend-go/.env.local",
	)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	m := metrics.New()
	cache := services.NewCache(cfg.RedisURL, logger)

	opts := []services.ClientOption{
		services.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		services.WithCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
	}
	var clients []services.VendorClient
	if cfg.AlphaKey != "" {
		clients = append(clients, services.NewAlphaVantageClient(cfg.AlphaBaseURL, cfg.AlphaKey, opts...))
	}
	if cfg.FinnhubKey != "" {
		clients = append(clients, services.NewFinnhubClient(cfg.FinnhubBaseURL, cfg.FinnhubKey, opts...))
	}
	if len(clients) == 0 {
		logger.Warn("no vendor API key configured; market requests will fail")
	}
	market := services.NewMarketService(cache, services.MarketOptions{
		TTLQuote:        cfg.CacheTTLQuote,
		TTLSeries:       cfg.CacheTTLSeries,
		TTLReference:    cfg.CacheTTLReference,
		MaxSeriesPoints: cfg.MaxSeriesPoints,
		Logger:          logger.Named("market"),
		Metrics:         m,
	}, clients...)

	var storeOpts []storage.Option
	if rc, ok := cache.(*services.RedisCache); ok {
		storeOpts = append(storeOpts, storage.WithRedisClient(rc.Client()))
		defer func() { _ = rc.Client().Close() }()
	}
	blob, err := storage.Open(ctx, cfg, logger, storeOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = blob.Close() }()

	store, err := services.NewWidgetStore(ctx, blob, cfg.StoreKey, logger.Named("store"))
	if err != nil {
		return err
	}

	custom := services.NewCustomSource(cfg.CustomSourceHosts, opts...)
	refresher := services.NewRefresher(market, custom, services.RefresherOptions{
		DefaultInterval: cfg.DefaultRefresh,
		FetchTimeout:    cfg.RequestTimeout,
		Logger:          logger.Named("refresher"),
		Metrics:         m,
	})
	store.OnChange(refresher.Sync)
	refresher.Sync(store.List())
	refresher.Start()
	defer refresher.Stop()

	h := internalhttp.NewRouter(cfg, handlers.Deps{
		Market:    market,
		Store:     store,
		Refresher: refresher,
		Custom:    custom,
		Logger:    logger.Named("http"),
		Metrics:   m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("finboard backend listening",
			zap.String("addr", srv.Addr),
			zap.String("store", blob.Name()),
			zap.Int("widgets", store.Len()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
