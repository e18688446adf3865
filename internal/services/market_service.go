package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"finboard/backend-go/internal/metrics"
	"finboard/backend-go/internal/models"
)

// VendorClient fetches one raw vendor body. Implementations classify vendor
// markers and HTTP failures into *VendorError.
type VendorClient interface {
	Provider() models.Provider
	Fetch(ctx context.Context, spec OperationSpec, params url.Values) ([]byte, error)
}

// Payload is a normalized answer as served and cached.
type Payload struct {
	Provider   models.Provider  `json:"provider"`
	Operation  models.Operation `json:"operation"`
	Function   string           `json:"function"`
	Data       json.RawMessage  `json:"data"`
	FetchedISO string           `json:"fetchedISO"`
	CacheHit   bool             `json:"-"`
}

type MarketOptions struct {
	TTLQuote        time.Duration
	TTLSeries       time.Duration
	TTLReference    time.Duration
	MaxSeriesPoints int
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

type MarketService struct {
	clients   map[models.Provider]VendorClient
	cache     Cache
	ttl       map[cacheClass]time.Duration
	maxPoints int
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewMarketService(cache Cache, opts MarketOptions, clients ...VendorClient) *MarketService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxSeriesPoints <= 0 {
		opts.MaxSeriesPoints = 10
	}
	s := &MarketService{
		clients: make(map[models.Provider]VendorClient, len(clients)),
		cache:   cache,
		ttl: map[cacheClass]time.Duration{
			cacheQuote:     opts.TTLQuote,
			cacheSeries:    opts.TTLSeries,
			cacheReference: opts.TTLReference,
		},
		maxPoints: opts.MaxSeriesPoints,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
	for _, c := range clients {
		s.clients[c.Provider()] = c
	}
	return s
}

func (s *MarketService) HasProvider(p models.Provider) bool {
	_, ok := s.clients[p]
	return ok
}

// Query resolves name against the provider catalog, validates params before
// any network call, then serves from cache or fetches and normalizes.
func (s *MarketService) Query(ctx context.Context, p models.Provider, name string, params url.Values) (Payload, error) {
	spec, err := LookupOperation(p, name)
	if err != nil {
		return Payload{}, err
	}
	if err := spec.Validate(params); err != nil {
		return Payload{}, err
	}
	client, ok := s.clients[p]
	if !ok {
		return Payload{}, vendorErr(p, spec.Name, ErrTransport, "provider not configured", nil)
	}

	fwd := spec.Forwarded(params)
	key := marketCacheKey(spec, fwd)
	if s.cache != nil {
		if b, ok := s.cache.Get(ctx, key); ok {
			var cached Payload
			if err := UnmarshalCache(b, &cached); err == nil {
				s.metrics.ObserveCache(true)
				cached.CacheHit = true
				return cached, nil
			}
		}
		s.metrics.ObserveCache(false)
	}

	start := time.Now()
	raw, err := client.Fetch(ctx, spec, fwd)
	if err != nil {
		s.metrics.ObserveUpstream(string(p), spec.Name, outcomeOf(err), time.Since(start))
		s.logger.Warn("vendor fetch failed",
			zap.String("provider", string(p)),
			zap.String("operation", spec.Name),
			zap.Error(err))
		return Payload{}, err
	}

	data, err := Normalize(spec, raw, fwd, s.maxPoints)
	if err != nil {
		kind, cause := ErrDataShape, err
		if errors.Is(err, ErrNoData) {
			kind, cause = ErrNoData, nil
		}
		s.metrics.ObserveUpstream(string(p), spec.Name, outcomeOf(kind), time.Since(start))
		s.logger.Info("vendor payload rejected",
			zap.String("provider", string(p)),
			zap.String("operation", spec.Name),
			zap.Error(err))
		return Payload{}, vendorErr(p, spec.Name, kind, "", cause)
	}
	s.metrics.ObserveUpstream(string(p), spec.Name, "ok", time.Since(start))

	b, err := json.Marshal(data)
	if err != nil {
		return Payload{}, fmt.Errorf("encode %s: %w", spec.Name, err)
	}
	out := Payload{
		Provider:   p,
		Operation:  spec.Operation,
		Function:   spec.Name,
		Data:       b,
		FetchedISO: s.now().UTC().Format(time.RFC3339),
	}
	if s.cache != nil {
		if enc, err := MarshalCache(out); err == nil {
			if err := s.cache.Set(ctx, key, enc, s.ttl[spec.class]); err != nil {
				s.logger.Debug("cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return out, nil
}

func marketCacheKey(spec OperationSpec, fwd url.Values) string {
	keys := make([]string, 0, len(fwd))
	for k := range fwd {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fwd.Get(k))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&")))
	return fmt.Sprintf("market:v1:%s:%s:%s", spec.Provider, spec.Name, hex.EncodeToString(sum[:8]))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidParam):
		return "invalid_param"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrDataShape):
		return "data_shape"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	}
	return "transport"
}
