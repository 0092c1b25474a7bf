package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/observability"
)

const (
	// CacheTTL is the absolute lifetime of every cached response. Not configurable.
	CacheTTL = 5 * time.Minute

	cacheKeyPrefix = "weather_"
)

// WeatherService looks up current weather using cache-aside over the
// WeatherAPI.com client. It holds no per-request state outside the cache.
type WeatherService struct {
	client client.WeatherClient
	cache  cache.Cache
	logger *zap.Logger
	misses *missTracker
}

// NewWeatherService creates a WeatherService. logger is the fallback when the
// request context carries none; nil disables it.
func NewWeatherService(c client.WeatherClient, ch cache.Cache, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client: c,
		cache:  ch,
		logger: logger,
		misses: newMissTracker(),
	}
}

// CacheKey returns the namespaced, case-insensitive cache key for city.
func CacheKey(city string) string {
	return cacheKeyPrefix + strings.ToLower(city)
}

// Lookup returns current weather for city. A cache hit returns without
// touching upstream. On a miss the raw city is sent upstream, the status is
// classified, the body decoded and, if present, cached for CacheTTL.
//
// A nil response with a nil error means the provider answered 2xx with a
// JSON null body; it is not cached. Failures are *client.LookupError values
// and nothing is cached on any failure path. The returned value shares no
// pointers with the cached entry.
func (s *WeatherService) Lookup(ctx context.Context, city string) (*models.WeatherResponse, error) {
	key := CacheKey(city)
	logger := s.loggerFor(ctx).With(zap.String("city", city))
	observability.RecordWeatherQuery(city)

	if cached, ok := s.cacheGet(ctx, key, logger); ok {
		observability.CacheHitsTotal.WithLabelValues("weather").Inc()
		logger.Debug("returned data from cache")
		return &cached, nil
	}
	observability.CacheMissesTotal.WithLabelValues("weather").Inc()

	if n := s.misses.Begin(key); n > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(observability.MetricCityLabel(city)).Inc()
	}
	defer s.misses.End(key)

	logger.Info("getting weather for city")
	return s.load(ctx, city, key, logger)
}

// Refresh fetches city from upstream and overwrites its cache entry with a
// fresh CacheTTL, skipping the cache read. Results and failures follow Lookup.
func (s *WeatherService) Refresh(ctx context.Context, city string) (*models.WeatherResponse, error) {
	logger := s.loggerFor(ctx).With(zap.String("city", city))
	logger.Debug("refreshing weather for city")
	return s.load(ctx, city, CacheKey(city), logger)
}

// load fetches city and caches a present result under key.
func (s *WeatherService) load(ctx context.Context, city, key string, logger *zap.Logger) (*models.WeatherResponse, error) {
	resp, err := s.fetch(ctx, city, logger)
	if err != nil {
		observability.LookupErrorsTotal.WithLabelValues(string(client.KindOf(err))).Inc()
		return nil, err
	}
	if resp == nil {
		logger.Warn("weather service returned an empty body")
		return nil, nil
	}

	s.cacheSet(ctx, key, *resp, logger)
	return resp, nil
}

// fetch performs the upstream call, classifies the status and decodes the body.
func (s *WeatherService) fetch(ctx context.Context, city string, logger *zap.Logger) (*models.WeatherResponse, error) {
	status, body, err := s.client.FetchCurrent(ctx, city)
	if err != nil {
		logger.Error("HTTP request error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
		return nil, &client.LookupError{Kind: client.KindUpstream, City: city, StatusCode: status, Err: err}
	}

	if err := client.ClassifyStatus(city, status); err != nil {
		switch client.KindOf(err) {
		case client.KindAuth:
			logger.Warn("invalid API key", zap.Int("status", status))
		case client.KindNotFound:
			logger.Warn("city not found", zap.Int("status", status))
		default:
			logger.Warn("upstream HTTP error", zap.Int("status", status))
		}
		return nil, err
	}

	resp, err := client.Decode(body)
	if err != nil {
		logger.Error("weather data parsing error", zap.Error(err))
		return nil, &client.LookupError{Kind: client.KindDecode, City: city, StatusCode: status, Err: err}
	}
	return resp, nil
}

// cacheGet reads key, treating backend errors as a miss.
func (s *WeatherService) cacheGet(ctx context.Context, key string, logger *zap.Logger) (models.WeatherResponse, bool) {
	start := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(duration)
		logger.Warn("cache get failed", zap.Error(err))
		return models.WeatherResponse{}, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(duration)
	return cached, ok
}

// cacheSet stores value for CacheTTL. A failed write is logged and does not fail the lookup.
func (s *WeatherService) cacheSet(ctx context.Context, key string, value models.WeatherResponse, logger *zap.Logger) {
	start := time.Now()
	err := s.cache.Set(ctx, key, value, CacheTTL)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(duration)
		logger.Warn("cache set failed", zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(duration)
}

func (s *WeatherService) loggerFor(ctx context.Context) *zap.Logger {
	if l := observability.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
