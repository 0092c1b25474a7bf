//go:build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/config"
	"github.com/kjstillabower/city-weather-service/internal/service"
)

// IntegrationTestConfig holds configuration for tests against the live provider.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	CacheBackend   string // in_memory, memcached or redis
	MemcachedAddrs string
	RedisAddr      string
}

// GetIntegrationConfig reads the environment. Skips the test when WEATHER_API_KEY is unset.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         envOr("WEATHER_API_URL", client.DefaultBaseURL),
		CacheBackend:   envOr("INTEGRATION_CACHE_BACKEND", config.CacheBackendInMemory),
		MemcachedAddrs: envOr("MEMCACHED_ADDRS", "localhost:11211"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
	}
}

// SetupIntegrationService wires a live client, the configured cache backend and
// the lookup service. Unreachable remote backends fall back to in-memory.
// The backend is closed on test cleanup.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Backend) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	weatherClient, err := client.NewWeatherAPIClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}

	backend := newBackend(t, cfg)
	t.Cleanup(func() { _ = backend.Close() })

	return service.NewWeatherService(weatherClient, backend, logger), backend
}

func newBackend(t *testing.T, cfg IntegrationTestConfig) cache.Backend {
	t.Helper()
	switch cfg.CacheBackend {
	case config.CacheBackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, 500*time.Millisecond, 2)
		if err == nil {
			if err = mc.Ping(context.Background()); err == nil {
				t.Logf("using memcached at %s", cfg.MemcachedAddrs)
				return mc
			}
			_ = mc.Close()
		}
		t.Logf("memcached not available (%v), using in-memory cache", err)
	case config.CacheBackendRedis:
		rc, err := cache.NewRedisCache(context.Background(), cache.RedisOptions{Addr: cfg.RedisAddr, Timeout: 500 * time.Millisecond})
		if err == nil {
			t.Logf("using redis at %s", cfg.RedisAddr)
			return rc
		}
		t.Logf("redis not available (%v), using in-memory cache", err)
	}
	return cache.NewInMemoryCache()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
