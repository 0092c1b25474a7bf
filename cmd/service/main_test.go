package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/config"
	"github.com/kjstillabower/city-weather-service/internal/models"
)

func TestNewCacheBackend_InMemory(t *testing.T) {
	backend, err := newCacheBackend(&config.Config{CacheBackend: config.CacheBackendInMemory}, zap.NewNop())
	if err != nil {
		t.Fatalf("newCacheBackend() error = %v", err)
	}
	defer backend.Close()

	if _, ok := backend.(*cache.InMemoryCache); !ok {
		t.Errorf("backend = %T, want *cache.InMemoryCache", backend)
	}
	if err := backend.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

type countingFetcher struct {
	calls chan string
}

func (f *countingFetcher) Refresh(ctx context.Context, city string) (*models.WeatherResponse, error) {
	f.calls <- city
	return &models.WeatherResponse{}, nil
}

func TestStartWarming_OneShotWhenNoInterval(t *testing.T) {
	f := &countingFetcher{calls: make(chan string, 2)}
	cfg := &config.Config{WarmCache: true, WarmCities: []string{"London", "Paris"}}

	startWarming(context.Background(), f, cfg, zap.NewNop())

	if got := len(f.calls); got != 2 {
		t.Errorf("lookups = %d, want 2", got)
	}
}

// TestCoverageGaps_IntentionallyUntested documents paths we reviewed but chose not to test.
// Run with -v to see skip reasons.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Run("main", func(t *testing.T) {
		t.Skip("main is wiring and signal handling; entrypoint coverage would require exec and signal delivery")
	})
	t.Run("newCacheBackend_remote", func(t *testing.T) {
		t.Skip("memcached and redis constructors are covered by the integration-tagged tests in internal/cache")
	})
}
