package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kjstillabower/city-weather-service/internal/models"
)

// entry pairs a cached response with its absolute expiry. Remote backends
// store it as JSON so the expiry is re-checked on read rather than trusting
// the server's second-granularity TTL.
type entry struct {
	Value     models.WeatherResponse `json:"value"`
	ExpiresAt time.Time              `json:"expires_at"`
}

func newEntry(value models.WeatherResponse, now time.Time, ttl time.Duration) entry {
	return entry{Value: value, ExpiresAt: now.Add(ttl)}
}

// expired reports whether the entry must no longer be served at now.
func (e entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func encodeEntry(e entry) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return raw, nil
}

// decodeEntry unmarshals raw and reports whether it may still be served at now.
func decodeEntry(raw []byte, now time.Time) (models.WeatherResponse, bool, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.WeatherResponse{}, false, fmt.Errorf("cache decode: %w", err)
	}
	if e.expired(now) {
		return models.WeatherResponse{}, false, nil
	}
	return e.Value, true, nil
}

// remoteTTL converts ttl to whole seconds for backend-side expiry, rounding up
// so the server never drops an entry before the envelope does.
func remoteTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Second
	}
	return ttl.Round(time.Second) + time.Second
}
