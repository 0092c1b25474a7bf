package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/city-weather-service/internal/models"
)

// memcached rejects keys longer than this or containing spaces/control characters.
const maxMemcachedKeyLen = 250

// MemcachedCache implements Backend using memcached.
type MemcachedCache struct {
	client *memcache.Client
	now    func() time.Time
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client, now: time.Now}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcachedKey escapes k into memcached's key alphabet, hashing it when too long.
func memcachedKey(k string) string {
	escaped := url.QueryEscape(k)
	if len(escaped) <= maxMemcachedKeyLen {
		return escaped
	}
	sum := sha256.Sum256([]byte(k))
	return "sha256_" + hex.EncodeToString(sum[:])
}

// Get implements Cache.Get. Returns false, nil on miss or expiry; false, err on backend error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.WeatherResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherResponse{}, false, err
	}
	item, err := c.client.Get(memcachedKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.WeatherResponse{}, false, nil
		}
		return models.WeatherResponse{}, false, err
	}
	return decodeEntry(item.Value, c.now())
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.WeatherResponse, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntry(newEntry(value, c.now(), ttl))
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        memcachedKey(key),
		Value:      raw,
		Expiration: int32(remoteTTL(ttl).Seconds()),
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
