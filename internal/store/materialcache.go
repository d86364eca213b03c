package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chrisgscott/ellen/models"
)

const materialKeyPrefix = "material:"

// Conn opens a Redis client and verifies the connection.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", host, port, err)
	}
	return client, nil
}

// MaterialCache is a read-through TTL cache in front of the materials
// catalog. Cache failures degrade to the underlying store: a cold or dead
// Redis never breaks a lookup.
type MaterialCache struct {
	client *redis.Client
	store  *Store
	ttl    time.Duration
	logger *log.Logger
}

// NewMaterialCache wraps store with client. A nil client disables caching
// entirely and every lookup goes straight to Postgres.
func NewMaterialCache(client *redis.Client, store *Store, ttl time.Duration, logger *log.Logger) *MaterialCache {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MaterialCache{client: client, store: store, ttl: ttl, logger: logger}
}

// LookupMaterial resolves a material by name, serving from cache when warm.
func (c *MaterialCache) LookupMaterial(ctx context.Context, name string) (models.Material, bool, error) {
	key := materialKeyPrefix + strings.ToLower(strings.TrimSpace(name))
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil:
			var m models.Material
			if err := json.Unmarshal([]byte(val), &m); err == nil {
				return m, true, nil
			}
			c.logger.Printf("material cache: corrupt entry for %q, refetching", name)
		case !errors.Is(err, redis.Nil):
			c.logger.Printf("material cache: get %q: %v", name, err)
		}
	}

	m, ok, err := c.store.LookupMaterial(ctx, name)
	if err != nil || !ok {
		return m, ok, err
	}
	if c.client != nil {
		if data, err := json.Marshal(m); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.Printf("material cache: set %q: %v", name, err)
			}
		}
	}
	return m, true, nil
}
