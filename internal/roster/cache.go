package roster

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"classtrack/internal/model"
)

// CachedLocations wraps a LocationResolver with a short redis TTL cache.
// Locations are read on every self-mark, so this keeps the directory
// service off the hot path. Misses and redis outages fall through to the
// wrapped resolver.
type CachedLocations struct {
	next   LocationResolver
	client *redis.Client
	ttl    time.Duration
}

// NewCachedLocations builds the cache decorator.
func NewCachedLocations(next LocationResolver, client *redis.Client, ttl time.Duration) *CachedLocations {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedLocations{next: next, client: client, ttl: ttl}
}

func (c *CachedLocations) GetLocation(ctx context.Context, classConfigID string) (*model.Location, error) {
	key := "classtrack:loc:" + classConfigID
	if c.client != nil {
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			var loc model.Location
			if err := json.Unmarshal([]byte(raw), &loc); err == nil {
				return &loc, nil
			}
		}
	}

	loc, err := c.next.GetLocation(ctx, classConfigID)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		if raw, err := json.Marshal(loc); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				log.Printf("location cache write failed for %s: %v", classConfigID, err)
			}
		}
	}
	return loc, nil
}
