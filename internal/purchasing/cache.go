package purchasing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const typeIndexKey = "procura:vendortype:index"

// IndexCache keeps the derived vendor-type index in Redis so suggestion
// requests do not rebuild it from the link table on every call. The index
// is invalidated by the catalog handlers and rebuilt by a background job.
type IndexCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIndexCache instantiates the cache helper. client may be nil, in which
// case every lookup misses.
func NewIndexCache(client *redis.Client, ttl time.Duration) *IndexCache {
	return &IndexCache{client: client, ttl: ttl}
}

// Get returns the cached index, ok=false on miss.
func (c *IndexCache) Get(ctx context.Context) (TypeIndex, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, typeIndexKey).Bytes()
	if err != nil {
		return nil, false
	}
	var index TypeIndex
	if err := json.Unmarshal(payload, &index); err != nil {
		return nil, false
	}
	return index, true
}

// Put stores the index.
func (c *IndexCache) Put(ctx context.Context, index TypeIndex) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, typeIndexKey, payload, c.ttl).Err()
}

// Invalidate drops the cached index after vendor or category changes.
func (c *IndexCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, typeIndexKey).Err()
}
