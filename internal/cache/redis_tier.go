package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"translation_gateway/internal/models"
)

// fastTierTimeout bounds each fast-tier round trip so a slow Redis never
// dominates request latency.
const fastTierTimeout = 10 * time.Millisecond

// RedisTier is the fast volatile cache tier. Entries are stored as JSON with
// a TTL and the tier is fully rebuildable from the durable tier.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier creates the fast tier on an existing Redis client.
func NewRedisTier(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

func (t *RedisTier) key(fingerprint string) string {
	return fmt.Sprintf("trcache:%s", fingerprint)
}

// Get returns the cached entry, or a miss if the key is absent, the value
// does not decode, or Redis does not answer within the latency budget.
func (t *RedisTier) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, fastTierTimeout)
	defer cancel()

	data, err := t.client.Get(ctx, t.key(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fast tier get: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("fast tier decode: %w", err)
	}
	return &entry, true, nil
}

// Put stores the entry with the given TTL.
func (t *RedisTier) Put(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("fast tier encode: %w", err)
	}
	if err := t.client.Set(ctx, t.key(entry.Fingerprint), data, ttl).Err(); err != nil {
		return fmt.Errorf("fast tier set: %w", err)
	}
	return nil
}

// Touch is a no-op on the fast tier; recency is tracked by key TTL and the
// durable tier owns hit bookkeeping.
func (t *RedisTier) Touch(ctx context.Context, fingerprint string) error {
	return nil
}
