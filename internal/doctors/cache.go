package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const listingKeyPrefix = "doctor:listing:"

// ListingCache keeps booking lookups in Redis. Entries are dropped whenever
// the profile's fee or verification changes.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a cache. A nil client yields nil.
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ListingCache{client: client, ttl: ttl}
}

func (c *ListingCache) key(profileID uuid.UUID) string {
	return listingKeyPrefix + profileID.String()
}

// Get returns the cached listing or nil on a miss.
func (c *ListingCache) Get(ctx context.Context, profileID uuid.UUID) (*Listing, error) {
	data, err := c.client.Get(ctx, c.key(profileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: cache get: %w", err)
	}
	var listing Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("doctors: cache unmarshal: %w", err)
	}
	return &listing, nil
}

// Set stores a listing with the cache TTL.
func (c *ListingCache) Set(ctx context.Context, listing *Listing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("doctors: cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(listing.ProfileID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("doctors: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached listing.
func (c *ListingCache) Invalidate(ctx context.Context, profileID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(profileID)).Err(); err != nil {
		return fmt.Errorf("doctors: cache invalidate: %w", err)
	}
	return nil
}
