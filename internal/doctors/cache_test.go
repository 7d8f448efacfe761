package doctors

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ListingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewListingCache(client, ttl), mr
}

func TestListingCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	listing := &Listing{ProfileID: uuid.New(), AccountID: uuid.New(), Name: "Dr. A", ConsultationFee: 500, IsVerified: true}

	miss, err := cache.Get(ctx, listing.ProfileID)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Set(ctx, listing))
	assert.Equal(t, time.Minute, mr.TTL(listingKeyPrefix+listing.ProfileID.String()))

	got, err := cache.Get(ctx, listing.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, listing, got)

	require.NoError(t, cache.Invalidate(ctx, listing.ProfileID))
	got, err = cache.Get(ctx, listing.ProfileID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListingCache_CorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	id := uuid.New()
	require.NoError(t, mr.Set(listingKeyPrefix+id.String(), "{not json"))

	_, err := cache.Get(context.Background(), id)
	assert.Error(t, err)
}

func TestNewListingCache_NilClient(t *testing.T) {
	assert.Nil(t, NewListingCache(nil, time.Minute))
}
