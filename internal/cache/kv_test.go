package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisKVStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKVStore(client), mr
}

func TestRedisKVStore_SetGetDelete(t *testing.T) {
	kv, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)
	require.NoError(t, kv.Ping(ctx))
}

func TestRedisKVStore_Expiry(t *testing.T) {
	kv, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryKVStore_Expiry(t *testing.T) {
	kv := NewMemoryKVStore()
	now := time.Unix(1715003456, 0)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	now = now.Add(time.Minute)
	_, err = kv.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestJSONHelpers(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	type payload struct {
		Level string  `json:"level"`
		Dist  float64 `json:"dist"`
	}
	require.NoError(t, SetJSON(ctx, kv, PatientStatusKey("p1"), payload{"alert", 612}, 0))

	var out payload
	require.NoError(t, GetJSON(ctx, kv, PatientStatusKey("p1"), &out))
	assert.Equal(t, payload{"alert", 612}, out)

	require.NoError(t, kv.Set(ctx, "bad", "{", 0))
	assert.Error(t, GetJSON(ctx, kv, "bad", &out))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "safetrack:patient:p1:status", PatientStatusKey("p1"))
	assert.Equal(t, "safetrack:geocode:reverse:89c25a", ReverseGeocodeKey("89c25a"))
}
