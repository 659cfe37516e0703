package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phone-auth-service/internal/client"
)

func newTestCaches(t *testing.T) (*miniredis.Miniredis, *RateLimitCache, *OTPCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rc := client.NewRedisClientFromRaw(rdb)
	return mr, NewRateLimitCache(rc), NewOTPCache(rc)
}

func TestIncrementFailuresCountsUp(t *testing.T) {
	_, cache, _ := newTestCaches(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := cache.IncrementFailures(ctx, "phone_number", "09123456789", 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIncrementFailuresIsolatesKinds(t *testing.T) {
	_, cache, _ := newTestCaches(t)
	ctx := context.Background()

	_, err := cache.IncrementFailures(ctx, "phone_number", "value", 24*time.Hour)
	require.NoError(t, err)

	count, err := cache.GetFailureCount(ctx, "ip_address", "value")
	require.NoError(t, err)
	assert.Zero(t, count, "same value under another kind must not share a counter")
}

func TestFailureCounterExpires(t *testing.T) {
	mr, cache, _ := newTestCaches(t)
	ctx := context.Background()

	_, err := cache.IncrementFailures(ctx, "ip_address", "10.0.0.1", 24*time.Hour)
	require.NoError(t, err)

	mr.FastForward(24*time.Hour + time.Second)

	count, err := cache.GetFailureCount(ctx, "ip_address", "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSetBlockDropsCounter(t *testing.T) {
	_, cache, _ := newTestCaches(t)
	ctx := context.Background()

	_, err := cache.IncrementFailures(ctx, "phone_number", "09123456789", 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, cache.SetBlock(ctx, "phone_number", "09123456789", time.Hour))

	blocked, err := cache.IsBlocked(ctx, "phone_number", "09123456789")
	require.NoError(t, err)
	assert.True(t, blocked)

	count, err := cache.GetFailureCount(ctx, "phone_number", "09123456789")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBlockExpiresAfterTTL(t *testing.T) {
	mr, cache, _ := newTestCaches(t)
	ctx := context.Background()

	require.NoError(t, cache.SetBlock(ctx, "ip_address", "10.0.0.1", time.Hour))

	mr.FastForward(59 * time.Minute)
	blocked, err := cache.IsBlocked(ctx, "ip_address", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	mr.FastForward(2 * time.Minute)
	blocked, err = cache.IsBlocked(ctx, "ip_address", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestResetFailuresIsIdempotent(t *testing.T) {
	_, cache, _ := newTestCaches(t)
	ctx := context.Background()

	_, err := cache.IncrementFailures(ctx, "phone_number", "09123456789", 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, cache.ResetFailures(ctx, "phone_number", "09123456789"))
	// Second reset hits an absent counter and is a no-op.
	require.NoError(t, cache.ResetFailures(ctx, "phone_number", "09123456789"))

	count, err := cache.GetFailureCount(ctx, "phone_number", "09123456789")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOTPCacheRoundTrip(t *testing.T) {
	mr, _, otp := newTestCaches(t)
	ctx := context.Background()

	require.NoError(t, otp.SetOTP(ctx, "09123456789", "123456", 5*time.Minute))

	code, err := otp.GetOTP(ctx, "09123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	// A new code overwrites the old one.
	require.NoError(t, otp.SetOTP(ctx, "09123456789", "654321", 5*time.Minute))
	code, err = otp.GetOTP(ctx, "09123456789")
	require.NoError(t, err)
	assert.Equal(t, "654321", code)

	mr.FastForward(5*time.Minute + time.Second)
	_, err = otp.GetOTP(ctx, "09123456789")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPCacheMiss(t *testing.T) {
	_, _, otp := newTestCaches(t)

	_, err := otp.GetOTP(context.Background(), "00000000000")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}
