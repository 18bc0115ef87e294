package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hapo/internal/domain"
)

// fakeRedisCounter imita INCR/EXPIREAT sobre un mapa.
type fakeRedisCounter struct {
	counts  map[string]int64
	expires map[string]time.Time
	err     error
}

func newFakeRedisCounter() *fakeRedisCounter {
	return &fakeRedisCounter{counts: map[string]int64{}, expires: map[string]time.Time{}}
}

func (f *fakeRedisCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeRedisCounter) ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd {
	f.expires[key] = tm
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func newTestRedisLimiter(t *testing.T, client redisCounter, window time.Duration, max int, clock *fakeClock) *redisOTPRateLimiter {
	t.Helper()
	l, ok := NewRedisOTPRateLimiter(client, window, max).(*redisOTPRateLimiter)
	require.True(t, ok)
	l.now = clock.Now
	return l
}

func TestRedisOTPRateLimiter_SignupAndMFABudgets(t *testing.T) {
	client := newFakeRedisCounter()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 4, 0, 0, time.UTC)}
	l := newTestRedisLimiter(t, client, 10*time.Minute, 2, clock)

	signup := rateLimitKey(string(domain.PurposeEmail), "Ana@Hapo.com")
	assert.True(t, l.Allow(signup))
	assert.True(t, l.Allow(signup))
	assert.False(t, l.Allow(signup), "third signup code in the window")
	assert.True(t, l.Allow(rateLimitKey(string(domain.PurposeMFA), "ana@hapo.com")), "mfa keeps its own budget")

	bucket := "hapo:otp:email:ana@hapo.com:1772445600"
	assert.Equal(t, int64(3), client.counts[bucket])
	assert.Equal(t, time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC), client.expires[bucket])
}

func TestRedisOTPRateLimiter_NextWindowResets(t *testing.T) {
	client := newFakeRedisCounter()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 9, 59, 0, time.UTC)}
	l := newTestRedisLimiter(t, client, 10*time.Minute, 1, clock)

	key := rateLimitKey(string(domain.PurposeMFA), "pat@example.com")
	assert.True(t, l.Allow(key))
	assert.False(t, l.Allow(key))

	clock.now = clock.now.Add(2 * time.Second)
	assert.True(t, l.Allow(key), "a new window starts at 10:10")
	assert.Len(t, client.expires, 2)
}

func TestRedisOTPRateLimiter_EdgeCases(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}

	l := newTestRedisLimiter(t, newFakeRedisCounter(), time.Minute, 3, clock)
	assert.False(t, l.Allow("   "), "blank keys are never allowed")

	down := newFakeRedisCounter()
	down.err = errors.New("connection refused")
	l = newTestRedisLimiter(t, down, time.Minute, 1, clock)
	assert.True(t, l.Allow("email:pat@example.com"), "redis outage lets codes through")

	assert.Nil(t, NewRedisOTPRateLimiter(nil, time.Minute, 1))
	defaults, ok := NewRedisOTPRateLimiter(newFakeRedisCounter(), 0, 0).(*redisOTPRateLimiter)
	require.True(t, ok)
	assert.Equal(t, time.Minute, defaults.window)
	assert.Equal(t, int64(1), defaults.max)
}
