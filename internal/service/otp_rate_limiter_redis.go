package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
}

// redisOTPRateLimiter cuenta envios de codigos en ventanas fijas compartidas por
// todas las instancias. La ventana va en la clave (hapo:otp:<purpose>:<email>:<inicio>),
// asi un EXPIREAT perdido no extiende el bloqueo. Si Redis no responde deja pasar.
type redisOTPRateLimiter struct {
	client redisCounter
	window time.Duration
	max    int64
	prefix string
	now    func() time.Time
}

func NewRedisOTPRateLimiter(client redisCounter, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisOTPRateLimiter{
		client: client,
		window: window,
		max:    int64(max),
		prefix: "hapo:otp:",
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *redisOTPRateLimiter) Allow(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	start := l.now().Truncate(l.window)
	bucket := l.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		_ = l.client.ExpireAt(ctx, bucket, start.Add(l.window)).Err()
	}
	return n <= l.max
}
