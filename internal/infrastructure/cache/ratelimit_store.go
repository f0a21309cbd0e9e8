package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trackimpact/support-api/internal/domain/ratelimit"
)

const rateLimitPrefix = "support-api:ratelimit:"

// KEYS[1] sorted set of admission times in ms; ARGV now_ms, period_ms, limit, member.
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - period)
local count = redis.call('ZCARD', KEYS[1])

if count >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], period)
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {1, count + 1, tonumber(first[2])}
`)

// RedisStore shares the sliding window log between instances.
type RedisStore struct {
	client redis.Scripter
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Admit(ctx context.Context, key string, limit int, period time.Duration, now time.Time) (ratelimit.Admission, error) {
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	raw, err := admitScript.Run(ctx, s.client, []string{rateLimitPrefix + key},
		now.UnixMilli(), period.Milliseconds(), limit, member).Result()
	if err != nil {
		return ratelimit.Admission{}, fmt.Errorf("rate limit script: %w", err)
	}
	return toAdmission(raw)
}

func toAdmission(raw any) (ratelimit.Admission, error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return ratelimit.Admission{}, fmt.Errorf("unexpected rate limit reply %v", raw)
	}

	nums := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return ratelimit.Admission{}, fmt.Errorf("unexpected rate limit reply element %T", v)
		}
		nums[i] = n
	}

	return ratelimit.Admission{
		Admitted: nums[0] == 1,
		Count:    int(nums[1]),
		Oldest:   time.UnixMilli(nums[2]),
	}, nil
}

var _ ratelimit.Store = (*RedisStore)(nil)
