package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gifting-service/internal/domain/ports/repository"
)

var _ repository.QuotaStore = (*QuotaStore)(nil)

// QuotaStore keeps counters in Redis so that every instance shares them.
type QuotaStore struct {
	cli *redis.Client
}

func NewQuotaStore(c *Client) *QuotaStore {
	return &QuotaStore{cli: c.cli}
}

// KEYS[1]=counter ARGV[1]=limit ARGV[2]=window ms
// returns {allowed(0|1), count}
var luaIncrBelow = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
if cur >= tonumber(ARGV[1]) then
	return {0, cur}
end
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, n}`)

var luaDecrFloor = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
if cur > 0 then
	return redis.call("DECR", KEYS[1])
end
return 0`)

func (s *QuotaStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (repository.QuotaResult, error) {
	if window <= 0 {
		window = time.Second
	}
	vals, err := luaIncrBelow.Run(ctx, s.cli, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return repository.QuotaResult{}, fmt.Errorf("quota incr %s: %w", key, err)
	}
	if len(vals) != 2 {
		return repository.QuotaResult{}, fmt.Errorf("quota incr %s: unexpected reply %v", key, vals)
	}
	return repository.QuotaResult{Allowed: vals[0] == 1, Count: vals[1]}, nil
}

func (s *QuotaStore) Release(ctx context.Context, key string) error {
	if err := luaDecrFloor.Run(ctx, s.cli, []string{key}).Err(); err != nil {
		return fmt.Errorf("quota release %s: %w", key, err)
	}
	return nil
}
