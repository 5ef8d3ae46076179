package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StrategyFixedWindow = "fixed_window"
	StrategyTokenBucket = "token_bucket"
)

// Strategy 定义限流算法策略接口
type Strategy interface {
	// Allow reports whether one more hit on key fits in limit per window.
	Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error)
}

func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "", StrategyFixedWindow:
		return &FixedWindowStrategy{}, nil
	case StrategyTokenBucket:
		return &TokenBucketStrategy{now: time.Now}, nil
	}
	return nil, fmt.Errorf("unknown rate limit strategy %q", name)
}

// Limiter is satisfied by both the Redis backed Manager and LocalManager.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Manager applies one strategy with a fixed limit/window to many keys.
type Manager struct {
	rdb      *redis.Client
	strategy Strategy
	prefix   string
	limit    int
	window   time.Duration
}

func NewManager(rdb *redis.Client, strategy Strategy, prefix string, limit int, window time.Duration) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
		prefix:   prefix,
		limit:    limit,
		window:   window,
	}
}

// Allow 代理执行具体的策略
func (m *Manager) Allow(ctx context.Context, key string) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, "limiter:"+m.prefix+":"+key, m.limit, m.window)
}

// 固定窗口：INCR 与 EXPIRE 原子执行
var fixedWindowScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	if current > tonumber(ARGV[1]) then
		return 0
	end
	return 1
`)

type FixedWindowStrategy struct{}

func (s *FixedWindowStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	result, err := fixedWindowScript.Run(ctx, rdb, []string{key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// 令牌桶：按时间差补充令牌，桶容量为 limit
var tokenBucketScript = redis.NewScript(`
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local info = redis.call("HMGET", KEYS[1], "tokens", "last_ms")
	local tokens = tonumber(info[1])
	local last = tonumber(info[2])
	if tokens == nil then
		tokens = capacity
		last = now
	end

	tokens = math.min(capacity, tokens + math.max(0, now - last) * rate)
	if tokens < 1 then
		return 0
	end
	redis.call("HSET", KEYS[1], "tokens", tostring(tokens - 1), "last_ms", tostring(now))
	redis.call("PEXPIRE", KEYS[1], ttl)
	return 1
`)

type TokenBucketStrategy struct {
	now func() time.Time
}

func (s *TokenBucketStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, fmt.Errorf("token bucket needs a positive limit and window")
	}
	// tokens per millisecond
	rate := float64(limit) / float64(window.Milliseconds())
	now := s.now().UnixMilli()

	result, err := tokenBucketScript.Run(ctx, rdb, []string{key}, limit, rate, now, (2 * window).Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
