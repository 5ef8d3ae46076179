package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"OrgVerify/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	presencePrefix     = "presence:online:"
	DefaultPresenceTTL = 90 * time.Second
)

// 连接数减到 0 时删除字段
var offlineScript = redis.NewScript(`
	local n = redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
	if n <= 0 then
		redis.call("HDEL", KEYS[1], ARGV[1])
	end
	return n
`)

// Presence keeps a per-actor live connection count in a Redis hash so every
// instance sees who is online. Each instance owns one hash with a TTL that
// Run keeps refreshing, so a crashed instance's actors drop out on their own.
type Presence struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewPresence(rdb *redis.Client, instanceID string, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{rdb: rdb, key: presencePrefix + instanceID, ttl: ttl}
}

func (p *Presence) Online(ctx context.Context, ref models.ActorRef) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, p.key, ref.String(), 1)
		pipe.Expire(ctx, p.key, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s online: %w", ref, err)
	}
	return nil
}

func (p *Presence) Offline(ctx context.Context, ref models.ActorRef) error {
	if err := offlineScript.Run(ctx, p.rdb, []string{p.key}, ref.String()).Err(); err != nil {
		return fmt.Errorf("failed to mark %s offline: %w", ref, err)
	}
	return nil
}

// List merges the hashes of every live instance.
func (p *Presence) List(ctx context.Context) ([]models.ActorRef, error) {
	seen := make(map[models.ActorRef]bool)
	iter := p.rdb.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		result, err := p.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch online actors: %w", err)
		}
		for field, count := range result {
			if n, err := strconv.Atoi(count); err != nil || n <= 0 {
				continue
			}
			ref, err := models.ParseActorRef(field)
			if err != nil {
				log.Warn().Str("field", field).Msg("skipping malformed presence entry")
				continue
			}
			seen[ref] = true
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch online actors: %w", err)
	}

	refs := make([]models.ActorRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	return refs, nil
}

// Refresh extends this instance's hash; a missing hash is left missing.
func (p *Presence) Refresh(ctx context.Context) error {
	if err := p.rdb.Expire(ctx, p.key, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// Run refreshes the TTL at a third of its length until ctx is done.
func (p *Presence) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("presence heartbeat failed")
			}
		}
	}
}
