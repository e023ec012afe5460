package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/domain/stock"
	"github.com/wonny/findata/internal/pkg/config"
)

// DefaultTTL is used when the configured TTL is not positive
const DefaultTTL = 10 * time.Minute

// StatsCache keeps computed averages in Redis, keyed by symbol, generation and date range
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatsCache wraps an existing client
func NewStatsCache(rdb *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatsCache{rdb: rdb, ttl: ttl}
}

// Connect creates a client from config and pings it.
// An empty address returns nil, nil: the cache is disabled.
func Connect(ctx context.Context, cfg config.RedisConfig) (*StatsCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Dur("ttl", cfg.TTL).Msg("✅ Redis stats cache connected")
	return NewStatsCache(rdb, cfg.TTL), nil
}

// Close closes the client
func (c *StatsCache) Close() error {
	return c.rdb.Close()
}

func statsKey(symbol string, gen int64, start, end time.Time) string {
	return fmt.Sprintf("stats:%s:g%d:%s:%s", symbol, gen, start.Format(stock.DateLayout), end.Format(stock.DateLayout))
}

func statsPattern(symbol string) string {
	return fmt.Sprintf("stats:%s:*", symbol)
}

// genKey lives outside the stats: namespace so no symbol pattern can match it
func genKey(symbol string) string {
	return fmt.Sprintf("statsgen:%s", symbol)
}

// Generation returns the current cache generation of symbol. Invalidate bumps it,
// so an entry written under an older generation is never read again.
func (c *StatsCache) Generation(ctx context.Context, symbol string) (int64, error) {
	gen, err := c.rdb.Get(ctx, genKey(symbol)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached average of one generation. A miss is (nil, false, nil).
func (c *StatsCache) Get(ctx context.Context, symbol string, gen int64, start, end time.Time) (*stock.Average, bool, error) {
	key := statsKey(symbol, gen, start, end)
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var avg stock.Average
	if err := json.Unmarshal(b, &avg); err != nil {
		// 손상된 값은 미스로 처리
		_ = c.rdb.Del(ctx, key).Err()
		return nil, false, nil
	}
	return &avg, true, nil
}

// Set stores avg under its own symbol and range in generation gen.
// gen must be read before the average is computed.
func (c *StatsCache) Set(ctx context.Context, gen int64, avg *stock.Average) error {
	b, err := json.Marshal(avg)
	if err != nil {
		return fmt.Errorf("marshal average: %w", err)
	}
	if err := c.rdb.Set(ctx, statsKey(avg.Symbol, gen, avg.StartDate, avg.EndDate), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate bumps the generation of symbol and drops its cached ranges.
// Returns the number of entries deleted.
func (c *StatsCache) Invalidate(ctx context.Context, symbol string) (int, error) {
	if err := c.rdb.Incr(ctx, genKey(symbol)).Err(); err != nil {
		return 0, fmt.Errorf("redis incr generation: %w", err)
	}

	iter := c.rdb.Scan(ctx, 0, statsPattern(symbol), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

// Health checks Redis connection health
func (c *StatsCache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
