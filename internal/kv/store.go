// Package kv wraps a Redis client with the exact key layout spec.md
// section 6 requires: readers and writers in any language must agree on
// these keys, so this package is the single place that knows them.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store wraps a *redis.Client. Every method is a thin, typed adapter over
// the raw hash/sorted-set/scalar commands spec.md section 6 describes.
type Store struct {
	rdb *redis.Client
	log zerolog.Logger
}

// Config configures the underlying Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New dials a Redis client. The connection is lazy in go-redis; callers
// should Ping to fail fast.
func New(cfg Config, log zerolog.Logger) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{rdb: rdb, log: log.With().Str("component", "kv").Logger()}
}

// Ping verifies connectivity, surfaced as apperr.Fatal by callers per
// spec.md section 7 (KV store unavailable is a Fatal condition).
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.rdb.Close() }

// Raw exposes the underlying client for callers (e.g. pub/sub subscribers)
// that need operations this wrapper doesn't cover.
func (s *Store) Raw() *redis.Client { return s.rdb }

// --- Key builders (spec.md section 6) ---

func TickerKey(exchange, symbol string) string        { return fmt.Sprintf("ticker:%s:%s", exchange, symbol) }
func TickerFuturesKey(exchange, symbol string) string  { return fmt.Sprintf("ticker_futures:%s:%s", exchange, symbol) }
func OrderBookBidsKey(exchange, symbol string) string  { return fmt.Sprintf("orderbook:%s:%s:bids", exchange, symbol) }
func OrderBookAsksKey(exchange, symbol string) string  { return fmt.Sprintf("orderbook:%s:%s:asks", exchange, symbol) }
func OrderBookTSKey(exchange, symbol string) string     { return fmt.Sprintf("orderbook:%s:%s:ts", exchange, symbol) }
func FundingKey(exchange, symbol string) string        { return fmt.Sprintf("funding:%s:%s", exchange, symbol) }
func SymbolsKey(namespace, exchange string) string     { return fmt.Sprintf("symbols:%s:%s", namespace, exchange) }
func MetricsKey(service string) string                 { return fmt.Sprintf("metrics:%s", service) }
func OMSDedupeKey(user, key string) string             { return fmt.Sprintf("oms:dedupe:%s:%s", user, key) }
func PnLPlanMarkerKey(mode, planID string) string      { return fmt.Sprintf("pnl:plan:%s:%s", mode, planID) }
func RoutingKey(strategyKey string) string             { return fmt.Sprintf("routing:%s", strategyKey) }

const (
	TriangularOpportunitiesKey = "opportunities:triangular"
	CashCarryOpportunitiesKey  = "opportunities:cashcarry"
	DecisionsLatestKey         = "decisions:latest"
	ConstraintsHumanKey        = "decision:constraints:human"
	ConstraintsAutoKey         = "decision:constraints:auto"
	ConstraintsEffectiveKey    = "decision:constraints:effective"
)

const (
	TickerTTL    = 20 * time.Second
	OrderBookTTL = 15 * time.Second
	FundingTTL   = 8 * time.Hour
	OpportunityTTL = 10 * time.Second
	DecisionTTL    = 10 * time.Second
	PnLMarkerTTL   = time.Hour
)

// --- Hash helpers ---

// HSetWithTTL writes a hash and sets its TTL in one pipeline round-trip.
func (s *Store) HSetWithTTL(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// HGetAll reads a whole hash. Returns an empty map (not an error) on miss,
// matching spec.md section 4.A's "failure to parse a field yields null in
// that field only; never throws" contract.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

// --- Sorted-set helpers ---

// ZMember is one scored member of a sorted set.
type ZMember struct {
	Score  float64
	Member string
}

// ReplaceSortedSet atomically replaces the contents of key with members,
// then sets its TTL, as spec.md section 4.C/D/F require ("delete + zadd
// members under a pipeline"). An empty members slice still clears the key.
func (s *Store) ReplaceSortedSet(ctx context.Context, key string, members []ZMember, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		zs := make([]redis.Z, len(members))
		for i, m := range members {
			zs[i] = redis.Z{Score: m.Score, Member: m.Member}
		}
		pipe.ZAdd(ctx, key, zs...)
	}
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// ZRevRangeWithScores returns every member of key, highest score first
// ("zrevrange 0 -1 withscores" per spec.md section 4.F.1).
func (s *Store) ZRevRangeWithScores(ctx context.Context, key string) ([]ZMember, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ZMember, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out[i] = ZMember{Score: z.Score, Member: member}
	}
	return out, nil
}

// ZRangeLimit returns up to limit members in ascending score order (lowest
// risk first, per spec.md section 4.G.1's "read up to max(50, limit)
// decisions from decisions:latest").
func (s *Store) ZRangeLimit(ctx context.Context, key string, limit int64) ([]ZMember, error) {
	if limit <= 0 {
		return nil, nil
	}
	zs, err := s.rdb.ZRangeWithScores(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ZMember, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		out[i] = ZMember{Score: z.Score, Member: member}
	}
	return out, nil
}

// ZTop1Desc returns the single highest-scored member (best bid read, desc).
func (s *Store) ZTop1Desc(ctx context.Context, key string) (ZMember, bool, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return ZMember{}, false, err
	}
	if len(zs) == 0 {
		return ZMember{}, false, nil
	}
	member, _ := zs[0].Member.(string)
	return ZMember{Score: zs[0].Score, Member: member}, true, nil
}

// ZTop1Asc returns the single lowest-scored member (best ask read, asc).
func (s *Store) ZTop1Asc(ctx context.Context, key string) (ZMember, bool, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return ZMember{}, false, err
	}
	if len(zs) == 0 {
		return ZMember{}, false, nil
	}
	member, _ := zs[0].Member.(string)
	return ZMember{Score: zs[0].Score, Member: member}, true, nil
}

// --- Scalar helpers ---

// SetJSONWithTTL stores a scalar JSON-encoded payload with a TTL.
func (s *Store) SetJSONWithTTL(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}

// SetNXWithTTL sets key to payload only if it doesn't already exist,
// returning true if this call won the race (spec.md section 4.G.1's
// idempotency_key check-and-set).
func (s *Store) SetNXWithTTL(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, payload, ttl).Result()
}

// GetJSON reads a scalar JSON payload, returning (nil, false, nil) on miss.
func (s *Store) GetJSON(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// SAdd adds members to a set (symbol index sets, spec.md section 4.B).
func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.rdb.SAdd(ctx, key, args...).Err()
}

// SMembers reads a set's members.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

// Publish sends a payload on a Redis pub/sub channel (spec.md section 6
// calls out pub/sub as part of the KV collaborator's contract). Its one
// caller is the ingestor's poll-complete notice; internal/events does not
// publish through it.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.rdb.Publish(ctx, channel, payload).Err()
}
