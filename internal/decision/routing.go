package decision

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/domain"
)

// RoutingProvider loads the persisted per-strategy routing config; the
// OMS/config layer is expected to wire a concrete implementation backed
// by a database table or KV hash.
type RoutingProvider interface {
	LoadRouting(ctx context.Context, strategyKey string) (domain.StrategyRouting, error)
}

// routingCache is a TTL'd cache over RoutingProvider (spec.md section
// 4.F.3: "cached, default 10s TTL").
type routingCache struct {
	provider RoutingProvider
	ttl      time.Duration
	entries  map[string]cachedRouting
}

type cachedRouting struct {
	routing   domain.StrategyRouting
	expiresAt time.Time
}

func newRoutingCache(provider RoutingProvider, ttl time.Duration) *routingCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &routingCache{provider: provider, ttl: ttl, entries: make(map[string]cachedRouting)}
}

func (c *routingCache) get(ctx context.Context, strategyKey string) (domain.StrategyRouting, error) {
	now := time.Now()
	if entry, ok := c.entries[strategyKey]; ok && now.Before(entry.expiresAt) {
		return entry.routing, nil
	}
	routing, err := c.provider.LoadRouting(ctx, strategyKey)
	if err != nil {
		return domain.StrategyRouting{}, err
	}
	c.entries[strategyKey] = cachedRouting{routing: routing, expiresAt: now.Add(c.ttl)}
	return routing, nil
}

// DefaultStrategyRouting returns a permissive routing config, used when a
// RoutingProvider has no persisted config yet for a strategy key.
func DefaultStrategyRouting(strategyKey string) domain.StrategyRouting {
	return domain.StrategyRouting{
		StrategyKey: strategyKey,
		AllowShort:  true,
		MaxLeverage: 1,
		RegimeWeights: domain.RegimeWeights{
			Range: 1, Downtrend: 1, Uptrend: 1, Stress: 1,
		},
		IsEnabled: true,
	}
}
