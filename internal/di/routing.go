package di

import (
	"context"
	"encoding/json"

	"github.com/aristath/inarbit/internal/decision"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/kv"
)

// kvRoutingProvider is the decision.RoutingProvider this core wires by
// default: per-strategy routing lives as a JSON value in the same KV
// store the market-data/idempotency layers already use, falling back to
// a permissive default when nothing has been configured yet. A
// settings-database-backed provider (the teacher's settings.Repository
// pattern) is an out-of-scope collaborator for this core.
type kvRoutingProvider struct {
	store *kv.Store
}

func newKVRoutingProvider(store *kv.Store) *kvRoutingProvider {
	return &kvRoutingProvider{store: store}
}

func (p *kvRoutingProvider) LoadRouting(ctx context.Context, strategyKey string) (domain.StrategyRouting, error) {
	raw, ok, err := p.store.GetJSON(ctx, kv.RoutingKey(strategyKey))
	if err != nil {
		return domain.StrategyRouting{}, err
	}
	if !ok {
		return decision.DefaultStrategyRouting(strategyKey), nil
	}
	var routing domain.StrategyRouting
	if err := json.Unmarshal(raw, &routing); err != nil {
		return decision.DefaultStrategyRouting(strategyKey), nil
	}
	return routing, nil
}
