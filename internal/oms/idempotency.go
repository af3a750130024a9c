package oms

import (
	"context"
	"encoding/json"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/kv"
)

// loadIdempotent implements spec.md section 4.G.1 step 2: if a cached
// (decision, orders) payload exists for this key, return it instead of
// re-executing.
func (s *Service) loadIdempotent(ctx context.Context, userID, key string) (*ExecuteLatestResult, bool, error) {
	raw, ok, err := s.store.GetJSON(ctx, kv.OMSDedupeKey(userID, key))
	if err != nil {
		return nil, false, apperr.Fatalf(err, "read idempotency cache")
	}
	if !ok {
		return nil, false, nil
	}
	var result ExecuteLatestResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, nil
	}
	return &result, true, nil
}

func (s *Service) cacheIdempotent(ctx context.Context, userID, key string, result *ExecuteLatestResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if _, err := s.store.SetNXWithTTL(ctx, kv.OMSDedupeKey(userID, key), payload, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache idempotency payload")
	}
}

// pickDecision implements spec.md section 4.G.1 step 3: read up to limit
// decisions ordered by ascending risk, filter to the user's enabled
// exchange/symbols, and take the first match.
func (s *Service) pickDecision(ctx context.Context, userID string, limit int) (domain.Decision, bool, error) {
	members, err := s.store.ZRangeLimit(ctx, kv.DecisionsLatestKey, int64(limit))
	if err != nil {
		return domain.Decision{}, false, apperr.Fatalf(err, "read decisions:latest")
	}
	enabled, err := s.symbols.EnabledSymbols(ctx, userID)
	if err != nil {
		return domain.Decision{}, false, apperr.Transientf(err, "load enabled symbols for %s", userID)
	}
	for _, m := range members {
		decision, ok := decodeDecision(m.Member)
		if !ok {
			continue
		}
		if !symbolsEnabled(decision, enabled) {
			continue
		}
		return decision, true, nil
	}
	return domain.Decision{}, false, nil
}

func symbolsEnabled(decision domain.Decision, enabled map[string]bool) bool {
	if enabled == nil {
		return true
	}
	for _, symbol := range decision.Opportunity.Symbols() {
		if !enabled[symbol] {
			return false
		}
	}
	return true
}
