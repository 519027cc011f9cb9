package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// discoverMarkets fetches active markets and runs them through the funnel:
// open → enough volume → enough liquidity → inside the expiry window → tag
// policy. Survivors are sorted by volume descending and capped at
// MaxMarkets. Returns the selection and how many markets were fetched.
func (e *Engine) discoverMarkets(ctx context.Context) ([]domain.Market, int, error) {
	fetched, err := e.markets.FetchActiveMarkets(ctx, e.params.Filter.FetchLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch markets: %w", err)
	}

	selected := e.filterMarkets(fetched)

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Volume > selected[j].Volume
	})
	if len(selected) > e.params.MaxMarkets {
		selected = selected[:e.params.MaxMarkets]
	}

	return selected, len(fetched), nil
}

// filterMarkets applies the funnel stages in order. Each stage only sees
// what the previous one let through.
func (e *Engine) filterMarkets(markets []domain.Market) []domain.Market {
	f := e.params.Filter
	now := e.now()

	var out []domain.Market
	for _, m := range markets {
		if m.Closed || !m.Active {
			continue
		}
		if f.MinVolume > 0 && m.Volume < f.MinVolume {
			continue
		}
		if f.MinLiquidity > 0 && m.Liquidity < f.MinLiquidity {
			continue
		}

		// Expiry window: too close to resolution leaves no edge to capture,
		// too far ties up capital. Unknown end dates are excluded.
		expiry := m.TimeToExpiry(now)
		if expiry <= 0 {
			continue
		}
		if f.MinExpiry > 0 && expiry < f.MinExpiry {
			continue
		}
		if f.MaxExpiry > 0 && expiry > f.MaxExpiry {
			continue
		}

		if len(f.BlockedTags) > 0 && m.HasTag(f.BlockedTags) {
			continue
		}
		if len(f.AllowedTags) > 0 && !m.HasTag(f.AllowedTags) {
			continue
		}

		out = append(out, m)
	}
	return out
}
