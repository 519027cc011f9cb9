package agent

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

var errNoYesToken = errors.New("market has no tokens")

// analyzeMarkets turns selected markets into opportunities, cache-first.
// A fresh cached analysis is reused as-is; otherwise the oracle is asked
// and the result cached. An oracle failure means "no opinion" for that
// market: it is skipped and counted, never guessed at. The result is
// sorted by |edge| descending.
func (e *Engine) analyzeMarkets(ctx context.Context, markets []domain.Market) ([]domain.Opportunity, int) {
	var opportunities []domain.Opportunity
	oracleErrors := 0

	for _, m := range markets {
		cached, err := e.store.CachedOpportunity(ctx, m.ConditionID, e.params.CacheTTL)
		if err != nil {
			slog.Warn("analysis: cache read failed", "condition_id", m.ConditionID, "err", err)
		}
		if cached != nil {
			slog.Debug("analysis: cache hit", "condition_id", m.ConditionID)
			opportunities = append(opportunities, *cached)
			continue
		}

		opp, err := e.analyzeMarket(ctx, m)
		if err != nil {
			slog.Warn("analysis: oracle has no opinion, skipping market",
				"condition_id", m.ConditionID, "question", m.Question, "err", err)
			oracleErrors++
			continue
		}

		if err := e.store.CacheOpportunity(ctx, opp); err != nil {
			// A cold cache only costs a repeat oracle call next cycle.
			slog.Warn("analysis: cache write failed", "condition_id", m.ConditionID, "err", err)
		}
		opportunities = append(opportunities, opp)
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].AbsEdge() > opportunities[j].AbsEdge()
	})

	return opportunities, oracleErrors
}

// analyzeMarket asks the oracle for one market's probability and derives
// the edge against the YES price.
func (e *Engine) analyzeMarket(ctx context.Context, m domain.Market) (domain.Opportunity, error) {
	yes, ok := m.YesToken()
	if !ok {
		return domain.Opportunity{}, errNoYesToken
	}

	est, err := e.oracle.Estimate(ctx, m.Question, yes.Price, m.Description)
	if err != nil {
		return domain.Opportunity{}, err
	}

	edge := est.Probability - yes.Price

	return domain.Opportunity{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		MarketPrice: yes.Price,
		Probability: est.Probability,
		Edge:        edge,
		Confidence:  domain.ClassifyConfidence(edge),
		Rationale:   est.Rationale,
		Tokens:      m.Tokens,
		Volume:      m.Volume,
		AnalyzedAt:  e.now(),
	}, nil
}
