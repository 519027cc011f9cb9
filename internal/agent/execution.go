package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// executeTrades walks the ranked opportunities through the risk gate and
// places the approved orders, best edge first, until MaxTrades. Capital
// spent inside the cycle is deducted from the working balance so later
// assessments see what is actually left. In dry-run mode nothing reaches
// the exchange: the decision is journaled with a synthetic order id.
func (e *Engine) executeTrades(
	ctx context.Context,
	opportunities []domain.Opportunity,
	markets []domain.Market,
	balance, initial float64,
	report *domain.CycleReport,
) []domain.TradeLog {
	if len(opportunities) == 0 {
		return nil
	}

	negRiskByCondition := make(map[string]bool, len(markets))
	for _, m := range markets {
		negRiskByCondition[m.ConditionID] = m.NegRisk
	}

	exposureByCondition := e.exposureByCondition(ctx)

	var trades []domain.TradeLog
	working := balance

	for _, opp := range opportunities {
		if len(trades) >= e.params.MaxTrades {
			slog.Info("execution: trade cap reached", "max", e.params.MaxTrades)
			break
		}

		probability, price, token, outcome, ok := tradeSide(opp)
		if !ok {
			slog.Warn("execution: no tradable side", "condition_id", opp.ConditionID)
			continue
		}

		assessment := e.params.Risk.AssessTrade(
			probability, price, working, initial,
			exposureByCondition[opp.ConditionID], domain.SideBuy,
		)
		if !assessment.ShouldTrade {
			slog.Info("execution: rejected by risk gate",
				"condition_id", opp.ConditionID,
				"reason", assessment.Reason,
				"level", assessment.Level)
			if assessment.Level == domain.RiskBlocked {
				// Blocked is about the portfolio, not this market: every
				// further candidate is blocked too.
				break
			}
			continue
		}

		entry, err := e.placeTrade(ctx, opp, assessment, token, outcome, negRiskByCondition[opp.ConditionID])
		if err != nil {
			slog.Error("execution: order failed",
				"condition_id", opp.ConditionID, "err", err)
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("order failed on %s: %v", opp.ConditionID, err))
			continue
		}

		trades = append(trades, entry)
		working -= assessment.OrderSizeUSDC
		exposureByCondition[opp.ConditionID] += assessment.OrderSizeUSDC

		slog.Info("execution: trade placed",
			"condition_id", opp.ConditionID,
			"outcome", outcome,
			"size", fmt.Sprintf("$%.2f", assessment.OrderSizeUSDC),
			"price", price,
			"kelly", assessment.KellyUsed,
			"dry_run", e.params.DryRun)
	}

	return trades
}

// placeTrade submits one approved order and journals it. Live orders are
// also recorded in the orders and positions tables; dry-run decisions only
// touch the trade log.
func (e *Engine) placeTrade(
	ctx context.Context,
	opp domain.Opportunity,
	assessment domain.RiskAssessment,
	token domain.Token,
	outcome string,
	negRisk bool,
) (domain.TradeLog, error) {
	probability := opp.Probability
	if strings.EqualFold(outcome, "no") {
		probability = 1 - opp.Probability
	}

	entry := domain.TradeLog{
		ID:          e.newID(),
		ConditionID: opp.ConditionID,
		Question:    opp.Question,
		Side:        domain.SideBuy,
		Outcome:     outcome,
		Size:        assessment.OrderSizeUSDC,
		Price:       token.Price,
		Probability: probability,
		MarketPrice: opp.MarketPrice,
		Edge:        opp.Edge,
		KellyUsed:   assessment.KellyUsed,
		RiskLevel:   assessment.Level,
		Rationale:   opp.Rationale,
		DryRun:      e.params.DryRun,
		CreatedAt:   e.now(),
	}

	if e.params.DryRun {
		entry.OrderID = "dry-" + e.newID()
		if err := e.store.AppendTradeLog(ctx, entry); err != nil {
			slog.Warn("trade log write failed", "err", err)
		}
		return entry, nil
	}

	placed, err := e.ledger.PlaceOrder(ctx, domain.OrderRequest{
		TokenID:   token.TokenID,
		Price:     token.Price,
		Size:      assessment.OrderSizeUSDC,
		Side:      domain.SideBuy,
		OrderType: "GTC",
		NegRisk:   negRisk,
	})
	if err != nil {
		return domain.TradeLog{}, err
	}
	entry.OrderID = placed.OrderID

	now := e.now()
	if err := e.store.SaveOrder(ctx, domain.Order{
		OrderID:     placed.OrderID,
		ConditionID: opp.ConditionID,
		TokenID:     token.TokenID,
		Side:        domain.SideBuy,
		Price:       token.Price,
		Size:        assessment.OrderSizeUSDC,
		Status:      domain.OrderOpen,
		CreatedAt:   now,
	}); err != nil {
		slog.Error("order record write failed", "order_id", placed.OrderID, "err", err)
	}

	// Record the expected holding right away; the next reconciliation
	// converges it with whatever actually filled.
	shares := assessment.OrderSizeUSDC / token.Price
	if err := e.store.UpsertPosition(ctx, domain.Position{
		ConditionID: opp.ConditionID,
		TokenID:     token.TokenID,
		Size:        shares,
		EntryPrice:  token.Price,
		IsOpen:      true,
		Source:      domain.SourceAgent,
		OpenedAt:    now,
	}); err != nil {
		slog.Error("position record write failed", "condition_id", opp.ConditionID, "err", err)
	}

	if err := e.store.AppendTradeLog(ctx, entry); err != nil {
		slog.Warn("trade log write failed", "err", err)
	}

	return entry, nil
}

// tradeSide resolves which side of the market the edge points at.
// A positive edge buys YES at the YES price; a negative edge buys the NO
// token, mirroring probability and price to the complement.
func tradeSide(opp domain.Opportunity) (probability, price float64, token domain.Token, outcome string, ok bool) {
	m := domain.Market{Tokens: opp.Tokens}

	if opp.Edge >= 0 {
		yes, found := m.YesToken()
		if !found {
			return 0, 0, domain.Token{}, "", false
		}
		price = yes.Price
		if price == 0 {
			price = opp.MarketPrice
			yes.Price = price
		}
		return opp.Probability, price, yes, "Yes", true
	}

	no, found := m.NoToken()
	if !found {
		return 0, 0, domain.Token{}, "", false
	}
	price = no.Price
	if price == 0 {
		price = 1 - opp.MarketPrice
		no.Price = price
	}
	return 1 - opp.Probability, price, no, "No", true
}

// exposureByCondition sums the open exposure per market from the store.
func (e *Engine) exposureByCondition(ctx context.Context) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range e.openPositionsOrEmpty(ctx) {
		out[p.ConditionID] += p.Exposure()
	}
	return out
}
