package agent

import (
	"log/slog"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// scanArbitrage checks whether any selected market prices its full outcome
// set away from 1.00 beyond the tolerance. Pure observation: signals are
// reported in the summary, never traded on.
func (e *Engine) scanArbitrage(markets []domain.Market) []domain.ArbitrageSignal {
	var signals []domain.ArbitrageSignal
	for _, m := range markets {
		sig, found := domain.DetectArbitrage(m, e.params.ArbTolerance)
		if !found {
			continue
		}
		signals = append(signals, sig)
		slog.Info("arbitrage: set mispriced",
			"condition_id", sig.ConditionID,
			"type", sig.Type,
			"sum", sig.TotalPrice,
			"profit_per_set", sig.ProfitPerSet)
	}
	return signals
}
