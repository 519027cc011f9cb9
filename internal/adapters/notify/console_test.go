package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

func sampleReport() domain.CycleReport {
	return domain.CycleReport{
		StartedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Elapsed:        42 * time.Second,
		Balance:        480,
		InitialBalance: 500,
		PnLPct:         -4.0,
		Health: domain.PortfolioHealth{
			Status:       domain.HealthHealthy,
			BalanceRatio: 0.96,
		},
		MarketsFound:    50,
		MarketsSelected: 5,
		Opportunities: []domain.Opportunity{
			{Question: "Will X happen?", MarketPrice: 0.50, Probability: 0.70, Edge: 0.20, Confidence: domain.ConfidenceMedium},
		},
		Trades: []domain.TradeLog{
			{Question: "Will X happen?", Side: domain.SideBuy, Outcome: "Yes", Size: 25, Price: 0.50, KellyUsed: 0.05, RiskLevel: domain.RiskNormal},
		},
		Arbitrage: []domain.ArbitrageSignal{
			{Question: "Will Y happen?", Type: domain.ArbUnderpriced, TotalPrice: 0.95, ProfitPerSet: 0.05},
		},
		Warnings: []string{"2 reconciliation failures"},
	}
}

func TestNotifyCompact(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	require.NoError(t, c.Notify(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "bal $480.00")
	assert.Contains(t, out, "-4.00%")
	assert.Contains(t, out, "mkts 50→5")
	assert.Contains(t, out, "trades 1")
	assert.Contains(t, out, ">> 2 reconciliation failures")
}

func TestNotifyFullTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	report := sampleReport()
	report.DryRun = true
	require.NoError(t, c.Notify(context.Background(), report))

	out := buf.String()
	assert.Contains(t, out, "DRY RUN")
	assert.Contains(t, out, "Will X happen?")
	assert.Contains(t, out, "OPPORTUNITIES")
	assert.Contains(t, out, "TRADES")
	assert.Contains(t, out, "ARBITRAGE SIGNALS")
	assert.Contains(t, out, "underpriced")
}
