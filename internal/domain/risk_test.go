package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKelly(t *testing.T) {
	rp := DefaultRiskParams()

	// p=0.90 a precio 0.30: b=2.333, f*=(b·p−q)/b ≈ 0.857
	adj, raw := rp.Kelly(0.90, 0.30)
	assert.InDelta(t, 0.8571, raw, 0.0001)
	assert.InDelta(t, 0.2143, adj, 0.0001)

	// Sin expectativa positiva → 0
	adj, raw = rp.Kelly(0.40, 0.50)
	assert.Zero(t, adj)
	assert.Less(t, raw, 0.0)

	// Fuera de la banda de precios operable → indefinido
	adj, raw = rp.Kelly(0.90, 0.005)
	assert.Zero(t, adj)
	assert.Zero(t, raw)
	adj, raw = rp.Kelly(0.999, 0.995)
	assert.Zero(t, adj)
	assert.Zero(t, raw)

	// El techo absoluto corta fracciones grandes
	capped := RiskParams{KellyFraction: 1.0, KellyCap: 0.25}
	adj, _ = capped.Kelly(0.90, 0.30)
	assert.InDelta(t, 0.25, adj, 1e-9)
}

func TestAssessTradeDeadBalance(t *testing.T) {
	rp := DefaultRiskParams()
	a := rp.AssessTrade(0.90, 0.30, 0, 1000, 0, SideBuy)
	assert.False(t, a.ShouldTrade)
	assert.Equal(t, RiskBlocked, a.Level)
	assert.Contains(t, a.Reason, "dead")
}

func TestAssessTradeStopOut(t *testing.T) {
	// Balance al 15% del inicial: ni el mejor edge del mundo pasa.
	rp := DefaultRiskParams()
	a := rp.AssessTrade(0.95, 0.30, 150, 1000, 0, SideBuy)
	assert.False(t, a.ShouldTrade)
	assert.Equal(t, RiskBlocked, a.Level)
	assert.True(t, strings.HasPrefix(a.Reason, "STOP-OUT"))
}

func TestAssessTradeEmergencyMode(t *testing.T) {
	rp := DefaultRiskParams()
	rp.StopOutPct = 0.10
	rp.EmergencyPct = 0.30

	// Ratio 0.25: emergencia. Confianza 0.80 < 0.90 → rechazado.
	a := rp.AssessTrade(0.80, 0.30, 250, 1000, 0, SideBuy)
	assert.False(t, a.ShouldTrade)
	assert.Equal(t, RiskEmergency, a.Level)
	assert.Contains(t, a.Reason, "EMERGENCY MODE")

	// Confianza 0.95 pasa la barra, pero el tamaño queda en el 5% del balance.
	a = rp.AssessTrade(0.95, 0.50, 250, 1000, 0, SideBuy)
	assert.True(t, a.ShouldTrade)
	assert.Equal(t, RiskEmergency, a.Level)
	assert.InDelta(t, 12.50, a.OrderSizeUSDC, 1e-9) // 250 × 0.05
}

func TestAssessTradeInsufficientEdge(t *testing.T) {
	rp := DefaultRiskParams()
	a := rp.AssessTrade(0.55, 0.50, 1000, 1000, 0, SideBuy)
	assert.False(t, a.ShouldTrade)
	assert.Equal(t, RiskNormal, a.Level)
	assert.Contains(t, a.Reason, "insufficient edge")
}

func TestAssessTradeMaxSingleOrderCap(t *testing.T) {
	// Capital grande y edge enorme: kelly pediría $2143, el tope por mercado
	// lo baja a $2000 y el tope duro por orden lo deja en $50 exactos.
	rp := DefaultRiskParams()
	a := rp.AssessTrade(0.90, 0.30, 10_000, 10_000, 0, SideBuy)
	assert.True(t, a.ShouldTrade)
	assert.Equal(t, 50.0, a.OrderSizeUSDC)
	assert.InDelta(t, 0.2143, a.KellyUsed, 0.0001)
	assert.InDelta(t, 0.8571, a.KellyRaw, 0.0001)
}

func TestAssessTradeMaxPositionShrinks(t *testing.T) {
	// Exposición previa de $150 sobre un tope de $200: la orden nueva se
	// encoge hasta el hueco restante.
	rp := DefaultRiskParams()
	a := rp.AssessTrade(0.70, 0.50, 1000, 1000, 150, SideBuy)
	assert.True(t, a.ShouldTrade)
	assert.InDelta(t, 50.0, a.OrderSizeUSDC, 1e-9)

	// Mercado ya saturado → hueco cero → por debajo del mínimo viable
	a = rp.AssessTrade(0.70, 0.50, 1000, 1000, 250, SideBuy)
	assert.False(t, a.ShouldTrade)
	assert.Contains(t, a.Reason, "order too small")
}

func TestAssessTradeRejectsBelowMinimum(t *testing.T) {
	rp := DefaultRiskParams()
	// balance 8, kelly 0.10 → $0.80 < $1
	a := rp.AssessTrade(0.70, 0.50, 8, 8, 0, SideBuy)
	assert.False(t, a.ShouldTrade)
	assert.Equal(t, RiskNormal, a.Level)
	assert.Contains(t, a.Reason, "order too small")
}

func TestAssessTradeApproved(t *testing.T) {
	rp := DefaultRiskParams()
	a := rp.AssessTrade(0.70, 0.50, 400, 400, 0, SideBuy)
	assert.True(t, a.ShouldTrade)
	assert.Equal(t, RiskNormal, a.Level)
	assert.InDelta(t, 40.0, a.OrderSizeUSDC, 1e-9) // 400 × kelly 0.10
	assert.InDelta(t, 0.1, a.KellyUsed, 1e-9)
	assert.InDelta(t, 0.4, a.KellyRaw, 1e-9)
	assert.Contains(t, a.Reason, "APPROVED")
}

func TestAssessTradeSellMirrorsKelly(t *testing.T) {
	// Vender a 0.70 con p=0.30 es la misma apuesta que comprar el
	// complemento a 0.30 con p=0.70: el veredicto debe ser idéntico.
	rp := DefaultRiskParams()
	sell := rp.AssessTrade(0.30, 0.70, 400, 400, 0, SideSell)
	buy := rp.AssessTrade(0.70, 0.30, 400, 400, 0, SideBuy)

	assert.True(t, sell.ShouldTrade)
	assert.Equal(t, buy.OrderSizeUSDC, sell.OrderSizeUSDC)
	assert.Equal(t, buy.KellyUsed, sell.KellyUsed)
	assert.Equal(t, buy.KellyRaw, sell.KellyRaw)
	assert.Equal(t, buy.Level, sell.Level)
}

func TestExpectedValue(t *testing.T) {
	// $10 a precio 0.50 con p=0.70: EV = 0.7·10 − 0.3·10 = $4
	assert.InDelta(t, 4.0, ExpectedValue(0.70, 0.50, 10), 1e-9)
	assert.Zero(t, ExpectedValue(0.70, 0, 10))
}

func TestCheckPortfolioHealth(t *testing.T) {
	rp := DefaultRiskParams()

	h := rp.CheckPortfolioHealth(0, 1000, nil)
	assert.Equal(t, HealthDead, h.Status)

	h = rp.CheckPortfolioHealth(150, 1000, nil)
	assert.Equal(t, HealthCritical, h.Status)

	h = rp.CheckPortfolioHealth(400, 1000, nil)
	assert.Equal(t, HealthWarning, h.Status)

	open := []Position{
		{Size: 100, EntryPrice: 0.50},
		{Size: 20, EntryPrice: 0.25},
	}
	h = rp.CheckPortfolioHealth(900, 1000, open)
	assert.Equal(t, HealthHealthy, h.Status)
	assert.InDelta(t, 0.9, h.BalanceRatio, 1e-9)
	assert.InDelta(t, 55.0, h.TotalExposure, 1e-9)
	assert.Equal(t, 2, h.OpenPositions)

	// Sin baseline el ratio se asume sano
	h = rp.CheckPortfolioHealth(500, 0, nil)
	assert.Equal(t, HealthHealthy, h.Status)
}
