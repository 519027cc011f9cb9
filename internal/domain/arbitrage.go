package domain

import "math"

// arbitrage.go — detección de mispricing del set completo (CTF arbitrage).
//
// En un mercado binario bien valorado, la suma de los precios de todos los
// tokens de resultado debe ser 1.00. Si la suma se desvía más que la
// tolerancia hay beneficio sin riesgo: comprar el set barato (split) o
// vender el set caro (merge). Esta fase es advisory: reporta, no ejecuta.

// ArbitrageType clasifica el lado del mispricing.
type ArbitrageType string

const (
	ArbUnderpriced ArbitrageType = "underpriced" // suma < 1 − tolerancia: comprar el set
	ArbOverpriced  ArbitrageType = "overpriced"  // suma > 1 + tolerancia: vender el set
)

// ArbitrageSignal es una oportunidad de arbitraje sin riesgo detectada en un
// mercado.
type ArbitrageSignal struct {
	ConditionID  string
	Question     string
	Type         ArbitrageType
	TotalPrice   float64 // suma de los precios de todos los outcomes
	ProfitPerSet float64 // beneficio teórico por set completo, USDC
}

// DefaultArbTolerance es la desviación mínima de 1.00 para señalar arbitraje.
const DefaultArbTolerance = 0.02

// DetectArbitrage examina los tokens de un mercado y devuelve la señal de
// arbitraje si la suma de precios se desvía de 1.00 más que la tolerancia.
// Devuelve (zero, false) si el mercado está bien valorado o no tiene tokens.
func DetectArbitrage(m Market, tolerance float64) (ArbitrageSignal, bool) {
	if len(m.Tokens) == 0 {
		return ArbitrageSignal{}, false
	}
	if tolerance <= 0 {
		tolerance = DefaultArbTolerance
	}

	var total float64
	for _, t := range m.Tokens {
		total += t.Price
	}

	sig := ArbitrageSignal{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		TotalPrice:  round4(total),
	}

	switch {
	case total < 1.0-tolerance:
		sig.Type = ArbUnderpriced
		sig.ProfitPerSet = round4(1.0 - total)
	case total > 1.0+tolerance:
		sig.Type = ArbOverpriced
		sig.ProfitPerSet = round4(total - 1.0)
	default:
		return ArbitrageSignal{}, false
	}

	return sig, true
}

// Mispricing devuelve la magnitud absoluta de la desviación respecto a 1.00.
func (s ArbitrageSignal) Mispricing() float64 {
	return math.Abs(s.TotalPrice - 1.0)
}
