package domain

import (
	"fmt"
	"math"
)

// risk.go — Kelly sizing y protocolo de protección de capital.
//
// Filosofía: saber CUÁNTO apostar importa más que saber A QUÉ apostar.
// Kelly completo es demasiado volátil → se usa Kelly fraccional (1/4)
// con un techo absoluto, y encima límites duros por orden y por mercado.
// Los clamps se aplican en orden fijo:
//
//	1. multiplicador fraccional (KellyFraction)
//	2. techo absoluto de fracción (KellyCap)
//	3. tope de emergencia (EmergencyOrderPct del balance)
//	4. tope por mercado (MaxPositionPct, encogiendo la orden nueva)
//	5. tope duro por orden (MaxSingleOrder USDC)
//	6. mínimo viable (MinOrderUSDC) — por debajo se rechaza
//
// Reordenarlos cambia la semántica; no tocar.

// RiskLevel etiqueta el contexto de riesgo de una evaluación.
type RiskLevel string

const (
	RiskNormal    RiskLevel = "normal"
	RiskCautious  RiskLevel = "cautious"
	RiskEmergency RiskLevel = "emergency"
	RiskBlocked   RiskLevel = "blocked"
)

// RiskParams son los parámetros del gate de riesgo. Se cargan una vez por
// ciclo desde la configuración y se pasan explícitamente; nunca se mutan.
type RiskParams struct {
	KellyFraction      float64 // multiplicador fraccional de Kelly
	KellyCap           float64 // techo absoluto de la fracción apostada
	MaxPositionPct     float64 // exposición máxima por mercado, fracción del balance
	MaxSingleOrder     float64 // tope duro por orden, USDC
	MinOrderUSDC       float64 // orden mínima viable, USDC
	StopOutPct         float64 // circuit breaker: ratio balance/inicial
	MinEdge            float64 // ventaja mínima para operar
	EmergencyPct       float64 // umbral de modo emergencia (ratio)
	EmergencyMinProb   float64 // confianza mínima exigida en emergencia
	EmergencyOrderPct  float64 // tope de orden en emergencia, fracción del balance
}

// DefaultRiskParams devuelve los parámetros conservadores por defecto.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		KellyFraction:     0.25,
		KellyCap:          0.25,
		MaxPositionPct:    0.20,
		MaxSingleOrder:    50.0,
		MinOrderUSDC:      1.0,
		StopOutPct:        0.20,
		MinEdge:           0.10,
		EmergencyPct:      0.20,
		EmergencyMinProb:  0.90,
		EmergencyOrderPct: 0.05,
	}
}

// RiskAssessment es el veredicto del gate para una operación candidata.
// No se persiste como entidad propia; viaja adjunto al trade ejecutado.
type RiskAssessment struct {
	ShouldTrade   bool
	OrderSizeUSDC float64
	KellyUsed     float64 // fracción efectivamente usada (tras clamps)
	KellyRaw      float64 // Kelly crudo antes del multiplicador
	Reason        string
	Level         RiskLevel
}

// Kelly calcula la fracción de Kelly ajustada para una probabilidad y un
// precio de mercado.
//
//	f* = (b·p − q) / b,  b = 1/price − 1,  q = 1 − p
//
// Precios fuera de (0.01, 0.99) no tienen edge operable bajo este modelo:
// Kelly se trata como indefinido y se devuelve 0. Kelly negativo (sin
// expectativa positiva) también devuelve 0.
func (rp RiskParams) Kelly(probability, price float64) (adjusted, raw float64) {
	if price <= 0.01 || price >= 0.99 {
		return 0, 0
	}

	b := 1.0/price - 1.0
	if b <= 0 {
		return 0, 0
	}
	p := probability
	q := 1.0 - p

	raw = (b*p - q) / b
	if raw <= 0 {
		return 0, raw
	}

	adjusted = raw * rp.KellyFraction
	if adjusted > rp.KellyCap {
		adjusted = rp.KellyCap
	}
	return adjusted, raw
}

// AssessTrade evalúa una operación candidata contra la cadena de guards.
// Es una función pura y total: el primer guard que falla corta la cadena y
// devuelve ShouldTrade=false con su razón. Un rechazo NO es un error — es
// el resultado esperado de la mayoría de las evaluaciones.
//
// probability y price llegan ya espejados para el lado a comprar: para
// "comprar el complemento" (NO), el caller pasa 1−p y 1−price y el pipeline
// es idéntico.
func (rp RiskParams) AssessTrade(
	probability, price float64,
	balance, initialBalance float64,
	existingSize float64,
	side OrderSide,
) RiskAssessment {
	// 1. Solvencia: sin balance no hay agente.
	if balance <= 0 {
		return RiskAssessment{
			Reason: "balance is zero — agent is dead",
			Level:  RiskBlocked,
		}
	}

	// 2. Stop-out: circuit breaker duro, independiente del mérito del trade.
	if initialBalance > 0 {
		ratio := balance / initialBalance
		if ratio < rp.StopOutPct {
			return RiskAssessment{
				Reason: fmt.Sprintf("STOP-OUT: balance at %.0f%% of initial capital — trading halted", ratio*100),
				Level:  RiskBlocked,
			}
		}
	}

	// 3. Modo emergencia: por debajo del umbral solo se aceptan apuestas de
	// altísima confianza.
	emergency := false
	if initialBalance > 0 {
		ratio := balance / initialBalance
		if ratio < rp.EmergencyPct {
			emergency = true
			if probability < rp.EmergencyMinProb {
				return RiskAssessment{
					Reason: fmt.Sprintf("EMERGENCY MODE: balance at %.0f%%, confidence %.0f%% below %.0f%% bar",
						ratio*100, probability*100, rp.EmergencyMinProb*100),
					Level: RiskEmergency,
				}
			}
		}
	}

	// 4. Edge: sin ventaja suficiente, los costes de transacción y el error
	// del modelo se comen la expectativa.
	var edge float64
	if side == SideSell {
		edge = price - probability
	} else {
		edge = probability - price
	}
	if edge < rp.MinEdge {
		return RiskAssessment{
			Reason: fmt.Sprintf("insufficient edge: %+.2f%% below %.2f%% threshold", edge*100, rp.MinEdge*100),
			Level:  RiskNormal,
		}
	}

	// 5. Kelly. A SELL sizes the complement position, so both inputs
	// mirror before the formula; the pipeline is otherwise identical.
	kellyProb, kellyPrice := probability, price
	if side == SideSell {
		kellyProb, kellyPrice = 1-probability, 1-price
	}
	kellyAdj, kellyRaw := rp.Kelly(kellyProb, kellyPrice)
	if kellyAdj <= 0 {
		return RiskAssessment{
			KellyRaw: round4(kellyRaw),
			Reason:   "negative Kelly — no positive expectation",
			Level:    RiskNormal,
		}
	}

	// 6. Tamaño de la orden: pipeline de clamps en orden fijo.
	size := balance * kellyAdj

	if emergency {
		if limit := balance * rp.EmergencyOrderPct; size > limit {
			size = limit
		}
	}

	maxPosition := balance * rp.MaxPositionPct
	if existingSize+size > maxPosition {
		size = maxPosition - existingSize
		if size < 0 {
			size = 0
		}
	}

	if size > rp.MaxSingleOrder {
		size = rp.MaxSingleOrder
	}

	if size < rp.MinOrderUSDC {
		level := RiskNormal
		if emergency {
			level = RiskCautious
		}
		return RiskAssessment{
			KellyUsed: round4(kellyAdj),
			KellyRaw:  round4(kellyRaw),
			Reason:    fmt.Sprintf("order too small: $%.2f below $%.2f minimum", size, rp.MinOrderUSDC),
			Level:     level,
		}
	}

	level := RiskNormal
	if emergency {
		level = RiskEmergency
	}
	return RiskAssessment{
		ShouldTrade:   true,
		OrderSizeUSDC: round2(size),
		KellyUsed:     round4(kellyAdj),
		KellyRaw:      round4(kellyRaw),
		Reason: fmt.Sprintf("APPROVED: edge=%+.2f%%, kelly=%.2f%%, size=$%.2f",
			edge*100, kellyAdj*100, size),
		Level: level,
	}
}

// ExpectedValue calcula el valor esperado en USDC de una apuesta.
//
//	EV = p·ganancia − q·pérdida
func ExpectedValue(probability, price, size float64) float64 {
	if price <= 0 {
		return 0
	}
	p := probability
	q := 1.0 - p
	profit := size * (1.0/price - 1.0)
	return round4(p*profit - q*size)
}

// --- Salud del portfolio ---

// HealthStatus clasifica el estado global del portfolio.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthDead     HealthStatus = "dead"
)

// PortfolioHealth es la clasificación de solo-lectura del portfolio.
// No bloquea trades individuales: informa el aborto a nivel de ciclo.
type PortfolioHealth struct {
	Status         HealthStatus
	BalanceRatio   float64
	TotalExposure  float64
	OpenPositions  int
	Recommendation string
}

// CheckPortfolioHealth combina ratio de balance y posiciones abiertas en un
// diagnóstico único. "dead" implica que el ciclo no debe ejecutar nada más.
func (rp RiskParams) CheckPortfolioHealth(balance, initialBalance float64, open []Position) PortfolioHealth {
	if balance <= 0 {
		return PortfolioHealth{
			Status:         HealthDead,
			Recommendation: "Agent is dead. Capital exhausted.",
		}
	}

	ratio := 1.0
	if initialBalance > 0 {
		ratio = balance / initialBalance
	}

	var exposure float64
	for _, p := range open {
		exposure += p.Exposure()
	}

	h := PortfolioHealth{
		BalanceRatio:  round4(ratio),
		TotalExposure: round2(exposure),
		OpenPositions: len(open),
	}

	switch {
	case ratio < rp.StopOutPct:
		h.Status = HealthCritical
		h.Recommendation = "CRITICAL: below stop-out level. All trading halted."
	case ratio < rp.EmergencyPct:
		h.Status = HealthWarning
		h.Recommendation = "WARNING: emergency mode. Only high-confidence trades allowed."
	case ratio < 0.50:
		h.Status = HealthWarning
		h.Recommendation = "WARNING: significant capital loss. Conservative strategy advised."
	default:
		h.Status = HealthHealthy
		h.Recommendation = "Portfolio healthy. Normal trading parameters active."
	}
	return h
}

// round2/round4 aplican el redondeo de frontera del store: 2 decimales para
// precios y tamaños, 4 para fracciones. El cálculo interno usa precisión
// completa.
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
