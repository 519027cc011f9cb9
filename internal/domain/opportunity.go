package domain

import "time"

// Confidence etiqueta la magnitud del edge de una oportunidad.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // |edge| > 0.20
	ConfidenceMedium Confidence = "medium" // |edge| > 0.10
	ConfidenceLow    Confidence = "low"
)

// ClassifyConfidence devuelve la etiqueta de confianza para un edge dado.
func ClassifyConfidence(edge float64) Confidence {
	if edge < 0 {
		edge = -edge
	}
	switch {
	case edge > 0.20:
		return ConfidenceHigh
	case edge > 0.10:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Opportunity es el resultado cacheable del análisis de un mercado:
// la probabilidad del oráculo frente al precio implícito del mercado.
// Solo es válida dentro de su ventana de frescura; pasada la ventana se
// recalcula, nunca se reutiliza.
type Opportunity struct {
	ConditionID string
	Question    string
	MarketPrice float64 // precio del token YES, probabilidad implícita
	Probability float64 // estimación del oráculo para YES
	Edge        float64 // Probability - MarketPrice
	Confidence  Confidence
	Rationale   string
	Tokens      []Token // tokens del mercado, para resolver el lado a operar
	Volume      float64
	AnalyzedAt  time.Time
}

// Fresh devuelve true si el análisis sigue dentro de la ventana de frescura.
func (o Opportunity) Fresh(now time.Time, ttl time.Duration) bool {
	if o.AnalyzedAt.IsZero() {
		return false
	}
	return now.Sub(o.AnalyzedAt) <= ttl
}

// AbsEdge devuelve |Edge|, la magnitud de la ventaja informacional.
func (o Opportunity) AbsEdge() float64 {
	if o.Edge < 0 {
		return -o.Edge
	}
	return o.Edge
}

// Estimate es la respuesta del oráculo de probabilidad para una pregunta.
type Estimate struct {
	Probability float64 // en [0.01, 0.99]
	Confidence  Confidence
	Rationale   string
}
