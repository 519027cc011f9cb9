package domain

import (
	"strings"
	"time"
)

// Market representa un mercado de predicción binario en Polymarket.
type Market struct {
	ConditionID string
	QuestionID  string
	Question    string
	Description string
	Slug        string
	EndDate     time.Time // fecha de resolución
	Volume      float64   // volumen total en USDC
	Liquidity   float64   // liquidez en USDC
	Tokens      []Token
	Tags        []string
	Active      bool
	Closed      bool
	NegRisk     bool // mercados multi-outcome usan el exchange NegRisk
}

// Token es uno de los lados del mercado (YES/NO).
type Token struct {
	TokenID string
	Outcome string  // "Yes" | "No"
	Price   float64 // último precio del CLOB, fracción en [0,1]
}

// YesToken devuelve el token "Yes" del mercado, o el primero como fallback.
func (m Market) YesToken() (Token, bool) {
	for _, t := range m.Tokens {
		if strings.EqualFold(t.Outcome, "yes") {
			return t, true
		}
	}
	if len(m.Tokens) > 0 {
		return m.Tokens[0], true
	}
	return Token{}, false
}

// NoToken devuelve el token "No" del mercado, o el segundo como fallback.
func (m Market) NoToken() (Token, bool) {
	for _, t := range m.Tokens {
		if strings.EqualFold(t.Outcome, "no") {
			return t, true
		}
	}
	if len(m.Tokens) > 1 {
		return m.Tokens[1], true
	}
	return Token{}, false
}

// TimeToExpiry devuelve el tiempo hasta la resolución respecto a now.
// Devuelve 0 si EndDate no está definido.
func (m Market) TimeToExpiry(now time.Time) time.Duration {
	if m.EndDate.IsZero() {
		return 0
	}
	return m.EndDate.Sub(now)
}

// HasTag devuelve true si el mercado tiene alguno de los tags dados
// (comparación case-insensitive). Una lista vacía nunca matchea.
func (m Market) HasTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range m.Tags {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}
