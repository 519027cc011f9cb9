package domain

import "time"

// ReconcileResult cuenta lo que hizo la reconciliación. Los fallos por key
// se aíslan y se cuentan, nunca abortan el resto de keys.
type ReconcileResult struct {
	Added    []PositionKey
	Removed  []PositionKey
	Updated  []PositionKey
	Failures int
}

// Empty devuelve true si la reconciliación no tocó nada — reconciliar dos
// veces seguidas sobre un store ya sincronizado debe dar Empty.
func (r ReconcileResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Updated) == 0
}

// CycleReport es el resumen tipado de un ciclo completo, fase a fase.
type CycleReport struct {
	StartedAt       time.Time
	Elapsed         time.Duration
	DryRun          bool
	Balance         float64
	InitialBalance  float64
	PnLPct          float64
	Health          PortfolioHealth
	Reconciliation  ReconcileResult
	StaleCancelled  int
	MarketsFound    int
	MarketsSelected int
	Opportunities   []Opportunity
	AnalysisErrors  int
	Trades          []TradeLog
	Arbitrage       []ArbitrageSignal
	Warnings        []string
}
