package domain

import "time"

// TradeLog es una entrada append-only del diario de operaciones: qué se
// ejecutó y por qué. Lleva el contexto del análisis y las métricas de
// riesgo que el ledger no conoce.
type TradeLog struct {
	ID          string // uuid local
	OrderID     string // id del exchange, o "dry-..." en simulación
	ConditionID string
	Question    string
	Side        OrderSide
	Outcome     string // "Yes" | "No"
	Size        float64
	Price       float64
	Probability float64 // estimación del oráculo
	MarketPrice float64
	Edge        float64
	KellyUsed   float64
	RiskLevel   RiskLevel
	Rationale   string
	DryRun      bool
	CreatedAt   time.Time
}

// RunSummary es el registro "last_run" que cierra cada ciclo.
type RunSummary struct {
	Timestamp      time.Time `json:"timestamp"`
	Balance        float64   `json:"balance"`
	InitialBalance float64   `json:"initial_balance"`
	PnLPct         float64   `json:"pnl_pct"`
	TradesExecuted int       `json:"trades_executed"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	DryRun         bool      `json:"dry_run"`
}
