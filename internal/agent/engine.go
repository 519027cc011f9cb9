package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/ports"
)

var (
	// ErrDead means the kill switch is off: the agent must never trade again.
	ErrDead = errors.New("agent is dead")
	// ErrLeaseHeld means another invocation holds the cycle lease.
	ErrLeaseHeld = errors.New("cycle lease held by another run")
)

// FilterParams controls the discovery funnel.
type FilterParams struct {
	FetchLimit   int
	MinVolume    float64
	MinLiquidity float64
	MinExpiry    time.Duration
	MaxExpiry    time.Duration
	AllowedTags  []string
	BlockedTags  []string
}

// Params holds everything the engine needs beyond its dependencies.
type Params struct {
	Risk          domain.RiskParams
	Filter        FilterParams
	MaxMarkets    int // markets analyzed per cycle
	MaxTrades     int // hard cap on executions per cycle
	StaleOrderAge time.Duration
	CacheTTL      time.Duration
	LeaseTTL      time.Duration
	ArbTolerance  float64
	DryRun        bool
}

// Engine runs one wake → sync → act → save cycle and terminates.
// It holds no state of its own: everything durable lives in the store,
// everything financial in the ledger.
type Engine struct {
	ledger   ports.LedgerGateway
	markets  ports.MarketProvider
	oracle   ports.Oracle
	store    ports.Store
	notifier ports.Notifier
	params   Params

	now   func() time.Time
	newID func() string
}

// New creates an Engine with the given dependencies.
func New(
	ledger ports.LedgerGateway,
	markets ports.MarketProvider,
	oracle ports.Oracle,
	store ports.Store,
	notifier ports.Notifier,
	params Params,
) *Engine {
	if params.MaxMarkets <= 0 {
		params.MaxMarkets = 5
	}
	if params.MaxTrades <= 0 {
		params.MaxTrades = 3
	}
	if params.StaleOrderAge <= 0 {
		params.StaleOrderAge = time.Hour
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = 4 * time.Hour
	}
	if params.LeaseTTL <= 0 {
		params.LeaseTTL = 10 * time.Minute
	}

	return &Engine{
		ledger:   ledger,
		markets:  markets,
		oracle:   oracle,
		store:    store,
		notifier: notifier,
		params:   params,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Run executes one full cycle. Phases that fail adaptively degrade; a panic
// anywhere surfaces as an error so the caller can record it and exit.
func (e *Engine) Run(ctx context.Context) (report domain.CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent.Run: panic: %v", r)
		}
	}()

	started := e.now()
	report.StartedAt = started
	report.DryRun = e.params.DryRun

	// 1. Single invocation: take the cycle lease or leave quietly.
	owner := e.newID()
	ok, err := e.store.AcquireLease(ctx, owner, e.params.LeaseTTL)
	if err != nil {
		return report, fmt.Errorf("agent.Run: acquire lease: %w", err)
	}
	if !ok {
		return report, ErrLeaseHeld
	}
	defer func() {
		if rerr := e.store.ReleaseLease(context.WithoutCancel(ctx), owner); rerr != nil {
			slog.Warn("release lease failed", "err", rerr)
		}
	}()

	// 2. Kill switch: a dead agent does nothing, ever.
	alive, err := e.store.IsAlive(ctx)
	if err != nil {
		return report, fmt.Errorf("agent.Run: kill switch: %w", err)
	}
	if !alive {
		slog.Info("kill switch is off, refusing to run")
		return report, ErrDead
	}

	// 3. Reconciliation: sync store with the ledger before thinking.
	balance, initial, err := e.syncCapital(ctx)
	if err != nil {
		return report, fmt.Errorf("agent.Run: sync capital: %w", err)
	}
	report.Balance = balance
	report.InitialBalance = initial
	if initial > 0 {
		report.PnLPct = round2((balance - initial) / initial * 100)
	}
	slog.Info("phase: reconciliation", "balance", fmt.Sprintf("$%.2f", balance), "initial", fmt.Sprintf("$%.2f", initial))

	if balance <= 0 {
		reason := "capital exhausted: ledger balance is zero"
		if merr := e.store.MarkDead(ctx, reason); merr != nil {
			slog.Error("mark dead failed", "err", merr)
		}
		e.finishCycle(ctx, &report, started)
		return report, fmt.Errorf("agent.Run: %s: %w", reason, ErrDead)
	}

	recon, err := e.reconcilePositions(ctx)
	if err != nil {
		return report, fmt.Errorf("agent.Run: reconcile positions: %w", err)
	}
	report.Reconciliation = recon
	report.StaleCancelled = e.cancelStaleOrders(ctx)

	// 4. Discovery: the market funnel.
	selected, found, err := e.discoverMarkets(ctx)
	if err != nil {
		// Without markets there is nothing to act on, but the cycle still
		// closes with a summary.
		slog.Error("phase: discovery failed", "err", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("discovery failed: %v", err))
		e.finishCycle(ctx, &report, started)
		return report, nil
	}
	report.MarketsFound = found
	report.MarketsSelected = len(selected)
	slog.Info("phase: discovery", "fetched", found, "selected", len(selected))

	// 5. Analysis: oracle probabilities, cache-first.
	opportunities, analysisErrors := e.analyzeMarkets(ctx, selected)
	report.Opportunities = opportunities
	report.AnalysisErrors = analysisErrors
	if analysisErrors > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d markets skipped: oracle errors", analysisErrors))
	}
	slog.Info("phase: analysis", "opportunities", len(opportunities), "errors", analysisErrors)

	// 6. Risk-gated execution. Health is advisory here: the dead case is
	// balance <= 0, already handled (and marked) in phase 3.
	report.Health = e.params.Risk.CheckPortfolioHealth(balance, initial, e.openPositionsOrEmpty(ctx))

	trades := e.executeTrades(ctx, opportunities, selected, balance, initial, &report)
	report.Trades = trades
	slog.Info("phase: execution", "trades", len(trades), "dry_run", e.params.DryRun)

	// Live trades moved real money: the summary reports the post-trade
	// balance, not the snapshot from phase 3.
	if !e.params.DryRun && len(trades) > 0 {
		if after, berr := e.ledger.Balance(ctx); berr != nil {
			slog.Warn("post-trade balance read failed", "err", berr)
		} else {
			report.Balance = after
			if initial > 0 {
				report.PnLPct = round2((after - initial) / initial * 100)
			}
			if serr := e.store.SetBalance(ctx, after); serr != nil {
				slog.Warn("post-trade balance write failed", "err", serr)
			}
		}
	}

	// 7. Arbitrage scan: advisory only, never trades.
	report.Arbitrage = e.scanArbitrage(selected)
	if len(report.Arbitrage) > 0 {
		slog.Info("phase: arbitrage", "signals", len(report.Arbitrage))
	}

	// 8. Summary: always attempted, even after degraded phases.
	e.finishCycle(ctx, &report, started)
	return report, nil
}

// syncCapital reads the ledger balance, pins the lifetime baseline on first
// contact and persists the current balance.
func (e *Engine) syncCapital(ctx context.Context) (balance, initial float64, err error) {
	balance, err = e.ledger.Balance(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger balance: %w", err)
	}

	if balance > 0 {
		if err := e.store.SetInitialBalance(ctx, balance); err != nil {
			return 0, 0, fmt.Errorf("set initial balance: %w", err)
		}
	}
	initial, err = e.store.InitialBalance(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("initial balance: %w", err)
	}

	if err := e.store.SetBalance(ctx, balance); err != nil {
		return 0, 0, fmt.Errorf("set balance: %w", err)
	}
	return balance, initial, nil
}

// openPositionsOrEmpty reads open positions for the health check; a read
// failure degrades to an empty portfolio rather than aborting the cycle.
func (e *Engine) openPositionsOrEmpty(ctx context.Context) []domain.Position {
	open, err := e.store.OpenPositions(ctx)
	if err != nil {
		slog.Warn("open positions read failed", "err", err)
		return nil
	}
	return open
}

// finishCycle writes last_run and notifies. Failures here are logged, not
// returned: the summary must never mask the cycle's own outcome.
func (e *Engine) finishCycle(ctx context.Context, report *domain.CycleReport, started time.Time) {
	report.Elapsed = e.now().Sub(started)

	run := domain.RunSummary{
		Timestamp:      e.now(),
		Balance:        report.Balance,
		InitialBalance: report.InitialBalance,
		PnLPct:         report.PnLPct,
		TradesExecuted: len(report.Trades),
		ElapsedSeconds: report.Elapsed.Seconds(),
		DryRun:         report.DryRun,
	}
	if err := e.store.SaveLastRun(ctx, run); err != nil {
		slog.Error("save last_run failed", "err", err)
	}

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, *report); err != nil {
			slog.Warn("notify failed", "err", err)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
