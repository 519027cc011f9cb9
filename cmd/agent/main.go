package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polyagent/config"
	"github.com/alejandrodnm/polyagent/internal/adapters/notify"
	"github.com/alejandrodnm/polyagent/internal/adapters/oracle"
	"github.com/alejandrodnm/polyagent/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyagent/internal/adapters/storage"
	"github.com/alejandrodnm/polyagent/internal/agent"
	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/logging"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "evaluate and log decisions without placing orders")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full cycle report (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	slog.Info("polyagent starting",
		"config", *configPath,
		"dry_run", *dryRun,
		"max_markets", cfg.Agent.MaxMarketsPerCycle,
		"max_trades", cfg.Agent.MaxTradesPerCycle,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	authClient, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase, cfg.PrivateKey)
	if err != nil {
		slog.Error("failed to create auth client", "err", err)
		os.Exit(1)
	}
	if err := authClient.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials — check POLY_PRIVATE_KEY", "err", err)
		os.Exit(1)
	}
	slog.Info("authenticated with Polymarket CLOB", "address", authClient.Address())

	gateway, err := polymarket.NewGateway(authClient, cfg.API.RPCURL)
	if err != nil {
		slog.Error("failed to create ledger gateway", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	estimator := oracle.New(cfg.Oracle.BaseURL, cfg.OracleAPIKey, cfg.Oracle.Model)
	notifier := notify.NewConsole(*table)

	eng := agent.New(gateway, authClient, estimator, store, notifier, agent.Params{
		Risk: domain.RiskParams{
			KellyFraction:     cfg.Risk.KellyFraction,
			KellyCap:          cfg.Risk.KellyCap,
			MaxPositionPct:    cfg.Risk.MaxPositionPct,
			MaxSingleOrder:    cfg.Risk.MaxSingleOrderUSDC,
			MinOrderUSDC:      cfg.Risk.MinOrderUSDC,
			StopOutPct:        cfg.Risk.StopOutPct,
			MinEdge:           cfg.Risk.MinEdge,
			EmergencyPct:      cfg.Risk.EmergencyPct,
			EmergencyMinProb:  cfg.Risk.EmergencyMinProb,
			EmergencyOrderPct: cfg.Risk.EmergencyOrderPct,
		},
		Filter: agent.FilterParams{
			FetchLimit:   cfg.Markets.FetchLimit,
			MinVolume:    cfg.Markets.MinVolume,
			MinLiquidity: cfg.Markets.MinLiquidity,
			MinExpiry:    time.Duration(cfg.Markets.MinExpiryHours * float64(time.Hour)),
			MaxExpiry:    time.Duration(cfg.Markets.MaxExpiryDays * 24 * float64(time.Hour)),
			AllowedTags:  cfg.Markets.AllowedTags,
			BlockedTags:  cfg.Markets.BlockedTags,
		},
		MaxMarkets:    cfg.Agent.MaxMarketsPerCycle,
		MaxTrades:     cfg.Agent.MaxTradesPerCycle,
		StaleOrderAge: cfg.StaleOrderThreshold(),
		CacheTTL:      cfg.CacheTTL(),
		LeaseTTL:      cfg.LeaseTTL(),
		ArbTolerance:  cfg.Arbitrage.Tolerance,
		DryRun:        *dryRun,
	})

	report, err := eng.Run(ctx)
	switch {
	case errors.Is(err, agent.ErrLeaseHeld):
		// Another instance owns this cycle, not a failure.
		slog.Info("cycle lease held by another instance, exiting")
	case errors.Is(err, agent.ErrDead):
		// Terminal by design: the scheduler keeps invoking us, and a dead
		// agent refusing to trade is the correct outcome, not an error.
		slog.Warn("agent is dead, manual intervention required", "err", err)
	case err != nil:
		slog.Error("cycle failed", "err", err)
		if serr := store.SaveLastError(ctx, err.Error()); serr != nil {
			slog.Warn("failed to record last error", "err", serr)
		}
	default:
		slog.Info("cycle complete",
			"balance", report.Balance,
			"trades", len(report.Trades),
			"elapsed", report.Elapsed,
		)
	}
	if code := exitCode(err); code != 0 {
		store.Close()
		os.Exit(code)
	}
}

// exitCode maps the cycle outcome to the process exit code. Intentional
// early termination (lease busy, dead agent) exits 0 so the scheduler does
// not alert; only an unrecovered cycle error exits 1.
func exitCode(err error) int {
	if err == nil || errors.Is(err, agent.ErrLeaseHeld) || errors.Is(err, agent.ErrDead) {
		return 0
	}
	return 1
}
