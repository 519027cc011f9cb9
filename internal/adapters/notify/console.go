package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// Console implementa ports.Notifier escribiendo el resumen del ciclo
// a stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime el reporte del ciclo en el modo configurado.
func (c *Console) Notify(_ context.Context, report domain.CycleReport) error {
	if c.table {
		c.printFull(report)
	} else {
		c.printCompact(report)
	}
	return nil
}

// printCompact imprime lo esencial en una línea, más warnings.
func (c *Console) printCompact(r domain.CycleReport) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", now)
	if r.DryRun {
		sb.WriteString("[DRY]")
	}
	fmt.Fprintf(&sb, " bal $%.2f (%+.2f%%) | %s | recon +%d -%d ~%d | mkts %d→%d | opps %d | trades %d | arb %d | %.1fs",
		r.Balance, r.PnLPct, r.Health.Status,
		len(r.Reconciliation.Added), len(r.Reconciliation.Removed), len(r.Reconciliation.Updated),
		r.MarketsFound, r.MarketsSelected,
		len(r.Opportunities), len(r.Trades), len(r.Arbitrage),
		r.Elapsed.Seconds())

	for i, warn := range r.Warnings {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&sb, "\n  >> %s", warn)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime el reporte completo con tablas.
func (c *Console) printFull(r domain.CycleReport) {
	mode := "LIVE"
	if r.DryRun {
		mode = "DRY RUN"
	}

	fmt.Fprintf(c.out, "\n=== CYCLE %s [%s] — %.1fs ===\n",
		r.StartedAt.Format("2006-01-02 15:04:05"), mode, r.Elapsed.Seconds())

	fmt.Fprintf(c.out, "  Balance:  $%.2f (initial $%.2f, PnL %+.2f%%)\n",
		r.Balance, r.InitialBalance, r.PnLPct)
	fmt.Fprintf(c.out, "  Health:   %s (%.1f%% of initial, exposure $%.2f)\n",
		r.Health.Status, r.Health.BalanceRatio*100, r.Health.TotalExposure)
	fmt.Fprintf(c.out, "  Reconcile: +%d added, -%d closed, ~%d resized, %d failures\n",
		len(r.Reconciliation.Added), len(r.Reconciliation.Removed),
		len(r.Reconciliation.Updated), r.Reconciliation.Failures)
	if r.StaleCancelled > 0 {
		fmt.Fprintf(c.out, "  Stale orders cancelled: %d\n", r.StaleCancelled)
	}
	fmt.Fprintf(c.out, "  Markets:  %d fetched → %d selected, %d analysis errors\n",
		r.MarketsFound, r.MarketsSelected, r.AnalysisErrors)

	if len(r.Opportunities) > 0 {
		fmt.Fprintln(c.out, "\n  OPPORTUNITIES:")
		c.printOpportunities(r.Opportunities)
	}

	if len(r.Trades) > 0 {
		fmt.Fprintln(c.out, "\n  TRADES:")
		c.printTrades(r.Trades)
	}

	if len(r.Arbitrage) > 0 {
		fmt.Fprintln(c.out, "\n  ARBITRAGE SIGNALS (advisory):")
		for _, sig := range r.Arbitrage {
			fmt.Fprintf(c.out, "    %s %s: sum %.4f, $%.4f/set\n",
				sig.Type, truncate(sig.Question, 45), sig.TotalPrice, sig.ProfitPerSet)
		}
	}

	for _, warn := range r.Warnings {
		fmt.Fprintf(c.out, "\n  !! %s", warn)
	}
	fmt.Fprintln(c.out)
}

// printOpportunities imprime la tabla de análisis del ciclo.
func (c *Console) printOpportunities(opps []domain.Opportunity) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Price", "Prob", "Edge", "Conf")

	for i, opp := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(opp.Question, 40),
			fmt.Sprintf("%.2f", opp.MarketPrice),
			fmt.Sprintf("%.2f", opp.Probability),
			fmt.Sprintf("%+.2f", opp.Edge),
			string(opp.Confidence),
		)
	}
	table.Render()
}

// printTrades imprime la tabla de ejecuciones del ciclo.
func (c *Console) printTrades(trades []domain.TradeLog) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Side", "Outcome", "Size", "Price", "Kelly", "Level")

	for i, tr := range trades {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(tr.Question, 35),
			string(tr.Side),
			tr.Outcome,
			fmt.Sprintf("$%.2f", tr.Size),
			fmt.Sprintf("%.2f", tr.Price),
			fmt.Sprintf("%.4f", tr.KellyUsed),
			string(tr.RiskLevel),
		)
	}
	table.Render()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
