package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// reconcilePositions makes the store match the ledger, key by key.
// The ledger is the source of truth: positions it reports and the store
// lacks are adopted, positions the store has and the ledger lacks are
// closed, size drifts beyond the epsilon are adopted too. Each key is
// written immediately and per-key failures are isolated: one bad key never
// stops the others. Running it twice back to back is a no-op the second
// time.
//
// A failed read of either side is a different beast: nothing converged,
// and every later phase would act on an untrustworthy baseline. That error
// propagates and aborts the cycle.
func (e *Engine) reconcilePositions(ctx context.Context) (domain.ReconcileResult, error) {
	var result domain.ReconcileResult

	ledgerPositions, err := e.ledger.Positions(ctx)
	if err != nil {
		return result, fmt.Errorf("ledger positions: %w", err)
	}

	stored, err := e.store.OpenPositions(ctx)
	if err != nil {
		return result, fmt.Errorf("store positions: %w", err)
	}

	ledgerByKey := make(map[domain.PositionKey]domain.Position, len(ledgerPositions))
	for _, p := range ledgerPositions {
		if p.Size <= 0 {
			continue // zero-size means absent
		}
		ledgerByKey[p.Key()] = p
	}

	storedByKey := make(map[domain.PositionKey]domain.Position, len(stored))
	for _, p := range stored {
		storedByKey[p.Key()] = p
	}

	// Ledger → store: adopt new positions and size changes.
	for key, lp := range ledgerByKey {
		sp, known := storedByKey[key]
		if known && !sp.SizeDiffers(lp.Size) {
			continue
		}

		up := lp
		if known {
			// Keep the original entry context, only the size moved.
			up.Source = sp.Source
			up.OpenedAt = sp.OpenedAt
			up.EntryPrice = sp.EntryPrice
		}

		if err := e.store.UpsertPosition(ctx, up); err != nil {
			slog.Error("reconcile: upsert failed",
				"condition_id", key.ConditionID, "token_id", key.TokenID, "err", err)
			result.Failures++
			continue
		}

		if known {
			result.Updated = append(result.Updated, key)
			slog.Info("reconcile: position resized",
				"condition_id", key.ConditionID, "from", sp.Size, "to", lp.Size)
		} else {
			result.Added = append(result.Added, key)
			slog.Info("reconcile: position discovered on ledger",
				"condition_id", key.ConditionID, "size", lp.Size)
		}
	}

	// Store → ledger: close what the ledger no longer holds.
	for key := range storedByKey {
		if _, held := ledgerByKey[key]; held {
			continue
		}
		if err := e.store.ClosePosition(ctx, key.ConditionID, key.TokenID); err != nil {
			slog.Error("reconcile: close failed",
				"condition_id", key.ConditionID, "token_id", key.TokenID, "err", err)
			result.Failures++
			continue
		}
		result.Removed = append(result.Removed, key)
		slog.Info("reconcile: position gone from ledger, closed",
			"condition_id", key.ConditionID)
	}

	return result, nil
}

// cancelStaleOrders sweeps the store's OPEN orders and force-cancels the
// ones older than the configured threshold. Orders whose creation time
// could not be parsed have zero age and are skipped, never cancelled
// blindly. Returns how many were cancelled.
//
// In dry-run mode the sweep only observes: the store record must keep
// saying OPEN as long as the exchange order is live, or a later live sweep
// could never find it again.
func (e *Engine) cancelStaleOrders(ctx context.Context) int {
	open, err := e.store.OpenOrders(ctx)
	if err != nil {
		slog.Error("stale sweep: open orders unavailable", "err", err)
		return 0
	}

	now := e.now()
	cancelled := 0
	for _, o := range open {
		if !o.IsStale(now, e.params.StaleOrderAge) {
			continue
		}

		if e.params.DryRun {
			slog.Info("stale sweep: would cancel",
				"order_id", o.OrderID, "age", o.Age(now).Round(0).String())
			continue
		}

		if err := e.ledger.CancelOrder(ctx, o.OrderID); err != nil {
			slog.Error("stale sweep: exchange cancel failed",
				"order_id", o.OrderID, "err", err)
			continue // the store only changes once the exchange confirmed
		}
		if err := e.store.UpdateOrderStatus(ctx, o.OrderID, domain.OrderCancelled); err != nil {
			slog.Error("stale sweep: store update failed",
				"order_id", o.OrderID, "err", err)
			continue
		}

		cancelled++
		slog.Info("stale sweep: order cancelled",
			"order_id", o.OrderID, "age", o.Age(now).Round(0).String())
	}
	return cancelled
}
