package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

func TestReconcileAdoptsDiscoveredPosition(t *testing.T) {
	// El ledger reporta 5.2 tokens que el store no conoce: se adoptan con
	// origen onchain_discovery y el entry price del ledger.
	ledger := &fakeLedger{positions: []domain.Position{
		{ConditionID: "c1", TokenID: "t1", Size: 5.2, EntryPrice: 0.60, Source: domain.SourceDiscovered},
	}}
	store := newFakeStore()

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())

	result, err := e.reconcilePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Updated)
	assert.Zero(t, result.Failures)

	open, err := store.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 5.2, open[0].Size)
	assert.Equal(t, domain.SourceDiscovered, open[0].Source)

	// Idempotencia: la segunda pasada no toca nada
	result, err = e.reconcilePositions(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestReconcileClosesVanishedPosition(t *testing.T) {
	ledger := &fakeLedger{}
	store := newFakeStore()
	require.NoError(t, store.UpsertPosition(context.Background(), domain.Position{
		ConditionID: "c1", TokenID: "t1", Size: 10, EntryPrice: 0.50,
		Source: domain.SourceAgent,
	}))

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())

	result, err := e.reconcilePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)

	open, err := store.OpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReconcileResizeKeepsEntryContext(t *testing.T) {
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{positions: []domain.Position{
		{ConditionID: "c1", TokenID: "t1", Size: 15, EntryPrice: 0.70},
	}}
	store := newFakeStore()
	require.NoError(t, store.UpsertPosition(context.Background(), domain.Position{
		ConditionID: "c1", TokenID: "t1", Size: 10, EntryPrice: 0.50,
		Source: domain.SourceAgent, OpenedAt: opened,
	}))

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())

	result, err := e.reconcilePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Updated, 1)

	open, err := store.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 15.0, open[0].Size)
	// El contexto de entrada original se conserva en un resize
	assert.Equal(t, domain.SourceAgent, open[0].Source)
	assert.Equal(t, opened, open[0].OpenedAt)
	assert.Equal(t, 0.50, open[0].EntryPrice)
}

func TestReconcileIgnoresNoiseWithinEpsilon(t *testing.T) {
	ledger := &fakeLedger{positions: []domain.Position{
		{ConditionID: "c1", TokenID: "t1", Size: 10.0005, EntryPrice: 0.50},
	}}
	store := newFakeStore()
	require.NoError(t, store.UpsertPosition(context.Background(), domain.Position{
		ConditionID: "c1", TokenID: "t1", Size: 10, EntryPrice: 0.50,
		Source: domain.SourceAgent,
	}))

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())

	result, err := e.reconcilePositions(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestReconcileTreatsZeroSizeAsAbsent(t *testing.T) {
	ledger := &fakeLedger{positions: []domain.Position{
		{ConditionID: "c1", TokenID: "t1", Size: 0, EntryPrice: 0.50},
	}}
	store := newFakeStore()
	require.NoError(t, store.UpsertPosition(context.Background(), domain.Position{
		ConditionID: "c1", TokenID: "t1", Size: 10, EntryPrice: 0.50,
		Source: domain.SourceAgent,
	}))

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())

	result, err := e.reconcilePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
	assert.Empty(t, result.Added)
}

func TestCancelStaleOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{}
	store := newFakeStore()

	fresh := domain.Order{
		OrderID: "o-fresh", ConditionID: "c1", TokenID: "t1",
		Side: domain.SideBuy, Status: domain.OrderOpen,
		CreatedAt: now.Add(-30 * time.Minute),
	}
	stale := domain.Order{
		OrderID: "o-stale", ConditionID: "c2", TokenID: "t2",
		Side: domain.SideBuy, Status: domain.OrderOpen,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	// timestamp no parseable → edad cero → nunca se cancela a ciegas
	unknown := domain.Order{
		OrderID: "o-unknown", ConditionID: "c3", TokenID: "t3",
		Side: domain.SideBuy, Status: domain.OrderOpen,
	}
	for _, o := range []domain.Order{fresh, stale, unknown} {
		require.NoError(t, store.SaveOrder(context.Background(), o))
	}

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())
	e.now = func() time.Time { return now }

	cancelled := e.cancelStaleOrders(context.Background())
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, []string{"o-stale"}, ledger.cancelled)

	open, err := store.OpenOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 2) // fresh y unknown siguen OPEN
	assert.Equal(t, domain.OrderCancelled, store.orders["o-stale"].Status)
}

func TestReconcileLedgerOutageIsFatal(t *testing.T) {
	// Sin lectura del ledger no hay convergencia posible: el error se
	// propaga y el store queda intacto.
	ledger := &fakeLedger{positionsErr: errors.New("data api unreachable")}
	store := newFakeStore()
	require.NoError(t, store.UpsertPosition(context.Background(), domain.Position{
		ConditionID: "c1", TokenID: "t1", Size: 10, EntryPrice: 0.50,
		Source: domain.SourceAgent,
	}))

	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, testParams())

	_, err := e.reconcilePositions(context.Background())
	require.Error(t, err)

	open, oerr := store.OpenPositions(context.Background())
	require.NoError(t, oerr)
	assert.Len(t, open, 1) // nada se cerró a ciegas
}

func TestCancelStaleOrdersDryRunOnlyObserves(t *testing.T) {
	// Un dry run no puede dejar el registro diciendo CANCELLED mientras la
	// orden sigue viva en el exchange: un sweep posterior ya no la vería.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{}
	store := newFakeStore()
	require.NoError(t, store.SaveOrder(context.Background(), domain.Order{
		OrderID: "o-stale", ConditionID: "c1", TokenID: "t1",
		Side: domain.SideBuy, Status: domain.OrderOpen,
		CreatedAt: now.Add(-2 * time.Hour),
	}))

	params := testParams()
	params.DryRun = true
	e, _ := newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, params)
	e.now = func() time.Time { return now }

	cancelled := e.cancelStaleOrders(context.Background())
	assert.Zero(t, cancelled)
	assert.Empty(t, ledger.cancelled)
	assert.Equal(t, domain.OrderOpen, store.orders["o-stale"].Status)

	// En vivo la misma orden sí se barre
	params.DryRun = false
	e, _ = newTestEngine(ledger, &fakeMarkets{}, &fakeOracle{}, store, params)
	e.now = func() time.Time { return now }

	cancelled = e.cancelStaleOrders(context.Background())
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, []string{"o-stale"}, ledger.cancelled)
	assert.Equal(t, domain.OrderCancelled, store.orders["o-stale"].Status)
}
