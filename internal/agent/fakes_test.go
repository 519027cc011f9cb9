package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// fakeLedger implements ports.LedgerGateway in memory.
type fakeLedger struct {
	mu        sync.Mutex
	balance   float64
	positions []domain.Position
	orders    []domain.Order

	balanceErr   error
	positionsErr error
	placeErr     error

	placed    []domain.OrderRequest
	cancelled []string
}

func (f *fakeLedger) Balance(context.Context) (float64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeLedger) Positions(context.Context) ([]domain.Position, error) {
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	return f.positions, nil
}

func (f *fakeLedger) OpenOrders(context.Context) ([]domain.Order, error) {
	return f.orders, nil
}

func (f *fakeLedger) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return domain.PlacedOrder{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	return domain.PlacedOrder{OrderID: "exch-" + req.TokenID, Status: "live"}, nil
}

func (f *fakeLedger) CancelOrder(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

// fakeMarkets implements ports.MarketProvider.
type fakeMarkets struct {
	markets []domain.Market
	err     error
}

func (f *fakeMarkets) FetchActiveMarkets(context.Context, int) ([]domain.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

// fakeOracle implements ports.Oracle with canned estimates per question.
type fakeOracle struct {
	estimates map[string]domain.Estimate
	calls     int
}

func (f *fakeOracle) Estimate(_ context.Context, question string, _ float64, _ string) (domain.Estimate, error) {
	f.calls++
	est, ok := f.estimates[question]
	if !ok {
		return domain.Estimate{}, errors.New("oracle: no opinion")
	}
	return est, nil
}

// fakeStore implements ports.Store in memory.
type fakeStore struct {
	mu sync.Mutex

	alive      bool
	deadReason string
	initial    float64
	balance    float64
	lastRun    *domain.RunSummary
	lastError  string

	leaseOwner   string
	leaseExpires time.Time

	positions map[domain.PositionKey]domain.Position
	orders    map[string]domain.Order
	cache     map[string]domain.Opportunity
	tradeLogs []domain.TradeLog

	now func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		alive:     true,
		positions: make(map[domain.PositionKey]domain.Position),
		orders:    make(map[string]domain.Order),
		cache:     make(map[string]domain.Opportunity),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (f *fakeStore) IsAlive(context.Context) (bool, error) { return f.alive, nil }

func (f *fakeStore) MarkDead(_ context.Context, reason string) error {
	f.alive = false
	f.deadReason = reason
	return nil
}

func (f *fakeStore) InitialBalance(context.Context) (float64, error) { return f.initial, nil }

func (f *fakeStore) SetInitialBalance(_ context.Context, usdc float64) error {
	if f.initial > 0 {
		return nil
	}
	f.initial = usdc
	return nil
}

func (f *fakeStore) SetBalance(_ context.Context, usdc float64) error {
	f.balance = usdc
	return nil
}

func (f *fakeStore) SaveLastRun(_ context.Context, run domain.RunSummary) error {
	f.lastRun = &run
	return nil
}

func (f *fakeStore) SaveLastError(_ context.Context, errMsg string) error {
	f.lastError = errMsg
	return nil
}

func (f *fakeStore) AcquireLease(_ context.Context, owner string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if f.leaseOwner != "" && f.leaseOwner != owner && now.Before(f.leaseExpires) {
		return false, nil
	}
	f.leaseOwner = owner
	f.leaseExpires = now.Add(ttl)
	return true, nil
}

func (f *fakeStore) ReleaseLease(_ context.Context, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leaseOwner == owner {
		f.leaseOwner = ""
	}
	return nil
}

func (f *fakeStore) OpenPositions(context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, p := range f.positions {
		if p.IsOpen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertPosition(_ context.Context, p domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.IsOpen = true
	f.positions[p.Key()] = p
	return nil
}

func (f *fakeStore) ClosePosition(_ context.Context, conditionID, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.PositionKey{ConditionID: conditionID, TokenID: tokenID}
	if p, ok := f.positions[key]; ok {
		p.IsOpen = false
		f.positions[key] = p
	}
	return nil
}

func (f *fakeStore) SaveOrder(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.orders[o.OrderID]; !exists {
		f.orders[o.OrderID] = o
	}
	return nil
}

func (f *fakeStore) OpenOrders(context.Context) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.Status == domain.OrderOpen {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != domain.OrderOpen {
		return nil
	}
	o.Status = status
	f.orders[orderID] = o
	return nil
}

func (f *fakeStore) CachedOpportunity(_ context.Context, conditionID string, maxAge time.Duration) (*domain.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opp, ok := f.cache[conditionID]
	if !ok || !opp.Fresh(f.now(), maxAge) {
		return nil, nil
	}
	out := opp
	return &out, nil
}

func (f *fakeStore) CacheOpportunity(_ context.Context, opp domain.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[opp.ConditionID] = opp
	return nil
}

func (f *fakeStore) AppendTradeLog(_ context.Context, entry domain.TradeLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tradeLogs = append(f.tradeLogs, entry)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeNotifier records the reports it receives.
type fakeNotifier struct {
	reports []domain.CycleReport
}

func (f *fakeNotifier) Notify(_ context.Context, r domain.CycleReport) error {
	f.reports = append(f.reports, r)
	return nil
}
