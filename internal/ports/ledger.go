package ports

import (
	"context"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// LedgerGateway expone el estado real del agente en el venue/on-chain.
// Es la única fuente de verdad sobre qué existe: balance, posiciones y
// órdenes abiertas. El store es solo una caché de esta verdad.
type LedgerGateway interface {
	// Balance devuelve el balance USDC disponible.
	Balance(ctx context.Context) (float64, error)

	// Positions devuelve las posiciones con size > 0. Las entradas con
	// tamaño cero no se reportan: para el ledger no existen.
	Positions(ctx context.Context) ([]domain.Position, error)

	// OpenOrders devuelve las órdenes actualmente abiertas en el exchange.
	OpenOrders(ctx context.Context) ([]domain.Order, error)

	// PlaceOrder firma y envía una orden límite al exchange.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)

	// CancelOrder cancela una orden por su id de exchange.
	CancelOrder(ctx context.Context, orderID string) error
}

// MarketProvider descubre mercados activos del venue.
type MarketProvider interface {
	// FetchActiveMarkets devuelve hasta limit mercados activos, como los
	// reporta la API de descubrimiento.
	FetchActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error)
}
