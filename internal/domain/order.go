package domain

import "time"

// OrderStatus es el estado de una orden en el store.
// Las transiciones son monótonas: OPEN → FILLED | CANCELLED, nunca al revés.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal devuelve true si el estado no admite más transiciones.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}

// OrderSide es la dirección de la orden.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Order es una orden límite registrada en el store, identificada por el
// order id que emite el exchange.
type Order struct {
	OrderID     string
	ConditionID string
	TokenID     string
	Side        OrderSide
	Price       float64 // precio límite, fracción en (0,1)
	Size        float64 // tamaño en USDC
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Age devuelve la antigüedad de la orden respecto a now.
// Devuelve 0 si CreatedAt no es parseable (zero time) — esas órdenes se
// saltan en el barrido de órdenes viejas, nunca se cancelan a ciegas.
func (o Order) Age(now time.Time) time.Duration {
	if o.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(o.CreatedAt)
}

// IsStale devuelve true si la orden lleva abierta más del umbral dado.
func (o Order) IsStale(now time.Time, threshold time.Duration) bool {
	if o.Status != OrderOpen || o.CreatedAt.IsZero() {
		return false
	}
	return o.Age(now) > threshold
}

// OrderRequest son los parámetros para colocar una orden en el exchange.
type OrderRequest struct {
	TokenID   string
	Price     float64
	Size      float64
	Side      OrderSide
	OrderType string // "GTC" | "FOK" | "GTD"
	NegRisk   bool
}

// PlacedOrder es la confirmación del exchange tras colocar una orden.
type PlacedOrder struct {
	OrderID string
	Status  string
}
