package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// Store es la persistencia duradera del agente. Todo lo que debe sobrevivir
// entre invocaciones pasa por aquí: el proceso no guarda nada en memoria.
type Store interface {
	// --- Estado del agente (kill switch, baseline, último ciclo) ---

	// IsAlive devuelve el kill switch. Sin registro previo, el agente
	// está vivo.
	IsAlive(ctx context.Context) (bool, error)

	// MarkDead apaga el kill switch y registra la causa.
	MarkDead(ctx context.Context, reason string) error

	// InitialBalance devuelve el capital inicial, 0 si nunca se fijó.
	InitialBalance(ctx context.Context) (float64, error)

	// SetInitialBalance fija el capital inicial solo si aún no hay uno
	// positivo registrado. Una vez fijado es inmutable de por vida.
	SetInitialBalance(ctx context.Context, usdc float64) error

	// SetBalance persiste el balance actual.
	SetBalance(ctx context.Context, usdc float64) error

	// SaveLastRun escribe el registro del último ciclo completado.
	SaveLastRun(ctx context.Context, run domain.RunSummary) error

	// SaveLastError escribe el registro del último error fatal (best-effort).
	SaveLastError(ctx context.Context, errMsg string) error

	// --- Lease de ciclo (invocación única) ---

	// AcquireLease intenta tomar el lease de ciclo para owner con el TTL
	// dado. Devuelve false si otro owner lo tiene sin expirar.
	AcquireLease(ctx context.Context, owner string, ttl time.Duration) (bool, error)

	// ReleaseLease libera el lease si owner lo posee.
	ReleaseLease(ctx context.Context, owner string) error

	// --- Posiciones ---

	// OpenPositions devuelve todas las posiciones abiertas.
	OpenPositions(ctx context.Context) ([]domain.Position, error)

	// UpsertPosition inserta o actualiza por (condition_id, token_id).
	UpsertPosition(ctx context.Context, p domain.Position) error

	// ClosePosition marca la posición como cerrada (soft close).
	ClosePosition(ctx context.Context, conditionID, tokenID string) error

	// --- Órdenes ---

	// SaveOrder registra una orden nueva.
	SaveOrder(ctx context.Context, o domain.Order) error

	// OpenOrders devuelve las órdenes con estado OPEN.
	OpenOrders(ctx context.Context) ([]domain.Order, error)

	// UpdateOrderStatus transiciona la orden a status. Las transiciones
	// son monótonas: solo se sale de OPEN; un estado terminal no cambia.
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	// --- Caché de análisis ---

	// CachedOpportunity devuelve el análisis cacheado si su antigüedad no
	// supera maxAge; (nil, nil) en cache miss.
	CachedOpportunity(ctx context.Context, conditionID string, maxAge time.Duration) (*domain.Opportunity, error)

	// CacheOpportunity hace upsert del análisis por condition_id.
	CacheOpportunity(ctx context.Context, opp domain.Opportunity) error

	// --- Trade log ---

	// AppendTradeLog añade una entrada al diario (append-only).
	AppendTradeLog(ctx context.Context, entry domain.TradeLog) error

	// Close cierra la conexión limpiamente.
	Close() error
}
