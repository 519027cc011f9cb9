package domain

import "time"

// PositionSource indica cómo llegó la posición al store.
type PositionSource string

const (
	// SourceDiscovered — la posición apareció en el ledger sin registro previo.
	SourceDiscovered PositionSource = "onchain_discovery"
	// SourceAgent — la posición fue abierta por una orden del agente.
	SourceAgent PositionSource = "agent_order"
)

// PositionKey identifica una posición: un token de un mercado.
// Invariante: como mucho una posición abierta por key.
type PositionKey struct {
	ConditionID string
	TokenID     string
}

// Position es una tenencia de tokens de resultado, en unidades de contrato.
type Position struct {
	ConditionID string
	TokenID     string
	Size        float64
	EntryPrice  float64 // precio medio de entrada
	IsOpen      bool
	Source      PositionSource
	OpenedAt    time.Time
	ClosedAt    *time.Time
	UpdatedAt   time.Time
}

// Key devuelve la clave (condition_id, token_id) de la posición.
func (p Position) Key() PositionKey {
	return PositionKey{ConditionID: p.ConditionID, TokenID: p.TokenID}
}

// Exposure devuelve el capital comprometido en la posición (size × entry).
func (p Position) Exposure() float64 {
	return p.Size * p.EntryPrice
}

// sizeEpsilon es la tolerancia al comparar tamaños entre store y ledger.
// Diferencias menores se consideran ruido de redondeo, no un resize real.
const sizeEpsilon = 0.001

// SizeDiffers devuelve true si el tamaño difiere del dado más allá de la
// tolerancia.
func (p Position) SizeDiffers(ledgerSize float64) bool {
	diff := p.Size - ledgerSize
	if diff < 0 {
		diff = -diff
	}
	return diff > sizeEpsilon
}
