package storage

// sqlite.go — el store duradero del agente.
//
// Todo lo que debe sobrevivir entre invocaciones vive aquí:
//   - `agent_state`: KV de registros de control (kill switch, baseline,
//     balance, last_run, last_error, lease de ciclo). Valores JSON.
//   - `positions`: una fila por (condition_id, token_id), soft close.
//   - `orders`: una fila por order_id del exchange; las transiciones de
//     estado son monótonas y se refuerzan en el propio UPDATE.
//   - `opportunities`: caché de análisis, una fila por mercado (UPSERT).
//   - `trade_logs`: diario append-only de ejecuciones.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyagent/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Registros de control del agente, valores JSON
CREATE TABLE IF NOT EXISTS agent_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Una fila por posición; el cierre es soft (is_open = 0)
CREATE TABLE IF NOT EXISTS positions (
    condition_id TEXT NOT NULL,
    token_id     TEXT NOT NULL,
    size         REAL NOT NULL,
    entry_price  REAL NOT NULL,
    is_open      INTEGER NOT NULL DEFAULT 1,
    source       TEXT NOT NULL,
    opened_at    TEXT NOT NULL,
    closed_at    TEXT,
    updated_at   TEXT NOT NULL,
    PRIMARY KEY (condition_id, token_id)
);

-- Órdenes registradas por el agente, keyed por el id del exchange
CREATE TABLE IF NOT EXISTS orders (
    order_id     TEXT PRIMARY KEY,
    condition_id TEXT NOT NULL,
    token_id     TEXT NOT NULL,
    side         TEXT NOT NULL,
    price        REAL NOT NULL,
    size         REAL NOT NULL,
    status       TEXT NOT NULL DEFAULT 'OPEN',
    created_at   TEXT,
    updated_at   TEXT NOT NULL
);

-- Caché de análisis del oráculo, una fila por mercado
CREATE TABLE IF NOT EXISTS opportunities (
    condition_id TEXT PRIMARY KEY,
    question     TEXT NOT NULL,
    market_price REAL NOT NULL,
    probability  REAL NOT NULL,
    edge         REAL NOT NULL,
    confidence   TEXT NOT NULL,
    rationale    TEXT,
    tokens       TEXT NOT NULL, -- JSON
    volume       REAL NOT NULL DEFAULT 0,
    analyzed_at  TEXT NOT NULL
);

-- Diario de operaciones, append-only
CREATE TABLE IF NOT EXISTS trade_logs (
    id           TEXT PRIMARY KEY,
    order_id     TEXT NOT NULL,
    condition_id TEXT NOT NULL,
    question     TEXT,
    side         TEXT NOT NULL,
    outcome      TEXT,
    size         REAL NOT NULL,
    price        REAL NOT NULL,
    probability  REAL NOT NULL,
    market_price REAL NOT NULL,
    edge         REAL NOT NULL,
    kelly_used   REAL NOT NULL,
    risk_level   TEXT NOT NULL,
    rationale    TEXT,
    dry_run      INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(is_open);
CREATE INDEX IF NOT EXISTS idx_orders_status  ON orders(status);
CREATE INDEX IF NOT EXISTS idx_trades_at      ON trade_logs(created_at DESC);
`

// Keys del KV agent_state.
const (
	keyKillSwitch     = "kill_switch"
	keyInitialBalance = "initial_balance"
	keyBalance        = "balance"
	keyLastRun        = "last_run"
	keyLastError      = "last_error"
	keyCycleLease     = "cycle_lease"
)

// SQLiteStore implementa ports.Store usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- estado del agente ---

// killRecord es el valor JSON del kill switch.
type killRecord struct {
	Alive    bool      `json:"alive"`
	Reason   string    `json:"reason,omitempty"`
	MarkedAt time.Time `json:"marked_at,omitempty"`
}

// IsAlive devuelve el kill switch. Sin registro previo el agente está vivo.
func (s *SQLiteStore) IsAlive(ctx context.Context) (bool, error) {
	raw, ok, err := s.getState(ctx, keyKillSwitch)
	if err != nil {
		return false, fmt.Errorf("storage.IsAlive: %w", err)
	}
	if !ok {
		return true, nil
	}
	var rec killRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return false, fmt.Errorf("storage.IsAlive: parse record: %w", err)
	}
	return rec.Alive, nil
}

// MarkDead apaga el kill switch de forma permanente y registra la causa.
func (s *SQLiteStore) MarkDead(ctx context.Context, reason string) error {
	rec := killRecord{Alive: false, Reason: reason, MarkedAt: s.now()}
	if err := s.putStateJSON(ctx, keyKillSwitch, rec); err != nil {
		return fmt.Errorf("storage.MarkDead: %w", err)
	}
	return nil
}

// InitialBalance devuelve el capital inicial, 0 si nunca se fijó.
func (s *SQLiteStore) InitialBalance(ctx context.Context) (float64, error) {
	raw, ok, err := s.getState(ctx, keyInitialBalance)
	if err != nil {
		return 0, fmt.Errorf("storage.InitialBalance: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var v float64
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return 0, fmt.Errorf("storage.InitialBalance: parse: %w", err)
	}
	return v, nil
}

// SetInitialBalance fija el baseline solo si aún no hay uno positivo.
// Una vez fijado es inmutable: el PnL de por vida se mide contra él.
func (s *SQLiteStore) SetInitialBalance(ctx context.Context, usdc float64) error {
	current, err := s.InitialBalance(ctx)
	if err != nil {
		return fmt.Errorf("storage.SetInitialBalance: %w", err)
	}
	if current > 0 {
		return nil
	}
	if err := s.putStateJSON(ctx, keyInitialBalance, usdc); err != nil {
		return fmt.Errorf("storage.SetInitialBalance: %w", err)
	}
	return nil
}

// SetBalance persiste el balance actual.
func (s *SQLiteStore) SetBalance(ctx context.Context, usdc float64) error {
	if err := s.putStateJSON(ctx, keyBalance, usdc); err != nil {
		return fmt.Errorf("storage.SetBalance: %w", err)
	}
	return nil
}

// SaveLastRun escribe el registro del último ciclo completado.
func (s *SQLiteStore) SaveLastRun(ctx context.Context, run domain.RunSummary) error {
	if err := s.putStateJSON(ctx, keyLastRun, run); err != nil {
		return fmt.Errorf("storage.SaveLastRun: %w", err)
	}
	return nil
}

// errorRecord es el valor JSON de last_error.
type errorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// SaveLastError escribe el registro del último error fatal.
func (s *SQLiteStore) SaveLastError(ctx context.Context, errMsg string) error {
	rec := errorRecord{Timestamp: s.now(), Error: errMsg}
	if err := s.putStateJSON(ctx, keyLastError, rec); err != nil {
		return fmt.Errorf("storage.SaveLastError: %w", err)
	}
	return nil
}

// --- lease de ciclo ---

// leaseRecord es el valor JSON del lease de ciclo.
type leaseRecord struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcquireLease toma el lease de ciclo si está libre, expirado o ya es
// nuestro. Con MaxOpenConns(1) la secuencia read-modify-write no compite
// con otra conexión del mismo proceso; entre procesos, el write va dentro
// de una transacción.
func (s *SQLiteStore) AcquireLease(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("storage.AcquireLease: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM agent_state WHERE key = ?`, keyCycleLease,
	).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("storage.AcquireLease: read: %w", err)
	}

	if err == nil {
		var rec leaseRecord
		if jerr := json.Unmarshal([]byte(raw), &rec); jerr == nil {
			if rec.Owner != owner && now.Before(rec.ExpiresAt) {
				return false, nil
			}
		}
	}

	rec := leaseRecord{Owner: owner, ExpiresAt: now.Add(ttl)}
	val, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("storage.AcquireLease: marshal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, keyCycleLease, string(val), formatTime(now)); err != nil {
		return false, fmt.Errorf("storage.AcquireLease: write: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("storage.AcquireLease: commit: %w", err)
	}
	return true, nil
}

// ReleaseLease libera el lease solo si owner lo posee todavía.
func (s *SQLiteStore) ReleaseLease(ctx context.Context, owner string) error {
	raw, ok, err := s.getState(ctx, keyCycleLease)
	if err != nil {
		return fmt.Errorf("storage.ReleaseLease: %w", err)
	}
	if !ok {
		return nil
	}
	var rec leaseRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Owner != owner {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_state WHERE key = ?`, keyCycleLease,
	); err != nil {
		return fmt.Errorf("storage.ReleaseLease: %w", err)
	}
	return nil
}

// --- posiciones ---

// OpenPositions devuelve todas las posiciones abiertas.
func (s *SQLiteStore) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, token_id, size, entry_price, source, opened_at, updated_at
		FROM positions
		WHERE is_open = 1
		ORDER BY opened_at
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenPositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var source, openedAt, updatedAt string
		if err := rows.Scan(&p.ConditionID, &p.TokenID, &p.Size, &p.EntryPrice,
			&source, &openedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage.OpenPositions: scan: %w", err)
		}
		p.IsOpen = true
		p.Source = domain.PositionSource(source)
		p.OpenedAt = parseTime(openedAt)
		p.UpdatedAt = parseTime(updatedAt)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpsertPosition inserta o actualiza por (condition_id, token_id).
// Reabrir una key cerrada crea una tenencia nueva: opened_at y source se
// sobreescriben.
func (s *SQLiteStore) UpsertPosition(ctx context.Context, p domain.Position) error {
	now := s.now()
	openedAt := p.OpenedAt
	if openedAt.IsZero() {
		openedAt = now
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (condition_id, token_id, size, entry_price, is_open, source, opened_at, closed_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, NULL, ?)
		ON CONFLICT(condition_id, token_id) DO UPDATE SET
			size        = excluded.size,
			entry_price = excluded.entry_price,
			is_open     = 1,
			source      = CASE WHEN positions.is_open = 1 THEN positions.source ELSE excluded.source END,
			opened_at   = CASE WHEN positions.is_open = 1 THEN positions.opened_at ELSE excluded.opened_at END,
			closed_at   = NULL,
			updated_at  = excluded.updated_at
	`, p.ConditionID, p.TokenID, p.Size, p.EntryPrice, string(p.Source),
		formatTime(openedAt), formatTime(now)); err != nil {
		return fmt.Errorf("storage.UpsertPosition %s/%s: %w", p.ConditionID, p.TokenID, err)
	}
	return nil
}

// ClosePosition marca la posición como cerrada (soft close). El histórico
// se conserva; cerrar una key inexistente o ya cerrada es un no-op.
func (s *SQLiteStore) ClosePosition(ctx context.Context, conditionID, tokenID string) error {
	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET is_open = 0, closed_at = ?, updated_at = ?
		WHERE condition_id = ? AND token_id = ? AND is_open = 1
	`, now, now, conditionID, tokenID); err != nil {
		return fmt.Errorf("storage.ClosePosition %s/%s: %w", conditionID, tokenID, err)
	}
	return nil
}

// --- órdenes ---

// SaveOrder registra una orden nueva.
func (s *SQLiteStore) SaveOrder(ctx context.Context, o domain.Order) error {
	status := o.Status
	if status == "" {
		status = domain.OrderOpen
	}
	var createdAt any
	if !o.CreatedAt.IsZero() {
		createdAt = formatTime(o.CreatedAt)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, condition_id, token_id, side, price, size, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO NOTHING
	`, o.OrderID, o.ConditionID, o.TokenID, string(o.Side), o.Price, o.Size,
		string(status), createdAt, formatTime(s.now())); err != nil {
		return fmt.Errorf("storage.SaveOrder %s: %w", o.OrderID, err)
	}
	return nil
}

// OpenOrders devuelve las órdenes con estado OPEN.
func (s *SQLiteStore) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, condition_id, token_id, side, price, size, created_at, updated_at
		FROM orders
		WHERE status = 'OPEN'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenOrders: query: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var side, updatedAt string
		var createdAt sql.NullString
		if err := rows.Scan(&o.OrderID, &o.ConditionID, &o.TokenID, &side,
			&o.Price, &o.Size, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage.OpenOrders: scan: %w", err)
		}
		o.Side = domain.OrderSide(side)
		o.Status = domain.OrderOpen
		if createdAt.Valid {
			o.CreatedAt = parseTime(createdAt.String)
		}
		o.UpdatedAt = parseTime(updatedAt)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus transiciona la orden. La monotonía se refuerza en el
// propio UPDATE: solo se sale de OPEN, un estado terminal nunca cambia.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE order_id = ? AND status = 'OPEN'
	`, string(status), formatTime(s.now()), orderID); err != nil {
		return fmt.Errorf("storage.UpdateOrderStatus %s: %w", orderID, err)
	}
	return nil
}

// --- caché de análisis ---

// CachedOpportunity devuelve el análisis cacheado si su antigüedad no
// supera maxAge; (nil, nil) en cache miss.
func (s *SQLiteStore) CachedOpportunity(ctx context.Context, conditionID string, maxAge time.Duration) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	var confidence, tokensJSON, analyzedAt string
	var rationale sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT condition_id, question, market_price, probability, edge, confidence, rationale, tokens, volume, analyzed_at
		FROM opportunities
		WHERE condition_id = ?
	`, conditionID).Scan(&opp.ConditionID, &opp.Question, &opp.MarketPrice,
		&opp.Probability, &opp.Edge, &confidence, &rationale, &tokensJSON,
		&opp.Volume, &analyzedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.CachedOpportunity %s: %w", conditionID, err)
	}

	opp.Confidence = domain.Confidence(confidence)
	opp.Rationale = rationale.String
	opp.AnalyzedAt = parseTime(analyzedAt)
	if err := json.Unmarshal([]byte(tokensJSON), &opp.Tokens); err != nil {
		return nil, fmt.Errorf("storage.CachedOpportunity %s: parse tokens: %w", conditionID, err)
	}

	if !opp.Fresh(s.now(), maxAge) {
		return nil, nil
	}
	return &opp, nil
}

// CacheOpportunity hace upsert del análisis por condition_id.
func (s *SQLiteStore) CacheOpportunity(ctx context.Context, opp domain.Opportunity) error {
	tokens, err := json.Marshal(opp.Tokens)
	if err != nil {
		return fmt.Errorf("storage.CacheOpportunity %s: marshal tokens: %w", opp.ConditionID, err)
	}

	analyzedAt := opp.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (condition_id, question, market_price, probability, edge, confidence, rationale, tokens, volume, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			question     = excluded.question,
			market_price = excluded.market_price,
			probability  = excluded.probability,
			edge         = excluded.edge,
			confidence   = excluded.confidence,
			rationale    = excluded.rationale,
			tokens       = excluded.tokens,
			volume       = excluded.volume,
			analyzed_at  = excluded.analyzed_at
	`, opp.ConditionID, opp.Question, opp.MarketPrice, opp.Probability, opp.Edge,
		string(opp.Confidence), opp.Rationale, string(tokens), opp.Volume,
		formatTime(analyzedAt)); err != nil {
		return fmt.Errorf("storage.CacheOpportunity %s: %w", opp.ConditionID, err)
	}
	return nil
}

// --- trade log ---

// AppendTradeLog añade una entrada al diario.
func (s *SQLiteStore) AppendTradeLog(ctx context.Context, entry domain.TradeLog) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	dryRun := 0
	if entry.DryRun {
		dryRun = 1
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_logs (id, order_id, condition_id, question, side, outcome, size, price,
			probability, market_price, edge, kelly_used, risk_level, rationale, dry_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OrderID, entry.ConditionID, entry.Question, string(entry.Side),
		entry.Outcome, entry.Size, entry.Price, entry.Probability, entry.MarketPrice,
		entry.Edge, entry.KellyUsed, string(entry.RiskLevel), entry.Rationale,
		dryRun, formatTime(createdAt)); err != nil {
		return fmt.Errorf("storage.AppendTradeLog %s: %w", entry.ID, err)
	}
	return nil
}

// --- helpers internos ---

// getState lee una key del KV. ok=false si no existe.
func (s *SQLiteStore) getState(ctx context.Context, key string) (string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM agent_state WHERE key = ?`, key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// putStateJSON serializa v y hace upsert en el KV.
func (s *SQLiteStore) putStateJSON(ctx context.Context, key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(val), formatTime(s.now()))
	return err
}

// formatTime serializa tiempos como RFC3339 UTC, el único formato que se
// lee de vuelta.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime es el inverso de formatTime; zero time si no es parseable.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
