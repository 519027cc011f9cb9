package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del agente. Se carga una vez al
// arrancar y se pasa explícitamente; ninguna fase la muta.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Risk      RiskConfig      `yaml:"risk"`
	Markets   MarketsConfig   `yaml:"markets"`
	API       APIConfig       `yaml:"api"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Arbitrage ArbitrageConfig `yaml:"arbitrage"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`

	// Credenciales: solo desde el entorno (.env), nunca del YAML.
	PrivateKey   string `yaml:"-"`
	OracleAPIKey string `yaml:"-"`
}

// AgentConfig controla el comportamiento del ciclo.
type AgentConfig struct {
	MaxMarketsPerCycle int `yaml:"max_markets_per_cycle"` // acota el coste de oráculo
	MaxTradesPerCycle  int `yaml:"max_trades_per_cycle"`
	StaleOrderMinutes  int `yaml:"stale_order_minutes"` // umbral de cancelación forzosa
	CacheTTLHours      int `yaml:"cache_ttl_hours"`     // frescura del análisis cacheado
	LeaseTTLMinutes    int `yaml:"lease_ttl_minutes"`   // expiración del lease de ciclo
}

// RiskConfig son los parámetros del gate de riesgo.
type RiskConfig struct {
	KellyFraction       float64 `yaml:"kelly_fraction"`
	KellyCap            float64 `yaml:"kelly_cap"`
	MaxPositionPct      float64 `yaml:"max_position_pct"`
	MaxSingleOrderUSDC  float64 `yaml:"max_single_order_usdc"`
	MinOrderUSDC        float64 `yaml:"min_order_usdc"`
	StopOutPct          float64 `yaml:"stop_out_pct"`
	MinEdge             float64 `yaml:"min_edge"`
	EmergencyPct        float64 `yaml:"emergency_threshold_pct"`
	EmergencyMinProb    float64 `yaml:"emergency_min_confidence"`
	EmergencyOrderPct   float64 `yaml:"emergency_order_pct"`
}

// MarketsConfig controla el funnel de descubrimiento.
type MarketsConfig struct {
	FetchLimit     int      `yaml:"fetch_limit"`
	MinVolume      float64  `yaml:"min_volume"`
	MinLiquidity   float64  `yaml:"min_liquidity"`
	MinExpiryHours float64  `yaml:"min_expiry_hours"`
	MaxExpiryDays  float64  `yaml:"max_expiry_days"`
	AllowedTags    []string `yaml:"allowed_tags"`
	BlockedTags    []string `yaml:"blocked_tags"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	DataBase  string `yaml:"data_base"`
	RPCURL    string `yaml:"rpc_url"` // Polygon RPC para lecturas on-chain
}

// OracleConfig configura el oráculo de probabilidad.
type OracleConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ArbitrageConfig configura el scan de mispricing.
type ArbitrageConfig struct {
	Tolerance float64 `yaml:"tolerance"`
}

// StorageConfig controla dónde se persiste el estado.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato, nivel y destino del logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`   // si no está vacío, log rotado a archivo
}

// Load carga la configuración desde el YAML y el .env si existe.
// Las credenciales vienen siempre del entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Validate comprueba lo que es fatal al arrancar: sin credenciales el
// proceso no debe entrar en ninguna fase.
func (c *Config) Validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("config: POLY_PRIVATE_KEY is not set")
	}
	if c.OracleAPIKey == "" {
		return fmt.Errorf("config: ORACLE_API_KEY is not set")
	}
	return nil
}

// StaleOrderThreshold devuelve el umbral de órdenes viejas como Duration.
func (c *Config) StaleOrderThreshold() time.Duration {
	return time.Duration(c.Agent.StaleOrderMinutes) * time.Minute
}

// CacheTTL devuelve la ventana de frescura del caché de análisis.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Agent.CacheTTLHours) * time.Hour
}

// LeaseTTL devuelve la expiración del lease de ciclo.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Agent.LeaseTTLMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno.
func applyEnvOverrides(cfg *Config) {
	cfg.PrivateKey = os.Getenv("POLY_PRIVATE_KEY")
	cfg.OracleAPIKey = os.Getenv("ORACLE_API_KEY")
	if cfg.OracleAPIKey == "" {
		cfg.OracleAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYGON_RPC_URL"); v != "" {
		cfg.API.RPCURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Agent.MaxMarketsPerCycle <= 0 {
		cfg.Agent.MaxMarketsPerCycle = 5
	}
	if cfg.Agent.MaxTradesPerCycle <= 0 {
		cfg.Agent.MaxTradesPerCycle = 3
	}
	if cfg.Agent.StaleOrderMinutes <= 0 {
		cfg.Agent.StaleOrderMinutes = 60
	}
	if cfg.Agent.CacheTTLHours <= 0 {
		cfg.Agent.CacheTTLHours = 4
	}
	if cfg.Agent.LeaseTTLMinutes <= 0 {
		cfg.Agent.LeaseTTLMinutes = 10
	}

	if cfg.Risk.KellyFraction <= 0 {
		cfg.Risk.KellyFraction = 0.25
	}
	if cfg.Risk.KellyCap <= 0 {
		cfg.Risk.KellyCap = 0.25
	}
	if cfg.Risk.MaxPositionPct <= 0 {
		cfg.Risk.MaxPositionPct = 0.20
	}
	if cfg.Risk.MaxSingleOrderUSDC <= 0 {
		cfg.Risk.MaxSingleOrderUSDC = 50.0
	}
	if cfg.Risk.MinOrderUSDC <= 0 {
		cfg.Risk.MinOrderUSDC = 1.0
	}
	if cfg.Risk.StopOutPct <= 0 {
		cfg.Risk.StopOutPct = 0.20
	}
	if cfg.Risk.MinEdge <= 0 {
		cfg.Risk.MinEdge = 0.10
	}
	if cfg.Risk.EmergencyPct <= 0 {
		cfg.Risk.EmergencyPct = 0.20
	}
	if cfg.Risk.EmergencyMinProb <= 0 {
		cfg.Risk.EmergencyMinProb = 0.90
	}
	if cfg.Risk.EmergencyOrderPct <= 0 {
		cfg.Risk.EmergencyOrderPct = 0.05
	}

	if cfg.Markets.FetchLimit <= 0 {
		cfg.Markets.FetchLimit = 50
	}
	if cfg.Markets.MinVolume <= 0 {
		cfg.Markets.MinVolume = 10_000
	}
	if cfg.Markets.MinLiquidity <= 0 {
		cfg.Markets.MinLiquidity = 5_000
	}
	if cfg.Markets.MinExpiryHours <= 0 {
		cfg.Markets.MinExpiryHours = 6
	}
	if cfg.Markets.MaxExpiryDays <= 0 {
		cfg.Markets.MaxExpiryDays = 180
	}

	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.RPCURL == "" {
		cfg.API.RPCURL = "https://polygon-rpc.com"
	}

	if cfg.Oracle.BaseURL == "" {
		cfg.Oracle.BaseURL = "https://api.openai.com"
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = "gpt-4o"
	}

	if cfg.Arbitrage.Tolerance <= 0 {
		cfg.Arbitrage.Tolerance = 0.02
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyagent.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
