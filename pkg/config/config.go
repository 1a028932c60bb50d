package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ExecutionMode selects how orders reach the venues.
type ExecutionMode string

const (
	// ModeCLOB places signed orders through the venue REST APIs.
	ModeCLOB ExecutionMode = "clob"
	// ModeVault routes placements through the on-chain vault contract.
	ModeVault ExecutionMode = "vault"
	// ModeDryRun short-circuits every network mutation with synthetic fills.
	ModeDryRun ExecutionMode = "dry-run"
)

// Config holds process-wide configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Venues
	AMMBaseURL     string
	CLOBBaseURL    string
	CLOBStreamURL  string
	ChainRPCURL    string
	ChainID        int64
	HTTPTimeout    time.Duration
	VenueRateLimit float64 // requests per second per venue client

	// Venue fees, basis points per leg.
	AMMFeeBps  int64
	CLOBFeeBps int64

	// Contracts
	AMMExchange  string
	AMMVault     string
	CLOBExchange string
	StableToken  string
	OutcomeToken string // ERC-1155 conditional-token contract

	// Signing key for venue auth and order signing. A key vault supplies
	// per-user keys in production; one process key covers local runs.
	PrivateKey string

	// Supervisor
	MaxAgents    int
	ScanInterval time.Duration

	// Storage: "postgres", "sqlite" or "console".
	StorageMode  string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	SQLitePath   string

	// Agent defaults; per-user overrides arrive through the supervisor.
	AgentDefaults AgentConfig
}

// AgentConfig carries one agent's trading options. All notionals are in
// stable-token base units (6 decimals).
type AgentConfig struct {
	MinTradeSize       int64
	MaxTradeSize       int64
	MinSpreadBps       int64
	MaxTotalTrades     int           // 0 = unlimited
	TradingDuration    time.Duration // 0 = no session TTL
	DailyLossLimit     int64         // 0 = no stop-loss
	MaxResolutionDays  int           // 0 = no horizon filter
	FillPollInterval   time.Duration
	FillPollTimeout    time.Duration
	UnwindPollInterval time.Duration
	UnwindMaxPolls     int
	GasToQuoteRate     int64 // native token price in stable base units
	GasPriceWei        int64
	ExecutionMode      ExecutionMode
}

// LoadFromEnv loads configuration from the environment with defaults.
// A .env file in the working directory is applied first when present.
func LoadFromEnv() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		AMMBaseURL:     getEnvOrDefault("AMM_BASE_URL", "https://amm.example-venue.xyz"),
		CLOBBaseURL:    getEnvOrDefault("CLOB_BASE_URL", "https://clob.example-venue.xyz"),
		CLOBStreamURL:  getEnvOrDefault("CLOB_STREAM_URL", "wss://clob.example-venue.xyz/stream"),
		ChainRPCURL:    getEnvOrDefault("CHAIN_RPC_URL", "https://polygon-rpc.com"),
		ChainID:        getInt64OrDefault("CHAIN_ID", 137),
		HTTPTimeout:    getDurationOrDefault("VENUE_HTTP_TIMEOUT", 10*time.Second),
		VenueRateLimit: getFloat64OrDefault("VENUE_RATE_LIMIT", 10.0),

		AMMFeeBps:  getInt64OrDefault("AMM_FEE_BPS", 20),
		CLOBFeeBps: getInt64OrDefault("CLOB_FEE_BPS", 0),

		AMMExchange:  getEnvOrDefault("AMM_EXCHANGE_ADDRESS", ""),
		AMMVault:     getEnvOrDefault("AMM_VAULT_ADDRESS", ""),
		CLOBExchange: getEnvOrDefault("CLOB_EXCHANGE_ADDRESS", ""),
		StableToken:  getEnvOrDefault("STABLE_TOKEN_ADDRESS", ""),
		OutcomeToken: getEnvOrDefault("OUTCOME_TOKEN_ADDRESS", ""),
		PrivateKey:   getEnvOrDefault("PRIVATE_KEY", ""),

		MaxAgents:    getIntOrDefault("MAX_AGENTS", 50),
		ScanInterval: getDurationOrDefault("SCAN_INTERVAL", 5*time.Second),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "crossarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "crossarb"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "crossarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "crossarb.db"),

		AgentDefaults: AgentConfig{
			MinTradeSize:       getInt64OrDefault("AGENT_MIN_TRADE_SIZE", 10*1_000_000),
			MaxTradeSize:       getInt64OrDefault("AGENT_MAX_TRADE_SIZE", 1000*1_000_000),
			MinSpreadBps:       getInt64OrDefault("AGENT_MIN_SPREAD_BPS", 50),
			MaxTotalTrades:     getIntOrDefault("AGENT_MAX_TOTAL_TRADES", 0),
			TradingDuration:    getDurationOrDefault("AGENT_TRADING_DURATION", 0),
			DailyLossLimit:     getInt64OrDefault("AGENT_DAILY_LOSS_LIMIT", 0),
			MaxResolutionDays:  getIntOrDefault("AGENT_MAX_RESOLUTION_DAYS", 0),
			FillPollInterval:   getDurationOrDefault("AGENT_FILL_POLL_INTERVAL", 2*time.Second),
			FillPollTimeout:    getDurationOrDefault("AGENT_FILL_POLL_TIMEOUT", 60*time.Second),
			UnwindPollInterval: getDurationOrDefault("AGENT_UNWIND_POLL_INTERVAL", 5*time.Second),
			UnwindMaxPolls:     getIntOrDefault("AGENT_UNWIND_MAX_POLLS", 6),
			GasToQuoteRate:     getInt64OrDefault("AGENT_GAS_TO_QUOTE_RATE", 500_000),
			GasPriceWei:        getInt64OrDefault("AGENT_GAS_PRICE_WEI", 30_000_000_000),
			ExecutionMode:      ExecutionMode(getEnvOrDefault("AGENT_EXECUTION_MODE", string(ModeDryRun))),
		},
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.AMMBaseURL == "" || c.CLOBBaseURL == "" {
		return fmt.Errorf("venue base URLs cannot be empty")
	}

	if c.MaxAgents <= 0 {
		return fmt.Errorf("MAX_AGENTS must be positive, got %d", c.MaxAgents)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "sqlite" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres', 'sqlite' or 'console', got %q", c.StorageMode)
	}

	return c.AgentDefaults.Validate()
}

// Validate checks one agent's trading options.
func (c *AgentConfig) Validate() error {
	switch c.ExecutionMode {
	case ModeCLOB, ModeVault, ModeDryRun:
	default:
		return fmt.Errorf("execution mode must be 'clob', 'vault' or 'dry-run', got %q", c.ExecutionMode)
	}

	if c.MaxTradeSize <= 0 {
		return fmt.Errorf("max trade size must be positive, got %d", c.MaxTradeSize)
	}

	if c.MinTradeSize < 0 || c.MinTradeSize > c.MaxTradeSize {
		return fmt.Errorf("min trade size %d outside [0, %d]", c.MinTradeSize, c.MaxTradeSize)
	}

	if c.FillPollInterval <= 0 || c.FillPollTimeout <= 0 {
		return fmt.Errorf("fill poll interval and timeout must be positive")
	}

	if c.UnwindMaxPolls <= 0 {
		return fmt.Errorf("unwind max polls must be positive, got %d", c.UnwindMaxPolls)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
