package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	Market    MarketConfig    `env:", prefix=MARKET_"`
	Rates     RatesConfig     `env:", prefix=RATES_"`
	Refresh   RefreshConfig   `env:", prefix=REFRESH_"`
	Session   SessionConfig   `env:", prefix=SESSION_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	WebSocket WebSocketConfig `env:", prefix=WEBSOCKET_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// MarketConfig holds market data feed configuration.
//
// Coins is the explicit CoinGecko id allow-list. When Coins is emptied and
// TopN is positive, the feed is queried for the top N assets by market
// capitalization instead.
type MarketConfig struct {
	BaseURL       string        `env:"BASE_URL, default=https://api.coingecko.com/api/v3"`
	APIKey        string        `env:"API_KEY"`
	Coins         []string      `env:"COINS, default=bitcoin,ethereum,matic-network,fitfi,polkadot,cardano,ripple,dogecoin,chainlink,uniswap"`
	TopN          int           `env:"TOP_N, default=0"`
	Timeout       time.Duration `env:"TIMEOUT, default=10s"`
	RateLimitWait time.Duration `env:"RATE_LIMIT_WAIT, default=2s"`
}

// RatesConfig holds exchange-rate feed configuration.
// Fallback is used as the USD multiplier until the first successful fetch.
type RatesConfig struct {
	BaseURL  string        `env:"BASE_URL, default=https://open.er-api.com/v6"`
	Currency string        `env:"CURRENCY, default=ILS"`
	Fallback float64       `env:"FALLBACK, default=3.5"`
	Timeout  time.Duration `env:"TIMEOUT, default=10s"`
}

// RefreshConfig holds the periodic refresh cycle configuration
type RefreshConfig struct {
	Interval time.Duration `env:"INTERVAL, default=60s"`
}

// SessionConfig holds per-session state configuration
type SessionConfig struct {
	TTL             time.Duration `env:"TTL, default=30m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL, default=5m"`
	HistoryLimit    int           `env:"HISTORY_LIMIT, default=100"`
}

// RedisConfig holds Redis configuration for the last-good snapshot cache
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	SnapshotTTL  time.Duration `env:"SNAPSHOT_TTL, default=10m"`
}

// NATSConfig holds NATS configuration for refresh event publishing
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
}

// SecurityConfig holds CORS configuration for the browser UI
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PUT,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=Content-Type,X-Session-Token"`
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `env:"READ_BUFFER_SIZE, default=1024"`
	WriteBufferSize int           `env:"WRITE_BUFFER_SIZE, default=1024"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE, default=4096"`
	PingInterval    time.Duration `env:"PING_INTERVAL, default=30s"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT, default=60s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=10s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Market.BaseURL == "" {
		return fmt.Errorf("market data base URL is required")
	}

	if len(c.Market.Coins) == 0 && c.Market.TopN <= 0 {
		return fmt.Errorf("either MARKET_COINS or MARKET_TOP_N must be set")
	}

	if c.Rates.Currency == "" {
		return fmt.Errorf("local currency code is required")
	}

	if c.Rates.Fallback <= 0 {
		return fmt.Errorf("invalid fallback exchange rate: %f", c.Rates.Fallback)
	}

	if c.Refresh.Interval < time.Second {
		return fmt.Errorf("refresh interval too short: %s", c.Refresh.Interval)
	}

	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("invalid history limit: %d", c.Session.HistoryLimit)
	}

	return nil
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
