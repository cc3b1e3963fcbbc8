package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Inventory InventoryConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Gateway   GatewayConfig
	Identity  IdentityConfig
	Bridge    BridgeConfig
	Checkout  CheckoutConfig
	Trade     TradeConfig
	Sales     SalesConfig
	Admin     AdminConfig
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"storefront-bot"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE" default:""`
}

type InventoryConfig struct {
	Path string `envconfig:"INVENTORY_PATH" default:"./data/estoque.json"`
}

// DatabaseConfig selects the store for giveaways and the sales ledger.
// For sqlite the DSN is a file path.
type DatabaseConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite or mysql
	DSN    string `envconfig:"DB_DSN" default:"./data/bot.db"`
}

// SessionConfig selects where checkout sessions and recent purchases live.
type SessionConfig struct {
	Type            string        `envconfig:"SESSION_TYPE" default:"memory"` // memory or redis
	CleanupInterval time.Duration `envconfig:"SESSION_CLEANUP_INTERVAL" default:"1m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"storefront:"`
}

type GatewayConfig struct {
	BaseURL   string        `envconfig:"ZEROONE_BASE_URL" default:"https://api.zeroonepay.com.br/api/v1"`
	SecretKey string        `envconfig:"ZEROONE_SECRET_KEY" default:""`
	Timeout   time.Duration `envconfig:"ZEROONE_TIMEOUT" default:"15s"`
	TestMode  bool          `envconfig:"PIX_TEST_MODE" default:"false"`
}

type IdentityConfig struct {
	BaseURL  string        `envconfig:"MAGMA_BASE_URL" default:"https://magmadatahub.com/api.php"`
	Token    string        `envconfig:"MAGMA_TOKEN" default:""`
	Timeout  time.Duration `envconfig:"MAGMA_TIMEOUT" default:"10s"`
	Attempts int           `envconfig:"MAGMA_ATTEMPTS" default:"15"`
	Delay    time.Duration `envconfig:"MAGMA_DELAY" default:"300ms"`
}

// BridgeConfig points at the chat bridge sidecar.
type BridgeConfig struct {
	BaseURL       string        `envconfig:"BRIDGE_BASE_URL" default:"http://localhost:3000"`
	WebsocketURL  string        `envconfig:"BRIDGE_WS_URL" default:"ws://localhost:3000/interactions"`
	Token         string        `envconfig:"BRIDGE_TOKEN" default:""`
	GuildID       string        `envconfig:"BRIDGE_GUILD_ID" default:""`
	Timeout       time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"10s"`
	LogChannelID  string        `envconfig:"LOG_CHANNEL_ID" default:""`
	TradeCategory string        `envconfig:"TRADE_CATEGORY_ID" default:""`
}

type CheckoutConfig struct {
	PollInterval time.Duration `envconfig:"CHECKOUT_POLL_INTERVAL" default:"4s"`
	PollAttempts int           `envconfig:"CHECKOUT_POLL_ATTEMPTS" default:"45"`
	Expiry       time.Duration `envconfig:"CHECKOUT_EXPIRY" default:"15m"`
}

type TradeConfig struct {
	Window        time.Duration `envconfig:"TRADE_WINDOW" default:"10m"`
	TeardownDelay time.Duration `envconfig:"TRADE_TEARDOWN_DELAY" default:"20s"`
}

type SalesConfig struct {
	CacheTTL time.Duration `envconfig:"SALES_CACHE_TTL" default:"5m"`
}

// AdminConfig lists who may run admin actions. Token guards the admin HTTP
// API; an empty token disables it.
type AdminConfig struct {
	IDs   []string `envconfig:"ADMIN_IDS"`
	Token string   `envconfig:"ADMIN_TOKEN" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *SessionConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func (c *SessionConfig) UsesRedis() bool {
	return strings.EqualFold(c.Type, "redis")
}

// IsAdmin reports whether userID is one of the configured admins.
func (a *AdminConfig) IsAdmin(userID string) bool {
	for _, id := range a.IDs {
		if strings.TrimSpace(id) == userID && userID != "" {
			return true
		}
	}
	return false
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER %q: want sqlite or mysql", c.Database.Driver)
	}
	switch strings.ToLower(c.Session.Type) {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_TYPE %q: want memory or redis", c.Session.Type)
	}
	if !c.Gateway.TestMode && c.Gateway.SecretKey == "" {
		return fmt.Errorf("ZEROONE_SECRET_KEY is required unless PIX_TEST_MODE is set")
	}
	if c.Checkout.PollAttempts <= 0 {
		return fmt.Errorf("CHECKOUT_POLL_ATTEMPTS must be positive")
	}
	return nil
}
