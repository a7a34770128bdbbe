package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Checkout CheckoutConfig `envPrefix:"CHECKOUT_"`
	Telegram TelegramConfig `envPrefix:"TELEGRAM_"`
	Stripe   StripeConfig   `envPrefix:"STRIPE_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`
}

type HTTPConfig struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	PublicURL      string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RateLimitMax   int           `env:"RATE_LIMIT_MAX" envDefault:"60"`
	RateLimitEvery time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

type CheckoutConfig struct {
	AutoAdvanceDelay  time.Duration `env:"AUTO_ADVANCE_DELAY" envDefault:"1500ms"`
	PaymentDelay      time.Duration `env:"PAYMENT_DELAY" envDefault:"1500ms"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	ChargeQuotedPrice bool          `env:"CHARGE_QUOTED_PRICE" envDefault:"false"`
	Gateway           string        `env:"GATEWAY" envDefault:"mock"`
}

type TelegramConfig struct {
	BotToken    string `env:"BOT_TOKEN"`
	AdminChatID string `env:"ADMIN_CHAT_ID"`
	RelayURL    string `env:"RELAY_URL"`
	BotEnabled  bool   `env:"BOT_ENABLED" envDefault:"false"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
}

type StripeConfig struct {
	SecretKey string `env:"SECRET_KEY"`
	// APIURL overrides the Stripe API base, used against stripe-mock.
	APIURL string `env:"API_URL"`
}

type DatabaseConfig struct {
	Host            string        `env:"HOST,required"`
	Port            int           `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER,required"`
	Password        string        `env:"PASSWORD,required"`
	Name            string        `env:"NAME,required"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"2m"`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR,required"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"24h"`
}

type AdminConfig struct {
	IDs       []int64 `env:"IDS" envSeparator:","`
	ChannelID int64   `env:"CHANNEL_ID"`
	ReportDir string  `env:"REPORT_DIR" envDefault:"reports"`
}

// Load reads an optional .env file (missing files are ignored) and parses the
// environment into Config.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Telegram.BotEnabled && cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required when the bot is enabled")
	}
	if cfg.Checkout.Gateway == "stripe" && cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required for the stripe gateway")
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsAdmin reports whether the Telegram user may run admin commands.
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == chatID {
			return true
		}
	}
	return false
}
