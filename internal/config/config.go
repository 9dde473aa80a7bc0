package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	defaultJWTSecret = "change-me-jwt-secret"

	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

type Config struct {
	AppEnv      string        `env:"APP_ENV,default=dev"`
	LogLevel    string        `env:"LOG_LEVEL,default=info"`
	Port        int           `env:"PORT,default=8080"`
	AppURL      string        `env:"APP_URL,default=http://localhost:8080"`
	DatabaseURL string        `env:"DATABASE_URL,default=mealsub.db"`
	JWTSecret   string        `env:"JWT_SECRET,default=change-me-jwt-secret"`
	JWTTTL      time.Duration `env:"JWT_TTL,default=24h"`
	RedisURL    string        `env:"REDIS_URL"`

	DB      Database
	Payment Payment
	Broker  Broker
	Mail    Mail
	CORS    CORS
}

type Database struct {
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=5m"`
	Debug           bool          `env:"DB_DEBUG,default=false"`
}

type Payment struct {
	DefaultGateway string        `env:"PAYMENT_DEFAULT_GATEWAY"`
	SessionTTL     time.Duration `env:"PAYMENT_SESSION_TTL,default=24h"`
	HTTPTimeout    time.Duration `env:"PAYMENT_HTTP_TIMEOUT,default=20s"`
	LockTTL        time.Duration `env:"PAYMENT_LOCK_TTL,default=30s"`
	DedupCacheSize int           `env:"PAYMENT_DEDUP_CACHE_SIZE,default=1024"`

	Stripe  Stripe
	PayPal  PayPal
	Thawani Thawani
	Mock    Mock
}

type Stripe struct {
	PublicKey string `env:"STRIPE_PUBLIC_KEY"`
	SecretKey string `env:"STRIPE_SECRET_KEY"`
	BaseURL   string `env:"STRIPE_BASE_URL"`
}

type PayPal struct {
	ClientID     string `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	Mode         string `env:"PAYPAL_MODE,default=sandbox"`
	BaseURL      string `env:"PAYPAL_BASE_URL"`
}

type Thawani struct {
	SecretKey      string `env:"THAWANI_SECRET_KEY"`
	PublishableKey string `env:"THAWANI_PUBLISHABLE_KEY"`
	Mode           string `env:"THAWANI_MODE,default=sandbox"`
	BaseURL        string `env:"THAWANI_BASE_URL"`
}

type Mock struct {
	Enabled bool `env:"MOCK_GATEWAY_ENABLED,default=false"`
}

type Broker struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE,default=mealsub.events"`
}

type Mail struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,default=587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM,default=payments@mealsub.local"`
	OpsTo    string `env:"MAIL_OPS_TO"`
}

type CORS struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
}

// Load decodes the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.AppURL = strings.TrimRight(strings.TrimSpace(c.AppURL), "/")
	c.Payment.DefaultGateway = strings.ToLower(strings.TrimSpace(c.Payment.DefaultGateway))
	c.Payment.PayPal.Mode = strings.ToLower(strings.TrimSpace(c.Payment.PayPal.Mode))
	c.Payment.Thawani.Mode = strings.ToLower(strings.TrimSpace(c.Payment.Thawani.Mode))
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	u, err := url.Parse(c.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_URL must be an absolute URL, got %q", c.AppURL)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if c.Payment.SessionTTL <= 0 {
		return fmt.Errorf("PAYMENT_SESSION_TTL must be > 0")
	}
	if c.Payment.HTTPTimeout <= 0 {
		return fmt.Errorf("PAYMENT_HTTP_TIMEOUT must be > 0")
	}
	if c.Payment.LockTTL <= 0 {
		return fmt.Errorf("PAYMENT_LOCK_TTL must be > 0")
	}
	if !validMode(c.Payment.PayPal.Mode) {
		return fmt.Errorf("PAYPAL_MODE must be sandbox or live")
	}
	if !validMode(c.Payment.Thawani.Mode) {
		return fmt.Errorf("THAWANI_MODE must be sandbox or live")
	}
	if c.Payment.DefaultGateway != "" && !isKnownGateway(c.Payment.DefaultGateway) {
		return fmt.Errorf("PAYMENT_DEFAULT_GATEWAY %q is not a supported gateway", c.Payment.DefaultGateway)
	}

	if c.IsProdLike() {
		if isEmptyOrDefault(c.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if c.Payment.Mock.Enabled {
			return fmt.Errorf("in prod/release MOCK_GATEWAY_ENABLED must be false")
		}
	}
	return nil
}

func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func validMode(m string) bool {
	return m == ModeSandbox || m == ModeLive
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
