package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Currency  CurrencyConfig
	Checkout  CheckoutConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	PublicURL      string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	Schema          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
	LinkExpiry    int // in minutes
}

// StorageConfig selects and configures the object store used for fabric images.
type StorageConfig struct {
	Driver    string // minio or s3
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type CurrencyConfig struct {
	RatesURL        string
	GeoURL          string
	CacheTTL        time.Duration
	FallbackRate    float64 // NGN per USD
	FallbackCountry string
	HomeCountry     string
}

type CheckoutConfig struct {
	WhatsAppNumber string
	StoreName      string
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
	Protocol    string
}

// Addr returns the host:port pair for the Redis server.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate reports configuration that would make the server unsafe to run.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && !c.Server.IsDevelopment() {
		return errors.New("JWT_SECRET is required outside development")
	}
	switch c.Storage.Driver {
	case "minio", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Checkout.WhatsAppNumber == "" {
		return errors.New("CHECKOUT_WHATSAPP_NUMBER is required")
	}
	return nil
}

func Load() *Config {
	// Values already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_PUBLIC_URL", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("JWT_REFRESH_EXPIRY", 7)
	v.SetDefault("JWT_LINK_EXPIRY", 30)
	v.SetDefault("STORAGE_DRIVER", "minio")
	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_BUCKET", "fabric-images")
	v.SetDefault("CURRENCY_RATES_URL", "https://open.er-api.com/v6/latest/USD")
	v.SetDefault("CURRENCY_GEO_URL", "https://ipapi.co")
	v.SetDefault("CURRENCY_CACHE_TTL", "1h")
	v.SetDefault("CURRENCY_FALLBACK_RATE", 1500.0)
	v.SetDefault("CURRENCY_FALLBACK_COUNTRY", "US")
	v.SetDefault("CURRENCY_HOME_COUNTRY", "NG")
	v.SetDefault("CHECKOUT_STORE_NAME", "Textile Store")
	v.SetDefault("MAIL_PORT", "587")
	v.SetDefault("MAIL_FROM", "no-reply@textile.store")
	v.SetDefault("RATE_LIMIT_REQUESTS", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "textile-store")
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			PublicURL:      strings.TrimRight(v.GetString("SERVER_PUBLIC_URL"), "/"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_DATABASE"),
			Schema:          v.GetString("DB_SCHEMA"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  v.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: v.GetInt("JWT_REFRESH_EXPIRY"),
			LinkExpiry:    v.GetInt("JWT_LINK_EXPIRY"),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			Region:    v.GetString("STORAGE_REGION"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			PublicURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_URL"), "/"),
		},
		Currency: CurrencyConfig{
			RatesURL:        v.GetString("CURRENCY_RATES_URL"),
			GeoURL:          strings.TrimRight(v.GetString("CURRENCY_GEO_URL"), "/"),
			CacheTTL:        v.GetDuration("CURRENCY_CACHE_TTL"),
			FallbackRate:    v.GetFloat64("CURRENCY_FALLBACK_RATE"),
			FallbackCountry: strings.ToUpper(v.GetString("CURRENCY_FALLBACK_COUNTRY")),
			HomeCountry:     strings.ToUpper(v.GetString("CURRENCY_HOME_COUNTRY")),
		},
		Checkout: CheckoutConfig{
			WhatsAppNumber: v.GetString("CHECKOUT_WHATSAPP_NUMBER"),
			StoreName:      v.GetString("CHECKOUT_STORE_NAME"),
		},
		Mail: MailConfig{
			Host:     v.GetString("MAIL_HOST"),
			Port:     v.GetString("MAIL_PORT"),
			Username: v.GetString("MAIL_USERNAME"),
			Password: v.GetString("MAIL_PASSWORD"),
			From:     v.GetString("MAIL_FROM"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Protocol:    v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
