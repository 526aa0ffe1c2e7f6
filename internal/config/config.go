package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/iliyamo/authsession/internal/utils"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"

	TransportCookie = "cookie"
	TransportBody   = "body"

	minSecretBytes = 32
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; the raw TTL strings are parsed into AccessTTL and
// RefreshTTL by Validate.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`  // application environment (development, production)
	Port     string `mapstructure:"APP_PORT"` // HTTP port to listen on
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"` // mysql | memory
	DBUser        string `mapstructure:"DB_USER"`
	DBPass        string `mapstructure:"DB_PASS"` // optional
	DBHost        string `mapstructure:"DB_HOST"`
	DBPort        string `mapstructure:"DB_PORT"`
	DBName        string `mapstructure:"DB_NAME"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	JWTSecret     string `mapstructure:"JWT_SECRET"` // HS256 signing key, no default
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
	AccessTTLRaw  string `mapstructure:"ACCESS_TOKEN_TTL"`  // e.g. 15m
	RefreshTTLRaw string `mapstructure:"REFRESH_TOKEN_TTL"` // e.g. 7d

	RefreshTransport  string `mapstructure:"REFRESH_TRANSPORT"` // cookie | body
	RefreshCookieName string `mapstructure:"REFRESH_COOKIE_NAME"`
	CookieDomain      string `mapstructure:"COOKIE_DOMAIN"`
	SecureCookies     bool   `mapstructure:"SECURE_COOKIES"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	Argon2MemoryKB int `mapstructure:"ARGON2_MEMORY_KB"`
	Argon2Time     int `mapstructure:"ARGON2_TIME"`
	Argon2Threads  int `mapstructure:"ARGON2_THREADS"`

	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"` // empty disables event publishing
	AuditConsumerEnabled bool   `mapstructure:"AUDIT_CONSUMER_ENABLED"`
	AuditLogPath         string `mapstructure:"AUDIT_LOG_PATH"`

	OtelEnabled       bool    `mapstructure:"OTEL_ENABLED"`
	OtelCollectorAddr string  `mapstructure:"OTEL_COLLECTOR_ADDR"`
	OtelSampleRatio   float64 `mapstructure:"OTEL_SAMPLE_RATIO"`

	Redis     RedisConfig     `mapstructure:",squash"`
	RateLimit RateLimitConfig `mapstructure:",squash"`

	AccessTTL  time.Duration `mapstructure:"-"`
	RefreshTTL time.Duration `mapstructure:"-"`
}

// Load reads .env (if present) into the process environment, then builds the
// Config through viper and validates it. A missing .env is not an error.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads the same sources as Load but only checks the MySQL
// connection settings. The migration tool uses it so it can run without
// signing keys.
func LoadDatabase() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" {
		return nil, errors.New("config: DB_USER, DB_HOST and DB_NAME are required")
	}
	return cfg, nil
}

func read() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.RateLimit.normalize()
	return &cfg, nil
}

// Every key must have a default, otherwise viper's Unmarshal never looks it
// up in the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORE_DRIVER", StoreMySQL)
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASS", "")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "authsession")
	v.SetDefault("JWT_AUDIENCE", "web")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "7d")

	v.SetDefault("REFRESH_TRANSPORT", TransportCookie)
	v.SetDefault("REFRESH_COOKIE_NAME", "refresh_token")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("SECURE_COOKIES", true)

	v.SetDefault("REQUEST_TIMEOUT", "5s")

	v.SetDefault("ARGON2_MEMORY_KB", 64*1024)
	v.SetDefault("ARGON2_TIME", 1)
	v.SetDefault("ARGON2_THREADS", 2)

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("AUDIT_CONSUMER_ENABLED", false)
	v.SetDefault("AUDIT_LOG_PATH", "logs/auth-audit.log")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	setRedisDefaults(v)
	setRateLimitDefaults(v)
}

// Validate checks required values and parses the token TTLs. Malformed TTLs
// are rejected here so a bad deployment fails at startup.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretBytes))
	}
	if strings.TrimSpace(c.JWTIssuer) == "" || strings.TrimSpace(c.JWTAudience) == "" {
		errs = append(errs, errors.New("JWT_ISSUER and JWT_AUDIENCE must be set"))
	}

	access, err := utils.ParseTTL(c.AccessTTLRaw)
	if err != nil {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err))
	}
	refresh, err := utils.ParseTTL(c.RefreshTTLRaw)
	if err != nil {
		errs = append(errs, fmt.Errorf("REFRESH_TOKEN_TTL: %w", err))
	}
	if access > 0 && refresh > 0 && refresh <= access {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL"))
	}
	c.AccessTTL, c.RefreshTTL = access, refresh

	switch c.StoreDriver {
	case StoreMySQL:
		if c.DBUser == "" || c.DBHost == "" || c.DBName == "" {
			errs = append(errs, errors.New("DB_USER, DB_HOST and DB_NAME are required for the mysql store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMySQL, StoreMemory, c.StoreDriver))
	}

	switch c.RefreshTransport {
	case TransportCookie:
		if c.RefreshCookieName == "" {
			errs = append(errs, errors.New("REFRESH_COOKIE_NAME must be set for cookie transport"))
		}
	case TransportBody:
	default:
		errs = append(errs, fmt.Errorf("REFRESH_TRANSPORT must be %q or %q, got %q", TransportCookie, TransportBody, c.RefreshTransport))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.Argon2MemoryKB < 8*1024 || c.Argon2Time < 1 || c.Argon2Threads < 1 || c.Argon2Threads > 255 {
		errs = append(errs, errors.New("ARGON2_* parameters out of range (memory >= 8192 KB, time >= 1, threads 1..255)"))
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATIO must be within [0, 1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Argon2 returns the hashing parameters configured for new password hashes.
func (c *Config) Argon2() utils.Argon2Params {
	p := utils.DefaultArgon2Params()
	p.Memory = uint32(c.Argon2MemoryKB)
	p.Time = uint32(c.Argon2Time)
	p.Threads = uint8(c.Argon2Threads)
	return p
}
