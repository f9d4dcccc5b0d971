package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Backend names accepted by the *_BACKEND settings
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

const minSecretLength = 32

// DevJWTSecret signs tokens when JWT_SECRET is unset outside production
const DevJWTSecret = "dev_secret_change_me_dev_secret_change_me"

type Config struct {
	Env  string
	Port int

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the remote address is always the client.
	TrustedProxies []string

	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Events    EventsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig controls the challenge message and its lifetime
type AuthConfig struct {
	Domain       string
	Product      string
	ChallengeTTL time.Duration
}

type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

type JWTConfig struct {
	Secret              string
	Issuer              string
	Audience            string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RevokeFamilyOnReuse bool
}

// StorageConfig picks where ephemeral state (nonces, rate limits) and refresh sessions live
type StorageConfig struct {
	EphemeralBackend string
	SessionBackend   string
	UsersBackend     string
}

type RedisConfig struct {
	URL string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	AutoMigrate  bool
}

type EventsConfig struct {
	Backend     string
	TopicPrefix string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.TrustedProxies = splitList(v.GetString("TRUSTED_PROXIES"))

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{
		Domain:       v.GetString("AUTH_DOMAIN"),
		Product:      v.GetString("AUTH_PRODUCT"),
		ChallengeTTL: parseDuration(v.GetString("CHALLENGE_TTL"), 5*time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		Window: parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
		Max:    v.GetInt("RATE_LIMIT_MAX"),
	}

	secret := v.GetString("JWT_SECRET")
	if secret == "" && cfg.Env != EnvProduction {
		secret = DevJWTSecret
	}

	cfg.JWT = JWTConfig{
		Secret:              secret,
		Issuer:              v.GetString("JWT_ISSUER"),
		Audience:            v.GetString("JWT_AUDIENCE"),
		AccessTTL:           parseDuration(v.GetString("ACCESS_TOKEN_TTL"), 15*time.Minute),
		RefreshTTL:          parseDuration(v.GetString("REFRESH_TOKEN_TTL"), 7*24*time.Hour),
		RevokeFamilyOnReuse: v.GetBool("REVOKE_FAMILY_ON_REUSE"),
	}

	cfg.Storage = StorageConfig{
		EphemeralBackend: strings.ToLower(v.GetString("EPHEMERAL_BACKEND")),
		SessionBackend:   strings.ToLower(v.GetString("SESSION_BACKEND")),
		UsersBackend:     strings.ToLower(v.GetString("USERS_BACKEND")),
	}

	cfg.Redis = RedisConfig{URL: v.GetString("REDIS_URL")}

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Events = EventsConfig{
		Backend:     strings.ToLower(v.GetString("EVENTS_BACKEND")),
		TopicPrefix: v.GetString("EVENTS_TOPIC_PREFIX"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == DevJWTSecret {
			return errors.New("JWT_SECRET must be set in production")
		}
		if len(c.JWT.Secret) < minSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minSecretLength)
		}
	}
	if c.Auth.Domain == "" {
		return errors.New("AUTH_DOMAIN is required")
	}

	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", proxy)
		}
	}

	if err := oneOf("EPHEMERAL_BACKEND", c.Storage.EphemeralBackend, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if err := oneOf("SESSION_BACKEND", c.Storage.SessionBackend, BackendMemory, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("USERS_BACKEND", c.Storage.UsersBackend, BackendMemory, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("EVENTS_BACKEND", c.Events.Backend, BackendNone, BackendRedis); err != nil {
		return err
	}

	if c.NeedsRedis() && c.Redis.URL == "" {
		return errors.New("REDIS_URL is required for the redis backends")
	}
	if c.NeedsPostgres() && c.Database.URL == "" {
		return errors.New("DATABASE_URL is required for the postgres backends")
	}

	return nil
}

// NeedsRedis reports whether any backend is Redis
func (c *Config) NeedsRedis() bool {
	return c.Storage.EphemeralBackend == BackendRedis ||
		c.Storage.SessionBackend == BackendRedis ||
		c.Events.Backend == BackendRedis
}

// NeedsPostgres reports whether any backend is Postgres
func (c *Config) NeedsPostgres() bool {
	return c.Storage.SessionBackend == BackendPostgres || c.Storage.UsersBackend == BackendPostgres
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 9000)
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUTH_DOMAIN", "localhost")
	v.SetDefault("AUTH_PRODUCT", "Stablecoin Payroll")
	v.SetDefault("CHALLENGE_TTL", "5m")

	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_MAX", 10)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "payroll-auth")
	v.SetDefault("JWT_AUDIENCE", "session:access")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("REVOKE_FAMILY_ON_REUSE", false)

	v.SetDefault("EPHEMERAL_BACKEND", BackendMemory)
	v.SetDefault("SESSION_BACKEND", BackendMemory)
	v.SetDefault("USERS_BACKEND", BackendMemory)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("EVENTS_BACKEND", BackendNone)
	v.SetDefault("EVENTS_TOPIC_PREFIX", "payroll-auth")
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
