// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081", AML operations surface
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 15s
	AllowedHosts         []string      // Host header allow-list; empty = allow all
	BackofficeAllowedIPs []string      // IP allow-list for the backoffice; empty = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// CacheConfig holds Redis and in-process cache settings.
type CacheConfig struct {
	RedisURL   string        // e.g. "redis://localhost:6379/0"
	L1Size     int           // bounded LRU entries, default 5000
	WalletTTL  time.Duration // default 60s
	PlayerTTL  time.Duration // default 600s
	GameListTTL time.Duration // default 1800s
	GameStateTTL time.Duration // default 30s
	DefaultTTL time.Duration // default 300s
	HMACKey    []byte        // integrity key for cached balances; must be set
}

// JWTConfig holds bearer token signing settings.
type JWTConfig struct {
	Secret    string        // must be set
	Algorithm string        // default "HS256"; HMAC family only
	TTL       time.Duration // default 24h
}

// AuthConfig holds the operator bootstrap credentials.
type AuthConfig struct {
	CasinoKey string // path segment the operator must present
	APIToken  string // path segment the operator must present
}

// SecurityConfig holds at-rest encryption settings.
type SecurityConfig struct {
	EncryptionKey []byte // 32 bytes, decoded from base64; must be set
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Cache    CacheConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Security SecurityConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation errors encountered, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if !strings.HasPrefix(c.JWT.Algorithm, "HS") {
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be an HMAC variant, got %q", c.JWT.Algorithm))
	}

	if len(c.Cache.HMACKey) == 0 {
		errs = append(errs, errors.New("CACHE_HMAC_KEY must be set"))
	}

	if len(c.Security.EncryptionKey) != 32 {
		errs = append(errs, fmt.Errorf(
			"ENCRYPTION_KEY must decode to 32 bytes, got %d", len(c.Security.EncryptionKey)))
	}

	if c.IsProd() {
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set in production"))
		}
		if c.Auth.CasinoKey == "" || c.Auth.APIToken == "" {
			errs = append(errs, errors.New("CASINO_KEY and API_TOKEN must be set in production"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		AllowedHosts:         splitList(os.Getenv("ALLOWED_HOSTS")),
		BackofficeAllowedIPs: splitList(os.Getenv("BACKOFFICE_ALLOWED_IPS")),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "casino_core"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	l1Size, err := getInt("CACHE_L1_SIZE", 5000)
	if err != nil {
		return nil, fmt.Errorf("CACHE_L1_SIZE: %w", err)
	}
	cfg.Cache = CacheConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		L1Size:       l1Size,
		WalletTTL:    getDuration("CACHE_WALLET_TTL", 60*time.Second),
		PlayerTTL:    getDuration("CACHE_PLAYER_TTL", 600*time.Second),
		GameListTTL:  getDuration("CACHE_GAME_LIST_TTL", 1800*time.Second),
		GameStateTTL: getDuration("CACHE_GAME_STATE_TTL", 30*time.Second),
		DefaultTTL:   getDuration("CACHE_DEFAULT_TTL", 300*time.Second),
		HMACKey:      []byte(getEnv("CACHE_HMAC_KEY", "")),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		Secret:    getEnv("JWT_SECRET", ""),
		Algorithm: getEnv("JWT_ALGORITHM", "HS256"),
		TTL:       getDuration("JWT_TTL", 24*time.Hour),
	}

	// ── Auth bootstrap credentials ────────────────────────────────────────────
	cfg.Auth = AuthConfig{
		CasinoKey: getEnv("CASINO_KEY", "testcasino"),
		APIToken:  getEnv("API_TOKEN", "testtoken"),
	}

	// ── Security ──────────────────────────────────────────────────────────────
	if enc := os.Getenv("ENCRYPTION_KEY"); enc != "" {
		key, decErr := base64.StdEncoding.DecodeString(enc)
		if decErr != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY: not valid base64: %w", decErr)
		}
		cfg.Security.EncryptionKey = key
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or unparsable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitList splits a comma-separated env value into trimmed non-empty items.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
