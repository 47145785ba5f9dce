package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys understood by Load. Each can be set in the environment or a .env file.
const (
	KeyPort            = "PORT"
	KeyDatabasePath    = "DATABASE_PATH"
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogType         = "LOG_TYPE"
	KeyAdminAuth       = "ADMIN_AUTH"
	KeyAdminUsername   = "ADMIN_USERNAME"
	KeyAdminPassword   = "ADMIN_PASSWORD"
	KeyJWTSecret       = "JWT_SECRET"
	KeyJWTIssuer       = "JWT_ISSUER"
	KeyJWTAudience     = "JWT_AUDIENCE"
	KeyJWTTTL          = "JWT_TTL"
	KeyShortTTL        = "CACHE_SHORT_TTL"
	KeyLongTTL         = "CACHE_LONG_TTL"
	KeyAPITTL          = "CACHE_API_TTL"
	KeyMaxEntries      = "CACHE_MAX_ENTRIES"
	KeySingleFlight    = "CACHE_SINGLE_FLIGHT"
	KeyCleanupInterval = "CACHE_CLEANUP_INTERVAL"
	KeyUpstreamTimeout = "UPSTREAM_TIMEOUT"
	KeyUpstreamRetries = "UPSTREAM_RETRIES"
	KeyUpstreamBackoff = "UPSTREAM_BACKOFF"
	KeyCoinGeckoURL    = "COINGECKO_URL"
	KeyCoinGeckoKey    = "COINGECKO_API_KEY"
	KeyDexScreenerURL  = "DEXSCREENER_URL"
	KeyHolderscanURL   = "HOLDERSCAN_URL"
	KeyHolderscanKey   = "HOLDERSCAN_API_KEY"
	KeyLunarCrushURL   = "LUNARCRUSH_URL"
	KeyLunarCrushKey   = "LUNARCRUSH_API_KEY"
)

// MinJWTSecretLen matches the HS256 output size.
const MinJWTSecretLen = 32

type Auth struct {
	Enabled       bool
	AdminUsername string
	AdminPassword string
	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	JWTTTL        time.Duration
}

type Cache struct {
	ShortTTL        time.Duration
	LongTTL         time.Duration
	APITTL          time.Duration
	MaxEntries      int
	SingleFlight    bool
	CleanupInterval time.Duration
}

type Upstream struct {
	Timeout        time.Duration
	Retries        int
	Backoff        time.Duration
	CoinGeckoURL   string
	CoinGeckoKey   string
	DexScreenerURL string
	HolderscanURL  string
	HolderscanKey  string
	LunarCrushURL  string
	LunarCrushKey  string
}

// Config is the full server configuration.
type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string
	LogType      string
	Auth         Auth
	Cache        Cache
	Upstream     Upstream
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8008")
	v.SetDefault(KeyDatabasePath, "market-cache.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogType, "text")
	v.SetDefault(KeyAdminAuth, true)
	v.SetDefault(KeyAdminUsername, "admin")
	v.SetDefault(KeyAdminPassword, "")
	v.SetDefault(KeyJWTSecret, "")
	v.SetDefault(KeyJWTIssuer, "market-cache-api")
	v.SetDefault(KeyJWTAudience, "market-cache-operators")
	v.SetDefault(KeyJWTTTL, 24*time.Hour)
	v.SetDefault(KeyShortTTL, 30*time.Second)
	v.SetDefault(KeyLongTTL, 10*time.Minute)
	v.SetDefault(KeyAPITTL, 5*time.Minute)
	v.SetDefault(KeyMaxEntries, 2000)
	v.SetDefault(KeySingleFlight, true)
	v.SetDefault(KeyCleanupInterval, time.Minute)
	v.SetDefault(KeyUpstreamTimeout, 10*time.Second)
	v.SetDefault(KeyUpstreamRetries, 2)
	v.SetDefault(KeyUpstreamBackoff, time.Second)
	v.SetDefault(KeyCoinGeckoURL, "https://api.coingecko.com/api/v3")
	v.SetDefault(KeyCoinGeckoKey, "")
	v.SetDefault(KeyDexScreenerURL, "https://api.dexscreener.com")
	v.SetDefault(KeyHolderscanURL, "https://api.holderscan.com/v0")
	v.SetDefault(KeyHolderscanKey, "")
	v.SetDefault(KeyLunarCrushURL, "https://lunarcrush.com/api4/public")
	v.SetDefault(KeyLunarCrushKey, "")
}

// Load reads the given .env files (missing files are ignored) and the environment.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:         v.GetString(KeyPort),
		DatabasePath: v.GetString(KeyDatabasePath),
		LogLevel:     strings.ToLower(v.GetString(KeyLogLevel)),
		LogType:      strings.ToLower(v.GetString(KeyLogType)),
		Auth: Auth{
			Enabled:       v.GetBool(KeyAdminAuth),
			AdminUsername: v.GetString(KeyAdminUsername),
			AdminPassword: v.GetString(KeyAdminPassword),
			JWTSecret:     v.GetString(KeyJWTSecret),
			JWTIssuer:     v.GetString(KeyJWTIssuer),
			JWTAudience:   v.GetString(KeyJWTAudience),
			JWTTTL:        v.GetDuration(KeyJWTTTL),
		},
		Cache: Cache{
			ShortTTL:        v.GetDuration(KeyShortTTL),
			LongTTL:         v.GetDuration(KeyLongTTL),
			APITTL:          v.GetDuration(KeyAPITTL),
			MaxEntries:      v.GetInt(KeyMaxEntries),
			SingleFlight:    v.GetBool(KeySingleFlight),
			CleanupInterval: v.GetDuration(KeyCleanupInterval),
		},
		Upstream: Upstream{
			Timeout:        v.GetDuration(KeyUpstreamTimeout),
			Retries:        v.GetInt(KeyUpstreamRetries),
			Backoff:        v.GetDuration(KeyUpstreamBackoff),
			CoinGeckoURL:   strings.TrimRight(v.GetString(KeyCoinGeckoURL), "/"),
			CoinGeckoKey:   v.GetString(KeyCoinGeckoKey),
			DexScreenerURL: strings.TrimRight(v.GetString(KeyDexScreenerURL), "/"),
			HolderscanURL:  strings.TrimRight(v.GetString(KeyHolderscanURL), "/"),
			HolderscanKey:  v.GetString(KeyHolderscanKey),
			LunarCrushURL:  strings.TrimRight(v.GetString(KeyLunarCrushURL), "/"),
			LunarCrushKey:  v.GetString(KeyLunarCrushKey),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT is required")
	}
	for name, ttl := range map[string]time.Duration{
		KeyShortTTL: c.Cache.ShortTTL,
		KeyLongTTL:  c.Cache.LongTTL,
		KeyAPITTL:   c.Cache.APITTL,
	} {
		if ttl < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("config: %s must not be negative", KeyMaxEntries)
	}
	if c.Upstream.Retries < 0 {
		return fmt.Errorf("config: %s must not be negative", KeyUpstreamRetries)
	}
	if c.Auth.Enabled && len(c.Auth.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("config: %s of at least %d bytes is required when %s is on", KeyJWTSecret, MinJWTSecretLen, KeyAdminAuth)
	}
	return nil
}
