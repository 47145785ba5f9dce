package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(KeyJWTSecret, testSecret)
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, "8008", cfg.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, 30*time.Second, cfg.Cache.ShortTTL)
	require.Equal(t, 10*time.Minute, cfg.Cache.LongTTL)
	require.Equal(t, 5*time.Minute, cfg.Cache.APITTL)
	require.True(t, cfg.Cache.SingleFlight)
	require.Equal(t, "https://api.coingecko.com/api/v3", cfg.Upstream.CoinGeckoURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(KeyPort, "9090")
	t.Setenv(KeyShortTTL, "5s")
	t.Setenv(KeyAdminAuth, "false")
	t.Setenv(KeyCoinGeckoURL, "http://localhost:1234/")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 5*time.Second, cfg.Cache.ShortTTL)
	require.False(t, cfg.Auth.Enabled)
	require.Equal(t, "http://localhost:1234", cfg.Upstream.CoinGeckoURL)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv(KeyJWTSecret, testSecret)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CACHE_MAX_ENTRIES=42\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(KeyMaxEntries) })

	cfg, err := Load(viper.New(), path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Cache.MaxEntries)
}

func TestLoad_RejectsNegativeTTL(t *testing.T) {
	t.Setenv(KeyJWTSecret, testSecret)
	t.Setenv(KeyAPITTL, "-1s")
	_, err := Load(viper.New())
	require.Error(t, err)
}

func TestLoad_AuthNeedsSecret(t *testing.T) {
	_, err := Load(viper.New())
	require.ErrorContains(t, err, KeyJWTSecret)

	t.Setenv(KeyJWTSecret, "short")
	_, err = Load(viper.New())
	require.ErrorContains(t, err, KeyJWTSecret)

	t.Setenv(KeyJWTSecret, testSecret)
	_, err = Load(viper.New())
	require.NoError(t, err)

	// without operator auth no secret is needed
	t.Setenv(KeyJWTSecret, "")
	t.Setenv(KeyAdminAuth, "false")
	_, err = Load(viper.New())
	require.NoError(t, err)
}
