package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port       int      `env:"TEST_CFG_PORT" envDefault:"8080"`
	StorageKey string   `env:"TEST_CFG_STORAGE_KEY" envDefault:"@test:products"`
	Debug      bool     `env:"TEST_CFG_DEBUG" envDefault:"false"`
	Backends   []string `env:"TEST_CFG_BACKENDS" envDefault:"redis" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "@test:products", cfg.StorageKey)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"redis"}, cfg.Backends)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_STORAGE_KEY", "@other:products")
	t.Setenv("TEST_CFG_DEBUG", "true")
	t.Setenv("TEST_CFG_BACKENDS", "redis,postgres")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "@other:products", cfg.StorageKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"redis", "postgres"}, cfg.Backends)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type requiredConfig struct {
	Addr string `env:"TEST_CFG_ADDR,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadFrom_IgnoresProcessEnvironment(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "1111")

	var cfg testConfig
	require.NoError(t, LoadFrom(&cfg, map[string]string{"TEST_CFG_DEBUG": "true"}))

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Debug)
}
