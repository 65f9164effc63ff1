package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/cnts-messaging-svc/core/config"
)

// Each test uses its own config type: values are cached per type for the
// lifetime of the process, so sharing a type across tests would leak state.

func TestLoad_Defaults(t *testing.T) {
	type defaultsConfig struct {
		Name    string        `env:"CFG_TEST_DEFAULTS_NAME" envDefault:"fallback"`
		Timeout time.Duration `env:"CFG_TEST_DEFAULTS_TIMEOUT" envDefault:"15s"`
		Port    int           `env:"CFG_TEST_DEFAULTS_PORT" envDefault:"8080"`
	}

	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "fallback", cfg.Name)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_FromEnvironment(t *testing.T) {
	type envConfig struct {
		Name    string        `env:"CFG_TEST_ENV_NAME" envDefault:"fallback"`
		Timeout time.Duration `env:"CFG_TEST_ENV_TIMEOUT" envDefault:"15s"`
	}

	t.Setenv("CFG_TEST_ENV_NAME", "from-env")
	t.Setenv("CFG_TEST_ENV_TIMEOUT", "250ms")

	var cfg envConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}

func TestLoad_RequiredMissing(t *testing.T) {
	type requiredConfig struct {
		Secret string `env:"CFG_TEST_REQUIRED_SECRET,required"`
	}

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CFG_TEST_REQUIRED_SECRET")
}

func TestLoad_CachesPerType(t *testing.T) {
	type cachedConfig struct {
		Value string `env:"CFG_TEST_CACHED_VALUE" envDefault:"initial"`
	}

	t.Setenv("CFG_TEST_CACHED_VALUE", "first")

	var first cachedConfig
	require.NoError(t, config.Load(&first))
	require.Equal(t, "first", first.Value)

	// A later environment change must not leak into an already-parsed type.
	t.Setenv("CFG_TEST_CACHED_VALUE", "second")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)
}

func TestLoad_NilTarget(t *testing.T) {
	var cfg *struct{}
	assert.Error(t, config.Load(cfg))
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	type mustConfig struct {
		Secret string `env:"CFG_TEST_MUST_SECRET,required"`
	}

	assert.Panics(t, func() {
		var cfg mustConfig
		config.MustLoad(&cfg)
	})
}
