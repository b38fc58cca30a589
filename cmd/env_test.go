package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/config"
)

func TestRatesFromConfig_EmptyUsesDefaults(t *testing.T) {
	rates := ratesFromConfig(config.PricingConfig{})
	require.NotEmpty(t, rates.Anthropic)
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
}

func TestRatesFromConfig_Converts(t *testing.T) {
	rates := ratesFromConfig(config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"test-model": {
				Input:         1.5,
				Output:        6.0,
				BatchDiscount: 0.5,
				CacheWriteMul: 1.25,
				CacheReadMul:  0.1,
			},
		},
	})
	require.Len(t, rates.Anthropic, 1)
	r := rates.Anthropic["test-model"]
	assert.Equal(t, 1.5, r.Input)
	assert.Equal(t, 6.0, r.Output)
	assert.Equal(t, 0.5, r.BatchDiscount)
}

func TestBuildMapper_Defaults(t *testing.T) {
	cfg = &config.Config{}
	m, err := buildMapper()
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestBuildMapper_BadTableFile(t *testing.T) {
	cfg = &config.Config{}
	cfg.Corrector.TableFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := buildMapper()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load correction table")
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "test.db")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = &config.Config{}
	cfg.Store.Driver = "oracle"
	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitSalesforce_RequiresClientID(t *testing.T) {
	cfg = &config.Config{}
	_, err := initSalesforce()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client ID is required")
}
