package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/pkg/config"
)

func TestProvideTimeframesExplicitList(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Timeframes = []string{"1m", "5m"}

	tfs, err := ProvideTimeframes(cfg)
	require.NoError(t, err)
	assert.Equal(t, []repository.Timeframe{repository.TF1m, repository.TF5m}, tfs)
}

func TestProvideTimeframesHonorsConfiguredDefault(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.DefaultTimeframe = "5m"

	tfs, err := ProvideTimeframes(cfg)
	require.NoError(t, err)
	assert.Equal(t, []repository.Timeframe{repository.TF5m}, tfs)
}

func TestProvideTimeframesBuiltinDefault(t *testing.T) {
	tfs, err := ProvideTimeframes(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, []repository.Timeframe{repository.DefaultTimeframe()}, tfs)
}

func TestProvideTimeframesRejectsUnknownDefault(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.DefaultTimeframe = "7m"

	_, err := ProvideTimeframes(cfg)
	assert.ErrorContains(t, err, "default_timeframe")
}

func TestProvideTimeframesRejectsUnknownEntry(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Timeframes = []string{"1m", "2m"}

	_, err := ProvideTimeframes(cfg)
	assert.ErrorContains(t, err, "unknown timeframe")
}
