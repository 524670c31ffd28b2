package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatestKeyShape(t *testing.T) {
	assert.Equal(t, "candle:latest:BTCUSDT:1m", latestKey("BTCUSDT", "1m"))
	assert.Equal(t, "candle:latest:ETHUSDT:4h", latestKey("ETHUSDT", "4h"))
}

func TestLatestPatternScopesOneInstrument(t *testing.T) {
	assert.Equal(t, "candle:latest:BTCUSDT:*", latestPattern("BTCUSDT"))
}
