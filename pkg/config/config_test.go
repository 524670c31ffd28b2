package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
environment: test
server:
  port: 9090
  read_timeout: 5s
  write_timeout: 5s
  shutdown_timeout: 10s
log:
  level: debug
  format: console
  output: stdout
engine:
  default_timeframe: 1m
  timeframes: [1m, 5m]
  stats_interval: 30s
kafka:
  brokers: ["localhost:9092"]
  ticks_topic: market.ticks
  candles_topic: market.candles
  consumer:
    enabled: true
    group_id: candlestream
stream:
  enabled: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Engine.StatsInterval)
	assert.Equal(t, []string{"1m", "5m"}, cfg.Engine.Timeframes)
	assert.Equal(t, "market.ticks", cfg.Kafka.TicksTopic)
	assert.True(t, cfg.Kafka.Consumer.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
kafka:
  brokers: ["localhost:9092"]
  ticks_topic: t
  consumer:
    enabled: true
`))
	assert.ErrorContains(t, err, "environment")
}

func TestValidateRequiresTickSource(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
kafka:
  consumer:
    enabled: false
stream:
  enabled: false
`))
	assert.ErrorContains(t, err, "tick source")
}

func TestValidateRequiresBrokersForConsumer(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
kafka:
  ticks_topic: t
  consumer:
    enabled: true
`))
	assert.ErrorContains(t, err, "brokers")
}

func TestValidateRequiresSymbolsForStream(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
stream:
  enabled: true
`))
	assert.ErrorContains(t, err, "symbols")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("KAFKA_TICKS_TOPIC", "override.ticks")
	t.Setenv("SYMBOLS", "BINANCE:ETHUSDT")
	t.Setenv("REDIS_ADDR", "redis-1:6380")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "override.ticks", cfg.Kafka.TicksTopic)
	assert.Equal(t, []string{"BINANCE:ETHUSDT"}, cfg.Stream.Symbols)
	assert.Equal(t, []string{"BINANCE:ETHUSDT"}, cfg.Broadcast.Instruments)
	assert.Equal(t, "redis-1", cfg.Cache.Host)
	assert.Equal(t, 6380, cfg.Cache.Port)
}

func TestLoadWithEnvBadPortKeepsYAMLValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
}
