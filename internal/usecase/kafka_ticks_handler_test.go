package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	drepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
	applogger "github.com/buckstrdr/candlestream/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

// fakeMetrics counts recorder calls by label.
type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: make(map[string]int)}
}

func (f *fakeMetrics) RecordTick(string)                  {}
func (f *fakeMetrics) RecordCandle(string, string, bool)  {}
func (f *fakeMetrics) RecordLastPrice(string, float64)    {}
func (f *fakeMetrics) RecordLatency(string, float64)      {}
func (f *fakeMetrics) RecordEngineStats(models.EngineStats) {}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	f.errors[kind]++
	f.mu.Unlock()
}

func (f *fakeMetrics) errorCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[kind]
}

// testEngine pins the clock inside the first test window so completion timers
// stay pending instead of firing mid-test.
func testEngine() *candle.Engine {
	return candle.New(nil, candle.WithClock(func() int64 { return 60_001 }))
}

func newTestHandler(t *testing.T, tfs ...drepo.Timeframe) (*KafkaTicksHandler, *candle.Engine, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	engine := testEngine()
	proc := NewTickProcessor(engine, m, tfs)
	return NewKafkaTicksHandler("market.ticks", proc, m), engine, m
}

func TestKafkaTicksHandlerTopic(t *testing.T) {
	h, _, _ := newTestHandler(t)
	assert.Equal(t, "market.ticks", h.Topic())
}

func TestKafkaTicksHandlerFeedsEngine(t *testing.T) {
	h, engine, _ := newTestHandler(t, drepo.TF1m)

	msg := []byte(`{"instrument":"BTCUSDT","price":100.5,"volume":2,"timestamp":60000}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	c, err := engine.GetCurrentCandle("BTCUSDT", drepo.TF1m)
	require.NoError(t, err)
	assert.Equal(t, 100.5, c.Open)
	assert.Equal(t, 2.0, c.Volume)
	assert.Equal(t, int64(60_000), c.Start)
}

func TestKafkaTicksHandlerTimeframeOverride(t *testing.T) {
	h, engine, _ := newTestHandler(t, drepo.TF1m)

	msg := []byte(`{"instrument":"BTCUSDT","price":100,"volume":1,"timestamp":60000,"timeframes":["5m"]}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	_, err := engine.GetCurrentCandle("BTCUSDT", drepo.TF5m)
	assert.NoError(t, err)
	_, err = engine.GetCurrentCandle("BTCUSDT", drepo.TF1m)
	assert.ErrorIs(t, err, candle.ErrNotFound)
}

func TestKafkaTicksHandlerRejectsMalformedJSON(t *testing.T) {
	h, _, m := newTestHandler(t)

	assert.Error(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.Equal(t, 1, m.errorCount("consumer_unmarshal"))
}

func TestKafkaTicksHandlerRejectsInvalidPayload(t *testing.T) {
	h, _, m := newTestHandler(t)

	cases := []struct {
		name string
		msg  string
	}{
		{"missing instrument", `{"price":10,"volume":1,"timestamp":60000}`},
		{"zero price", `{"instrument":"BTCUSDT","price":0,"volume":1,"timestamp":60000}`},
		{"negative volume", `{"instrument":"BTCUSDT","price":10,"volume":-1,"timestamp":60000}`},
		{"missing timestamp", `{"instrument":"BTCUSDT","price":10,"volume":1}`},
		{"bad side", `{"instrument":"BTCUSDT","price":10,"volume":1,"timestamp":60000,"side":"hold"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, h.Handle(context.Background(), []byte(tc.msg)))
		})
	}
	assert.Equal(t, len(cases), m.errorCount("consumer_validate"))
}

func TestTickProcessorDefaultsTimeframes(t *testing.T) {
	m := newFakeMetrics()
	engine := testEngine()
	proc := NewTickProcessor(engine, m, nil)

	assert.Equal(t, []drepo.Timeframe{drepo.DefaultTimeframe()}, proc.Timeframes())

	err := proc.Process(context.Background(), &models.Tick{
		Instrument: "BTCUSDT", Price: 10, Volume: 1, Timestamp: 60_000,
	})
	require.NoError(t, err)

	_, err = engine.GetCurrentCandle("BTCUSDT", drepo.DefaultTimeframe())
	assert.NoError(t, err)
}

func TestTickProcessorRejectsNilTick(t *testing.T) {
	m := newFakeMetrics()
	proc := NewTickProcessor(testEngine(), m, nil)
	assert.Error(t, proc.Process(context.Background(), nil))
}
