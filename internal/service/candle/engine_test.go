package candle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	"github.com/buckstrdr/candlestream/internal/domain/repository"
)

// recorder collects snapshots delivered to a subscription.
type recorder struct {
	mu    sync.Mutex
	snaps []models.Candlestick
}

func (r *recorder) callback(c models.Candlestick) error {
	r.mu.Lock()
	r.snaps = append(r.snaps, c)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []models.Candlestick {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Candlestick, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func (r *recorder) finalized() []models.Candlestick {
	var out []models.Candlestick
	for _, c := range r.all() {
		if c.Closed {
			out = append(out, c)
		}
	}
	return out
}

func tick(inst string, price, volume float64, ts int64) *models.Tick {
	return &models.Tick{Instrument: inst, Price: price, Volume: volume, Timestamp: ts}
}

// newTestEngine pins the clock inside the first test window so completion
// timers stay pending instead of firing mid-test.
func newTestEngine(opts ...Option) *Engine {
	args := append([]Option{WithClock(func() int64 { return 60_001 })}, opts...)
	return New(nil, args...)
}

func TestProcessTickLiveProgression(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	prices := []float64{10, 12, 9, 11}
	volumes := []float64{1, 2, 1, 3}
	base := int64(60_000)
	for i := range prices {
		require.NoError(t, e.ProcessTick(tick("BTCUSDT", prices[i], volumes[i], base+int64(i)*1000), repository.TF1m))
	}

	snaps := rec.all()
	require.Len(t, snaps, 4)
	for _, c := range snaps {
		assert.False(t, c.Closed)
		assert.Equal(t, int64(60_000), c.Start)
		assert.Equal(t, int64(120_000), c.End)
		assert.Equal(t, 10.0, c.Open)
	}
	last := snaps[3]
	assert.Equal(t, 12.0, last.High)
	assert.Equal(t, 9.0, last.Low)
	assert.Equal(t, 11.0, last.Close)
	assert.Equal(t, 7.0, last.Volume)
	assert.Equal(t, 4, last.Trades)
}

func TestProcessTickRolloverFinalizesPreviousWindow(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 60_000), repository.TF1m))
	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 11, 2, 119_999), repository.TF1m))
	// Straddles the boundary: finalizes [60000,120000), opens [120000,180000).
	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 12, 1, 120_000), repository.TF1m))

	finals := rec.finalized()
	require.Len(t, finals, 1)
	assert.Equal(t, int64(60_000), finals[0].Start)
	assert.Equal(t, 10.0, finals[0].Open)
	assert.Equal(t, 11.0, finals[0].Close)
	assert.Equal(t, 3.0, finals[0].Volume)

	cur, err := e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	require.NoError(t, err)
	assert.Equal(t, int64(120_000), cur.Start)
	assert.Equal(t, 12.0, cur.Open)
	assert.Equal(t, 1, cur.Trades)
}

func TestProcessTickFanOutAcrossTimeframes(t *testing.T) {
	e := newTestEngine()
	rec1m := &recorder{}
	rec5m := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec1m.callback)
	require.NoError(t, err)
	_, err = e.Subscribe("BTCUSDT", repository.TF5m, rec5m.callback)
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 90_000), repository.TF1m, repository.TF5m))

	require.Len(t, rec1m.all(), 1)
	require.Len(t, rec5m.all(), 1)
	assert.Equal(t, int64(60_000), rec1m.all()[0].Start)
	assert.Equal(t, int64(0), rec5m.all()[0].Start)

	s := e.Stats()
	assert.Equal(t, 1, s.InstrumentCount)
	assert.Equal(t, 2, s.BufferCount)
	assert.Equal(t, 2, s.TimerCount)
}

func TestProcessTickLateTickFoldsIntoActiveWindow(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 120_000), repository.TF1m))
	// Timestamp belongs to the previous window; it still lands in the active one.
	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 8, 1, 90_000), repository.TF1m))

	assert.Empty(t, rec.finalized())
	cur, err := e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	require.NoError(t, err)
	assert.Equal(t, int64(120_000), cur.Start)
	assert.Equal(t, 2, cur.Trades)
	assert.Equal(t, 8.0, cur.Low)
	assert.Equal(t, 8.0, cur.Close)
}

func TestProcessTickRejectsMalformedTicks(t *testing.T) {
	e := newTestEngine()

	cases := []struct {
		name string
		t    *models.Tick
	}{
		{"nil tick", nil},
		{"empty instrument", tick("", 10, 1, 1000)},
		{"zero price", tick("BTCUSDT", 0, 1, 1000)},
		{"negative price", tick("BTCUSDT", -5, 1, 1000)},
		{"negative volume", tick("BTCUSDT", 10, -1, 1000)},
		{"zero timestamp", tick("BTCUSDT", 10, 1, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, e.ProcessTick(tc.t, repository.TF1m))
		})
	}

	s := e.Stats()
	assert.Zero(t, s.BufferCount)
}

func TestProcessTickUnknownTimeframeRejectedIndividually(t *testing.T) {
	e := newTestEngine()

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 60_000), repository.TF1m, repository.Timeframe("7m")))

	_, err := e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	assert.NoError(t, err)
	_, err = e.GetCurrentCandle("BTCUSDT", repository.Timeframe("7m"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessTickDefaultsToDefaultTimeframe(t *testing.T) {
	e := newTestEngine()

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 60_000)))

	_, err := e.GetCurrentCandle("BTCUSDT", repository.DefaultTimeframe())
	assert.NoError(t, err)
}

func TestSubscribeValidatesKey(t *testing.T) {
	e := newTestEngine()

	_, err := e.Subscribe("", repository.TF1m, func(models.Candlestick) error { return nil })
	assert.Error(t, err)
	_, err = e.Subscribe("BTCUSDT", repository.Timeframe("9m"), func(models.Candlestick) error { return nil })
	assert.Error(t, err)
}

func TestExpireFinalizesActiveWindowExactlyOnce(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 2, 60_000), repository.TF1m))
	k := key{Instrument: "BTCUSDT", Timeframe: repository.TF1m}

	e.expire(k, 60_000)

	finals := rec.finalized()
	require.Len(t, finals, 1)
	assert.Equal(t, int64(60_000), finals[0].Start)
	assert.Equal(t, 10.0, finals[0].Close)
	assert.Equal(t, 2.0, finals[0].Volume)

	// The window is gone; a second fire for the same start is a no-op.
	e.expire(k, 60_000)
	assert.Len(t, rec.finalized(), 1)

	_, err = e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireStaleWindowIsNoOp(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	// Window [120000,180000) is active; a timer for an older window fires late.
	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 120_000), repository.TF1m))
	e.expire(key{Instrument: "BTCUSDT", Timeframe: repository.TF1m}, 60_000)

	assert.Empty(t, rec.finalized())
	_, err = e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	assert.NoError(t, err)
}

func TestExpireEmptyWarmUpWindowEmitsNothing(t *testing.T) {
	clock := int64(60_500)
	e := New(nil, WithClock(func() int64 { return clock }))
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.WarmUp("BTCUSDT", repository.TF1m))
	assert.Equal(t, 1, e.Stats().BufferCount)

	e.expire(key{Instrument: "BTCUSDT", Timeframe: repository.TF1m}, 60_000)

	assert.Empty(t, rec.all())
	assert.Zero(t, e.Stats().BufferCount)
}

func TestCompletionTimerFiresOnWallClock(t *testing.T) {
	// Pin the clock 50ms before the window end so the real timer fires fast.
	start, end := ResolveWindow(time.Now().UnixMilli(), 60_000)
	e := New(nil, WithClock(func() int64 { return end - 50 }))
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, start+1), repository.TF1m))

	require.Eventually(t, func() bool {
		return len(rec.finalized()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	finals := rec.finalized()
	assert.Equal(t, start, finals[0].Start)
	assert.Zero(t, e.Stats().BufferCount)
	assert.Zero(t, e.Stats().TimerCount)
}

func TestWarmUpIsIdempotentAndSilent(t *testing.T) {
	clock := int64(60_500)
	e := New(nil, WithClock(func() int64 { return clock }))
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.WarmUp("BTCUSDT", repository.TF1m))
	require.NoError(t, e.WarmUp("BTCUSDT", repository.TF1m))

	assert.Empty(t, rec.all())
	s := e.Stats()
	assert.Equal(t, 1, s.BufferCount)
	assert.Equal(t, 1, s.TimerCount)

	_, err = e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, e.WarmUp("BTCUSDT", repository.Timeframe("2w")))
}

func TestGetHistoricalCandlesReturnsAtMostLive(t *testing.T) {
	e := newTestEngine()

	assert.Empty(t, e.GetHistoricalCandles("BTCUSDT", repository.TF1m, 100))

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 60_000), repository.TF1m))
	assert.Len(t, e.GetHistoricalCandles("BTCUSDT", repository.TF1m, 100), 1)
	assert.Empty(t, e.GetHistoricalCandles("BTCUSDT", repository.TF1m, 0))
}

func TestClearInstrumentDropsStateAndSubscriptions(t *testing.T) {
	e := newTestEngine()
	rec := &recorder{}
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, rec.callback)
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 60_000), repository.TF1m))
	require.NoError(t, e.ProcessTick(tick("ETHUSDT", 20, 1, 60_000), repository.TF1m))

	e.ClearInstrument("BTCUSDT")

	_, err = e.GetCurrentCandle("BTCUSDT", repository.TF1m)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.GetCurrentCandle("ETHUSDT", repository.TF1m)
	assert.NoError(t, err)

	before := len(rec.all())
	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 11, 1, 61_000), repository.TF1m))
	assert.Len(t, rec.all(), before)
}

func TestClearAllResetsStats(t *testing.T) {
	e := newTestEngine()
	_, err := e.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error { return nil })
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(tick("BTCUSDT", 10, 1, 60_000), repository.TF1m, repository.TF5m))
	require.NoError(t, e.ProcessTick(tick("ETHUSDT", 20, 1, 60_000), repository.TF1m))

	e.ClearAll()

	s := e.Stats()
	assert.Zero(t, s.InstrumentCount)
	assert.Zero(t, s.BufferCount)
	assert.Zero(t, s.TimerCount)
	assert.Zero(t, s.CallbackCount)
}
