package candle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	"github.com/buckstrdr/candlestream/internal/domain/repository"
)

func TestResolveWindow(t *testing.T) {
	cases := []struct {
		name      string
		ts        int64
		duration  int64
		wantStart int64
		wantEnd   int64
	}{
		{"mid window", 90_500, 60_000, 60_000, 120_000},
		{"exact boundary", 120_000, 60_000, 120_000, 180_000},
		{"one before boundary", 119_999, 60_000, 60_000, 120_000},
		{"first window", 30_000, 60_000, 0, 60_000},
		{"hour window", 3_700_000, 3_600_000, 3_600_000, 7_200_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := ResolveWindow(tc.ts, tc.duration)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestBufferAbsorbSequence(t *testing.T) {
	k := key{Instrument: "BTCUSDT", Timeframe: repository.TF1m}
	b := newBuffer(k, 60_000, 120_000)

	prices := []float64{10, 12, 9, 11}
	volumes := []float64{1, 2, 1, 3}
	for i := range prices {
		b.Absorb(&models.Tick{
			Instrument: "BTCUSDT",
			Price:      prices[i],
			Volume:     volumes[i],
			Timestamp:  60_000 + int64(i)*1000,
		})
	}

	require.Equal(t, 4, b.Trades)
	assert.Equal(t, 10.0, b.Open)
	assert.Equal(t, 12.0, b.High)
	assert.Equal(t, 9.0, b.Low)
	assert.Equal(t, 11.0, b.Close)
	assert.Equal(t, 7.0, b.Volume)
	assert.Len(t, b.Ticks, 4)
}

func TestBufferFirstTickSetsAllPrices(t *testing.T) {
	b := newBuffer(key{Instrument: "ETHUSDT", Timeframe: repository.TF5m}, 0, 300_000)
	b.Absorb(&models.Tick{Instrument: "ETHUSDT", Price: 42.5, Volume: 0.5, Timestamp: 1000})

	assert.Equal(t, 42.5, b.Open)
	assert.Equal(t, 42.5, b.High)
	assert.Equal(t, 42.5, b.Low)
	assert.Equal(t, 42.5, b.Close)
}

func TestBufferZeroVolumeTickCountsAsTrade(t *testing.T) {
	b := newBuffer(key{Instrument: "BTCUSDT", Timeframe: repository.TF1m}, 0, 60_000)
	b.Absorb(&models.Tick{Instrument: "BTCUSDT", Price: 5, Volume: 0, Timestamp: 100})
	b.Absorb(&models.Tick{Instrument: "BTCUSDT", Price: 6, Volume: 0, Timestamp: 200})

	assert.Equal(t, 2, b.Trades)
	assert.Equal(t, 0.0, b.Volume)
	assert.Equal(t, 6.0, b.Close)
}

func TestSnapshotCarriesWindowAndState(t *testing.T) {
	b := newBuffer(key{Instrument: "BTCUSDT", Timeframe: repository.TF1m}, 60_000, 120_000)
	b.Absorb(&models.Tick{Instrument: "BTCUSDT", Price: 100, Volume: 2, Timestamp: 61_000})

	live := b.Snapshot(false)
	assert.False(t, live.Closed)
	assert.Equal(t, "BTCUSDT", live.Instrument)
	assert.Equal(t, "1m", live.Timeframe)
	assert.Equal(t, int64(60_000), live.Start)
	assert.Equal(t, int64(120_000), live.End)

	final := b.Snapshot(true)
	assert.True(t, final.Closed)
	assert.Equal(t, live.Open, final.Open)

	// Snapshots are values; mutating the buffer afterwards must not leak in.
	b.Absorb(&models.Tick{Instrument: "BTCUSDT", Price: 200, Volume: 1, Timestamp: 62_000})
	assert.Equal(t, 100.0, live.Close)
}
