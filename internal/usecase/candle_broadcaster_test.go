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
)

type capturePublisher struct {
	mu      sync.Mutex
	candles []*models.Candlestick
}

func (p *capturePublisher) Publish(_ context.Context, c *models.Candlestick) error {
	p.mu.Lock()
	p.candles = append(p.candles, c)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) PublishBatch(ctx context.Context, cs []*models.Candlestick) error {
	for _, c := range cs {
		if err := p.Publish(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published() []*models.Candlestick {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Candlestick, len(p.candles))
	copy(out, p.candles)
	return out
}

func TestBroadcasterPublishesOnlyFinalizedCandles(t *testing.T) {
	// Pin the clock so warm-up arms the same window the test ticks land in.
	engine := candle.New(nil, candle.WithClock(func() int64 { return 60_500 }))
	pub := &capturePublisher{}
	b := NewCandleBroadcaster(engine, pub, nil, newFakeMetrics(), testLogger(t))

	require.NoError(t, b.Start(context.Background(), []string{"BTCUSDT"}, []drepo.Timeframe{drepo.TF1m}))
	defer b.Stop()

	require.NoError(t, engine.ProcessTick(&models.Tick{Instrument: "BTCUSDT", Price: 10, Volume: 1, Timestamp: 60_000}, drepo.TF1m))
	require.NoError(t, engine.ProcessTick(&models.Tick{Instrument: "BTCUSDT", Price: 11, Volume: 1, Timestamp: 61_000}, drepo.TF1m))
	assert.Empty(t, pub.published())

	require.NoError(t, engine.ProcessTick(&models.Tick{Instrument: "BTCUSDT", Price: 12, Volume: 1, Timestamp: 120_000}, drepo.TF1m))

	got := pub.published()
	require.Len(t, got, 1)
	assert.True(t, got[0].Closed)
	assert.Equal(t, int64(60_000), got[0].Start)
	assert.Equal(t, 11.0, got[0].Close)
}

func TestBroadcasterStopEndsDelivery(t *testing.T) {
	engine := candle.New(nil, candle.WithClock(func() int64 { return 60_500 }))
	pub := &capturePublisher{}
	b := NewCandleBroadcaster(engine, pub, nil, newFakeMetrics(), testLogger(t))

	require.NoError(t, b.Start(context.Background(), []string{"BTCUSDT"}, []drepo.Timeframe{drepo.TF1m}))
	b.Stop()

	require.NoError(t, engine.ProcessTick(&models.Tick{Instrument: "BTCUSDT", Price: 10, Volume: 1, Timestamp: 60_000}, drepo.TF1m))
	require.NoError(t, engine.ProcessTick(&models.Tick{Instrument: "BTCUSDT", Price: 12, Volume: 1, Timestamp: 120_000}, drepo.TF1m))

	assert.Empty(t, pub.published())
}

func TestBroadcasterRejectsInvalidSubscription(t *testing.T) {
	engine := candle.New(nil)
	b := NewCandleBroadcaster(engine, &capturePublisher{}, nil, newFakeMetrics(), testLogger(t))

	err := b.Start(context.Background(), []string{""}, []drepo.Timeframe{drepo.TF1m})
	assert.Error(t, err)
}
