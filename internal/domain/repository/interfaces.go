package repository

import (
	"context"

	"github.com/buckstrdr/candlestream/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher egresses finalized candle events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, c *models.Candlestick) error
	PublishBatch(ctx context.Context, candles []*models.Candlestick) error
	Close() error
}

type Metrics interface {
	RecordTick(instrument string)
	RecordCandle(instrument, timeframe string, closed bool)
	RecordError(kind string)
	RecordLastPrice(instrument string, price float64)
	RecordLatency(op string, seconds float64)
	RecordEngineStats(s models.EngineStats)
}
