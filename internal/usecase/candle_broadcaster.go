package usecase

import (
	"context"
	"sync"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	drepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
	applogger "github.com/buckstrdr/candlestream/pkg/logger"
)

// CandleBroadcaster subscribes to a configured instrument and timeframe set
// and forwards finalized candles to the egress publisher. Live snapshots are
// delivered to subscribers only; the wire carries closed candles.
type CandleBroadcaster struct {
	engine    *candle.Engine
	publisher drepo.Publisher
	cache     *repository.CandleCache
	metrics   drepo.Metrics
	log       *applogger.Logger

	mu   sync.Mutex
	subs []*candle.Subscription
}

// NewCandleBroadcaster creates a broadcaster. Publisher and cache may be nil
// when the corresponding egress is disabled.
func NewCandleBroadcaster(engine *candle.Engine, publisher drepo.Publisher, cache *repository.CandleCache, metrics drepo.Metrics, log *applogger.Logger) *CandleBroadcaster {
	return &CandleBroadcaster{
		engine:    engine,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		log:       log,
	}
}

// Start registers subscriptions for every instrument and timeframe pair and
// warms up the current window so the first completion timer is already armed.
func (b *CandleBroadcaster) Start(ctx context.Context, instruments []string, timeframes []drepo.Timeframe) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, inst := range instruments {
		for _, tf := range timeframes {
			sub, err := b.engine.Subscribe(inst, tf, b.deliver(ctx))
			if err != nil {
				return err
			}
			b.subs = append(b.subs, sub)

			if err := b.engine.WarmUp(inst, tf); err != nil {
				b.log.Warn("broadcast warm up failed",
					applogger.String("instrument", inst),
					applogger.String("timeframe", string(tf)),
					applogger.Error(err))
			}
		}
	}

	b.log.Info("candle broadcaster started",
		applogger.Int("instruments", len(instruments)),
		applogger.Int("timeframes", len(timeframes)))
	return nil
}

func (b *CandleBroadcaster) deliver(ctx context.Context) candle.Callback {
	return func(c models.Candlestick) error {
		if !c.Closed {
			return nil
		}
		if b.publisher != nil {
			if err := b.publisher.Publish(ctx, &c); err != nil {
				if b.metrics != nil {
					b.metrics.RecordError("candle_publish")
				}
				return err
			}
		}
		if b.cache != nil {
			if err := b.cache.SetLatest(ctx, &c); err != nil {
				b.log.Warn("cache latest candle failed",
					applogger.String("instrument", c.Instrument),
					applogger.Error(err))
			}
		}
		return nil
	}
}

// Stop unsubscribes everything registered by Start.
func (b *CandleBroadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
	b.log.Info("candle broadcaster stopped")
}
