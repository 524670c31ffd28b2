package repository

import (
	"context"
	"time"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	domrepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	pkgcache "github.com/buckstrdr/candlestream/pkg/cache"
	pkgkafka "github.com/buckstrdr/candlestream/pkg/kafka"
)

// KafkaPublisher implements Publisher for the candle egress topic. Messages
// are keyed by instrument so per-instrument ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, c *models.Candlestick) error {
	return p.producer.Publish(ctx, p.topic, []byte(c.Instrument), c)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, candles []*models.Candlestick) error {
	if len(candles) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(candles))
	for i, c := range candles {
		msgs[i] = pkgkafka.Message{Key: []byte(c.Instrument), Value: c}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// CandleCache keeps the most recent finalized snapshot per key in the cache
// layer for the status surface. Ephemeral last-value caching only; history
// retention stays out of scope.
type CandleCache struct {
	cache pkgcache.Service
	ttl   time.Duration
}

// NewCandleCache wraps a cache service; ttl bounds snapshot lifetime.
func NewCandleCache(cache pkgcache.Service, ttl time.Duration) *CandleCache {
	return &CandleCache{cache: cache, ttl: ttl}
}

const latestKeyPrefix = "candle:latest"

func latestKey(instrument, timeframe string) string {
	return pkgcache.GenerateKeyWithParams(latestKeyPrefix, instrument, timeframe)
}

func latestPattern(instrument string) string {
	return pkgcache.BuildPattern(pkgcache.GenerateKey(latestKeyPrefix, instrument) + ":")
}

// SetLatest stores a finalized candle as the latest snapshot for its key.
func (r *CandleCache) SetLatest(ctx context.Context, c *models.Candlestick) error {
	return r.cache.Set(ctx, latestKey(c.Instrument, string(c.Timeframe)), c, r.ttl)
}

// GetLatest returns the latest finalized candle, or ErrCacheMiss.
func (r *CandleCache) GetLatest(ctx context.Context, instrument string, timeframe string) (*models.Candlestick, error) {
	var c models.Candlestick
	if err := r.cache.Get(ctx, latestKey(instrument, timeframe), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteInstrument drops cached snapshots across all timeframes for one
// instrument.
func (r *CandleCache) DeleteInstrument(ctx context.Context, instrument string) error {
	return r.cache.DeleteByPattern(ctx, latestPattern(instrument))
}
