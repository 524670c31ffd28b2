package di

import (
	"fmt"

	"github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/handler/api"
	mid "github.com/buckstrdr/candlestream/internal/middleware"
	internalrepo "github.com/buckstrdr/candlestream/internal/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
	"github.com/buckstrdr/candlestream/internal/service/marketdata"
	"github.com/buckstrdr/candlestream/internal/usecase"
	pkgcache "github.com/buckstrdr/candlestream/pkg/cache"
	"github.com/buckstrdr/candlestream/pkg/config"
	pkgkafka "github.com/buckstrdr/candlestream/pkg/kafka"
	applogger "github.com/buckstrdr/candlestream/pkg/logger"
	"github.com/buckstrdr/candlestream/pkg/metrics"
	"github.com/buckstrdr/candlestream/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTimeframes resolves the configured timeframe set. An empty set falls
// back to engine.default_timeframe, then to the built-in default. Unknown
// values are a startup error rather than a silent skip.
func ProvideTimeframes(cfg *config.Config) ([]repository.Timeframe, error) {
	def := repository.DefaultTimeframe()
	if cfg.Engine.DefaultTimeframe != "" {
		def = repository.Timeframe(cfg.Engine.DefaultTimeframe)
		if !repository.IsValidTimeframe(def) {
			return nil, fmt.Errorf("engine.default_timeframe: unknown timeframe %q", cfg.Engine.DefaultTimeframe)
		}
	}
	if len(cfg.Engine.Timeframes) == 0 {
		return []repository.Timeframe{def}, nil
	}
	tfs := make([]repository.Timeframe, 0, len(cfg.Engine.Timeframes))
	for _, s := range cfg.Engine.Timeframes {
		tf := repository.Timeframe(s)
		if !repository.IsValidTimeframe(tf) {
			return nil, fmt.Errorf("engine.timeframes: unknown timeframe %q", s)
		}
		tfs = append(tfs, tf)
	}
	return tfs, nil
}

// ProvideEngine creates the candle aggregation engine.
func ProvideEngine(l *applogger.Logger, m repository.Metrics) *candle.Engine {
	return candle.New(l, candle.WithMetrics(m))
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCandlePublisher creates the Kafka candle publisher, or nil when the
// candles topic is unset.
func ProvideCandlePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil || cfg.Kafka.CandlesTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.CandlesTopic)
}

// ProvideCandleCache creates the layered latest-candle cache, or nil when
// caching is disabled.
func ProvideCandleCache(cfg *config.Config) (*internalrepo.CandleCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Host),
		pkgcache.WithRedisPort(cfg.Cache.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Password),
		pkgcache.WithRedisDB(cfg.Cache.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	layered := pkgcache.NewLayeredCache(redisCache)
	return internalrepo.NewCandleCache(layered, cfg.Cache.TTL), nil
}

// ProvideMarketStream creates the WebSocket tick stream, or nil when the
// stream source is disabled.
func ProvideMarketStream(cfg *config.Config) repository.MarketStream {
	if !cfg.Stream.Enabled {
		return nil
	}
	return marketdata.New(
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(engine *candle.Engine, m repository.Metrics, tfs []repository.Timeframe) *usecase.TickProcessor {
	return usecase.NewTickProcessor(engine, m, tfs)
}

// ProvideTickCollector creates the stream tick collector, or nil when no
// stream is configured.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.TickProcessor,
	m repository.Metrics,
) *usecase.TickCollector {
	if stream == nil {
		return nil
	}
	pipe := mid.NewTickPipeline(processor, m,
		mid.WithMaxRPS(200),
		mid.WithBufferSize(4000),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when the consumer
// source is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler registers a handler for the ticks topic.
func ProvideKafkaTicksHandler(proc *usecase.TickProcessor, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, proc, m)
}

// ProvideBroadcaster creates the finalized-candle broadcaster, or nil when
// neither Kafka egress nor the cache is wired.
func ProvideBroadcaster(
	engine *candle.Engine,
	publisher repository.Publisher,
	cache *internalrepo.CandleCache,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.CandleBroadcaster {
	if publisher == nil && cache == nil {
		return nil
	}
	return usecase.NewCandleBroadcaster(engine, publisher, cache, m, l)
}

// ProvideCandlesUseCase creates the read-side use case.
func ProvideCandlesUseCase(engine *candle.Engine, cache *internalrepo.CandleCache) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(engine, cache)
}

// ProvideCandlesHandler creates the HTTP handler.
func ProvideCandlesHandler(l *applogger.Logger, candles *usecase.CandlesUseCase, engine *candle.Engine) *api.CandlesEchoHandler {
	return api.NewCandlesEchoHandler(l, candles, engine)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *candle.Engine,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	broadcaster *usecase.CandleBroadcaster,
	m repository.Metrics,
	producer *pkgkafka.Producer,
	handler *api.CandlesEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, engine, collector, consumer, kh, broadcaster, m, producer)
	app.SetHTTPHandler(handler)
	return app
}
