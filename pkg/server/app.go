package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
	"github.com/buckstrdr/candlestream/internal/usecase"
	"github.com/buckstrdr/candlestream/pkg/config"
	xhttp "github.com/buckstrdr/candlestream/pkg/http"
	pkgkafka "github.com/buckstrdr/candlestream/pkg/kafka"
	applogger "github.com/buckstrdr/candlestream/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	engine      *candle.Engine
	collector   *usecase.TickCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	broadcaster *usecase.CandleBroadcaster
	metrics     drepo.Metrics
	producer    *pkgkafka.Producer
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. Collector, consumer
// and producer may be nil when the corresponding source or egress is
// disabled in config.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	engine *candle.Engine,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	broadcaster *usecase.CandleBroadcaster,
	metrics drepo.Metrics,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:         cfg,
		log:         l,
		engine:      engine,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		broadcaster: broadcaster,
		metrics:     metrics,
		producer:    producer,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// producerPublisher adapts the Kafka producer to the log collector's
// publisher interface.
type producerPublisher struct {
	p *pkgkafka.Producer
}

func (pp producerPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return pp.p.Publish(ctx, topic, nil, payload)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.log
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}

	// Ship aggregated logs through Kafka when a logs topic is set.
	if a.producer != nil && a.cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.LogsTopic,
			Publisher:      producerPublisher{p: a.producer},
		})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Register broadcast subscriptions before any tick source starts so the
	// first finalized candle is never missed.
	if a.broadcaster != nil {
		instruments := a.cfg.Broadcast.Instruments
		if len(instruments) == 0 {
			instruments = a.cfg.Stream.Symbols
		}
		if err := a.broadcaster.Start(ctx, instruments, broadcastTimeframes(a.cfg)); err != nil {
			l.Error("broadcaster start error", applogger.Error(err))
			return err
		}
	}

	// Start stream collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("symbols", a.cfg.Stream.Symbols))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Periodic engine stats export.
	go a.statsLoop(ctx)

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

func (a *App) statsLoop(ctx context.Context) {
	interval := a.cfg.Engine.StatsInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if a.metrics != nil {
				a.metrics.RecordEngineStats(a.engine.Stats())
			}
		}
	}
}

func broadcastTimeframes(cfg *config.Config) []drepo.Timeframe {
	tfs := make([]drepo.Timeframe, 0, len(cfg.Broadcast.Timeframes))
	for _, s := range cfg.Broadcast.Timeframes {
		tf := drepo.Timeframe(s)
		if drepo.IsValidTimeframe(tf) {
			tfs = append(tfs, tf)
		}
	}
	if len(tfs) == 0 {
		tfs = append(tfs, drepo.DefaultTimeframe())
	}
	return tfs
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	l.Info("shutting down...")

	// Stop accepting new ticks first.
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Drop subscriptions, then shut the egress after the last delivery.
	if a.broadcaster != nil {
		a.broadcaster.Stop()
	}
	a.engine.ClearAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
