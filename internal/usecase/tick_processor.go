package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	drepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
)

// TickProcessor feeds validated ticks into the aggregation engine across the
// configured fan-out timeframes.
type TickProcessor struct {
	engine     *candle.Engine
	metrics    drepo.Metrics
	timeframes []drepo.Timeframe
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(engine *candle.Engine, metrics drepo.Metrics, timeframes []drepo.Timeframe) *TickProcessor {
	if len(timeframes) == 0 {
		timeframes = []drepo.Timeframe{drepo.DefaultTimeframe()}
	}
	return &TickProcessor{engine: engine, metrics: metrics, timeframes: timeframes}
}

// Timeframes returns the fan-out set this processor routes ticks into.
func (p *TickProcessor) Timeframes() []drepo.Timeframe { return p.timeframes }

// Process routes a single tick into the engine across the configured fan-out.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	return p.ProcessWith(ctx, t, p.timeframes)
}

// ProcessWith routes a single tick into the engine for an explicit timeframe
// set, overriding the configured fan-out.
func (p *TickProcessor) ProcessWith(_ context.Context, t *models.Tick, timeframes []drepo.Timeframe) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	if err := p.engine.ProcessTick(t, timeframes...); err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}
