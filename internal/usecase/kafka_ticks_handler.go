package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	domrepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	pkgkafka "github.com/buckstrdr/candlestream/pkg/kafka"
)

// tickMessage is the bus schema for a raw tick. Bid/ask and side are optional;
// timeframes, when present, narrow the fan-out for this tick only.
type tickMessage struct {
	Instrument string   `json:"instrument" validate:"required"`
	Price      float64  `json:"price" validate:"required,gt=0"`
	Volume     float64  `json:"volume" validate:"gte=0"`
	Timestamp  int64    `json:"timestamp" validate:"required,gt=0"`
	Bid        float64  `json:"bid,omitempty"`
	Ask        float64  `json:"ask,omitempty"`
	Side       string   `json:"side,omitempty" validate:"omitempty,oneof=buy sell"`
	Timeframes []string `json:"timeframes,omitempty"`
}

// KafkaTicksHandler consumes tick messages and feeds the aggregation engine.
// Duplicate or out-of-order delivery is tolerated downstream: the engine's
// floor-division bucketing puts a tick in the same window regardless of
// arrival order.
type KafkaTicksHandler struct {
	topic    string
	proc     *TickProcessor
	metrics  domrepo.Metrics
	validate *validator.Validate
}

func NewKafkaTicksHandler(topic string, proc *TickProcessor, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{
		topic:    topic,
		proc:     proc,
		metrics:  metrics,
		validate: validator.New(),
	}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m tickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick message: %w", err)
	}
	if err := h.validate.Struct(&m); err != nil {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("invalid tick message: %w", err)
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(m.Timestamp)).Seconds())

	tick := &models.Tick{
		Instrument: m.Instrument,
		Price:      m.Price,
		Volume:     m.Volume,
		Timestamp:  m.Timestamp,
		Bid:        m.Bid,
		Ask:        m.Ask,
		Side:       m.Side,
	}

	// Per-message timeframe override; unknown entries are rejected by the
	// engine individually while valid ones proceed.
	if len(m.Timeframes) > 0 {
		tfs := make([]domrepo.Timeframe, 0, len(m.Timeframes))
		for _, tf := range m.Timeframes {
			tfs = append(tfs, domrepo.Timeframe(tf))
		}
		return h.proc.ProcessWith(ctx, tick, tfs)
	}
	return h.proc.Process(ctx, tick)
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
