package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/buckstrdr/candlestream/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   *prometheus.CounterVec
	candlesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	engineGauges *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlestream_ticks_processed_total",
				Help: "Total number of ticks folded into candle buffers",
			},
			[]string{"instrument"},
		),
		candlesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlestream_candles_emitted_total",
				Help: "Total number of candle snapshots emitted to subscribers",
			},
			[]string{"instrument", "timeframe", "state"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlestream_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candlestream_last_price",
				Help: "Last observed price for an instrument",
			},
			[]string{"instrument"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candlestream_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		engineGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candlestream_engine_state",
				Help: "Engine state counters (instruments, buffers, timers, callbacks)",
			},
			[]string{"kind"},
		),
	}
}

// RecordTick records a tick folded for an instrument.
func (r *Recorder) RecordTick(instrument string) {
	r.ticksTotal.WithLabelValues(instrument).Inc()
}

// RecordCandle records a candle snapshot emission.
func (r *Recorder) RecordCandle(instrument, timeframe string, closed bool) {
	state := "live"
	if closed {
		state = "final"
	}
	r.candlesTotal.WithLabelValues(instrument, timeframe, state).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for an instrument.
func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordEngineStats publishes the engine health counters as gauges.
func (r *Recorder) RecordEngineStats(s models.EngineStats) {
	r.engineGauges.WithLabelValues("instruments").Set(float64(s.InstrumentCount))
	r.engineGauges.WithLabelValues("buffers").Set(float64(s.BufferCount))
	r.engineGauges.WithLabelValues("timers").Set(float64(s.TimerCount))
	r.engineGauges.WithLabelValues("callbacks").Set(float64(s.CallbackCount))
}
