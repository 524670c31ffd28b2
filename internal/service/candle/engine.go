package candle

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	"github.com/buckstrdr/candlestream/internal/domain/repository"
	applogger "github.com/buckstrdr/candlestream/pkg/logger"
)

// ErrNotFound is returned when no live candle exists for a key.
var ErrNotFound = errors.New("candle: not found")

// Engine converts a tick stream into fixed-interval OHLCV candles across
// multiple timeframes per instrument, emitting live snapshots on every
// mutation and exactly one finalized snapshot per completed window, whether
// completion comes from rollover or from the completion timer.
//
// One mutex guards buffers and timers as a single atomic unit; key cardinality
// is small enough that sharding buys nothing. Subscriber callbacks run outside
// the lock, from snapshots collected under it.
type Engine struct {
	mu       sync.Mutex
	buffers  map[key]*Buffer
	sched    *scheduler
	registry *Registry

	log     *applogger.Logger
	metrics repository.Metrics
	now     func() int64 // wall clock in ms, swappable for tests
}

// Option configures Engine.
type Option func(*Engine)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the wall-clock source used for completion timers.
func WithClock(now func() int64) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an empty aggregation engine.
func New(log *applogger.Logger, opts ...Option) *Engine {
	e := &Engine{
		buffers:  make(map[key]*Buffer),
		sched:    newScheduler(),
		registry: NewRegistry(log),
		log:      log,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// emission is a snapshot collected under the engine lock, delivered after it
// is released.
type emission struct {
	k key
	c models.Candlestick
}

// ProcessTick validates the tick, fans it out to every requested timeframe
// (the default timeframe when none is given), and notifies subscribers with
// the resulting live snapshots. Rollover inside the fan-out emits the previous
// window's finalized snapshot before the new window's live one. A malformed
// tick is rejected before any buffer mutation; an unknown timeframe is
// rejected individually while the remaining timeframes proceed.
func (e *Engine) ProcessTick(t *models.Tick, timeframes ...repository.Timeframe) error {
	if err := validateTick(t); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("tick_invalid")
		}
		return fmt.Errorf("process tick: %w", err)
	}
	if len(timeframes) == 0 {
		timeframes = []repository.Timeframe{repository.DefaultTimeframe()}
	}

	var out []emission
	e.mu.Lock()
	for _, tf := range timeframes {
		d, err := repository.Duration(tf)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordError("timeframe_unknown")
			}
			if e.log != nil {
				e.log.Warn("timeframe rejected",
					applogger.String("instrument", t.Instrument),
					applogger.String("timeframe", string(tf)),
				)
			}
			continue
		}
		out = append(out, e.upsertLocked(key{Instrument: t.Instrument, Timeframe: tf}, d, t)...)
	}
	e.mu.Unlock()

	for _, em := range out {
		e.registry.Notify(em.k, em.c)
		if e.metrics != nil {
			e.metrics.RecordCandle(em.c.Instrument, em.c.Timeframe, em.c.Closed)
		}
	}
	if e.metrics != nil {
		e.metrics.RecordTick(t.Instrument)
		e.metrics.RecordLastPrice(t.Instrument, t.Price)
	}
	return nil
}

// upsertLocked folds the tick into the active buffer for k, rolling the window
// over first when the tick's timestamp is at or past the buffer's end. A late
// tick (timestamp before the window start) folds into the active buffer rather
// than reopening an already finalized window.
func (e *Engine) upsertLocked(k key, duration int64, t *models.Tick) []emission {
	var out []emission

	b := e.buffers[k]
	if b == nil || t.Timestamp >= b.End {
		if b != nil {
			e.sched.cancel(k)
			if b.Trades > 0 {
				out = append(out, emission{k: k, c: b.Snapshot(true)})
			}
		}
		start, end := ResolveWindow(t.Timestamp, duration)
		b = newBuffer(k, start, end)
		e.buffers[k] = b
		e.scheduleLocked(k, start, end)
	}

	b.Absorb(t)
	out = append(out, emission{k: k, c: b.Snapshot(false)})
	return out
}

func (e *Engine) scheduleLocked(k key, start, end int64) {
	delay := time.Duration(end-e.now()) * time.Millisecond
	e.sched.schedule(k, start, delay, func() { e.expire(k, start) })
}

// expire finalizes the window scheduled at start, provided it is still the
// active buffer for k. A stale fire (the window already rolled over or was
// cleared) is a silent no-op, detected by window-start identity rather than
// buffer identity.
func (e *Engine) expire(k key, start int64) {
	e.mu.Lock()
	e.sched.remove(k, start)
	b := e.buffers[k]
	if b == nil || b.Start != start {
		e.mu.Unlock()
		return
	}
	delete(e.buffers, k)
	emit := b.Trades > 0
	var snap models.Candlestick
	if emit {
		snap = b.Snapshot(true)
	}
	e.mu.Unlock()

	if !emit {
		// Warm-up window that never saw a tick; nothing to publish.
		return
	}
	e.registry.Notify(k, snap)
	if e.metrics != nil {
		e.metrics.RecordCandle(snap.Instrument, snap.Timeframe, true)
	}
}

// Subscribe registers cb for live and finalized snapshots of the key.
func (e *Engine) Subscribe(instrument string, tf repository.Timeframe, cb Callback) (*Subscription, error) {
	if instrument == "" {
		return nil, errors.New("subscribe: instrument empty")
	}
	if !repository.IsValidTimeframe(tf) {
		return nil, fmt.Errorf("subscribe: unknown timeframe %q", tf)
	}
	return e.registry.Subscribe(instrument, tf, cb), nil
}

// WarmUp pre-allocates a buffer for the current wall-clock window so a quiet
// key still has a window boundary to expire on. No snapshot is emitted; a
// window that never absorbs a tick expires silently.
func (e *Engine) WarmUp(instrument string, tf repository.Timeframe) error {
	d, err := repository.Duration(tf)
	if err != nil {
		return fmt.Errorf("warm up: %w", err)
	}
	k := key{Instrument: instrument, Timeframe: tf}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[k]; ok {
		return nil
	}
	start, end := ResolveWindow(e.now(), d)
	e.buffers[k] = newBuffer(k, start, end)
	e.scheduleLocked(k, start, end)
	return nil
}

// GetCurrentCandle returns the live snapshot of the active buffer, or
// ErrNotFound when no buffer exists or it has absorbed no ticks yet.
func (e *Engine) GetCurrentCandle(instrument string, tf repository.Timeframe) (models.Candlestick, error) {
	k := key{Instrument: instrument, Timeframe: tf}

	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.buffers[k]
	if b == nil || b.Trades == 0 {
		return models.Candlestick{}, ErrNotFound
	}
	return b.Snapshot(false), nil
}

// GetHistoricalCandles returns the candles the engine retains, oldest first.
// The engine is memory-resident and keeps nothing beyond the currently open
// window, so the result holds at most the live candle and may be empty.
func (e *Engine) GetHistoricalCandles(instrument string, tf repository.Timeframe, limit int) []models.Candlestick {
	out := make([]models.Candlestick, 0, 1)
	if limit == 0 {
		return out
	}
	if c, err := e.GetCurrentCandle(instrument, tf); err == nil {
		out = append(out, c)
	}
	return out
}

// ClearInstrument removes every buffer, pending timer, and subscription whose
// key matches instrument.
func (e *Engine) ClearInstrument(instrument string) {
	e.mu.Lock()
	for k := range e.buffers {
		if k.Instrument == instrument {
			e.sched.cancel(k)
			delete(e.buffers, k)
		}
	}
	e.mu.Unlock()
	e.registry.ClearInstrument(instrument)
}

// ClearAll resets the engine to its initial empty state, cancelling every
// pending timer.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	e.sched.cancelAll()
	e.buffers = make(map[key]*Buffer)
	e.mu.Unlock()
	e.registry.Clear()
}

// Stats reports engine health counters.
func (e *Engine) Stats() models.EngineStats {
	e.mu.Lock()
	instruments := make(map[string]struct{}, len(e.buffers))
	for k := range e.buffers {
		instruments[k.Instrument] = struct{}{}
	}
	s := models.EngineStats{
		InstrumentCount: len(instruments),
		BufferCount:     len(e.buffers),
		TimerCount:      e.sched.count(),
	}
	e.mu.Unlock()
	s.CallbackCount = e.registry.Count()
	return s
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return errors.New("tick nil")
	}
	if t.Instrument == "" {
		return errors.New("instrument empty")
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return fmt.Errorf("invalid price %v", t.Price)
	}
	if math.IsNaN(t.Volume) || t.Volume < 0 {
		return fmt.Errorf("invalid volume %v", t.Volume)
	}
	if t.Timestamp <= 0 {
		return errors.New("timestamp invalid")
	}
	return nil
}
