package candle

import (
	"github.com/buckstrdr/candlestream/internal/domain/models"
	"github.com/buckstrdr/candlestream/internal/domain/repository"
)

// key identifies one (instrument, timeframe) accumulation stream.
type key struct {
	Instrument string
	Timeframe  repository.Timeframe
}

func (k key) String() string { return k.Instrument + "|" + string(k.Timeframe) }

// ResolveWindow computes the half-open window [start, start+duration) that a
// millisecond timestamp belongs to, by floor division. Every tick with a
// timestamp inside the window maps to the same start, independent of arrival
// order.
func ResolveWindow(ts, duration int64) (start, end int64) {
	start = ts - ts%duration
	return start, start + duration
}

// Buffer is the mutable accumulator for one open window. It is owned
// exclusively by the engine and only touched under the engine lock.
type Buffer struct {
	Instrument string
	Timeframe  repository.Timeframe
	Start      int64 // window start, ms
	End        int64 // window end, ms (Start + duration)
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Trades     int
	// Ticks absorbed in this window, retained for potential reprocessing.
	Ticks []models.Tick
}

func newBuffer(k key, start, end int64) *Buffer {
	return &Buffer{
		Instrument: k.Instrument,
		Timeframe:  k.Timeframe,
		Start:      start,
		End:        end,
	}
}

// Absorb folds a tick into the buffer: open is set on the first tick, high and
// low are extended, close tracks the most recent tick, volume accumulates.
func (b *Buffer) Absorb(t *models.Tick) {
	if b.Trades == 0 {
		b.Open = t.Price
		b.High = t.Price
		b.Low = t.Price
	} else {
		if t.Price > b.High {
			b.High = t.Price
		}
		if t.Price < b.Low {
			b.Low = t.Price
		}
	}
	b.Close = t.Price
	b.Volume += t.Volume
	b.Trades++
	b.Ticks = append(b.Ticks, *t)
}

// Snapshot derives an immutable candlestick from the current buffer state.
func (b *Buffer) Snapshot(closed bool) models.Candlestick {
	return models.Candlestick{
		Instrument: b.Instrument,
		Timeframe:  string(b.Timeframe),
		Start:      b.Start,
		End:        b.End,
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     b.Volume,
		Trades:     b.Trades,
		Closed:     closed,
	}
}
