package models

// Tick is a single observed market event for an instrument. It is immutable
// once handed to the engine; timestamps are wall-clock milliseconds.
type Tick struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"` // zero for quote-only updates
	Timestamp  int64   `json:"timestamp"`
	Bid        float64 `json:"bid,omitempty"`
	Ask        float64 `json:"ask,omitempty"`
	Side       string  `json:"side,omitempty"` // "buy" | "sell" | ""
}

// Candlestick is an immutable OHLCV snapshot of one window, live or finalized.
// Each emission is a fresh value; snapshots are never mutated after creation.
type Candlestick struct {
	Instrument string  `json:"instrument"`
	Timeframe  string  `json:"timeframe"`
	Start      int64   `json:"start"` // window start, ms since epoch
	End        int64   `json:"end"`   // start + timeframe duration
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	Trades     int     `json:"trades"`
	Closed     bool    `json:"closed"`
}

// EngineStats reports engine health counters for the status surface.
type EngineStats struct {
	InstrumentCount int `json:"instrument_count"`
	BufferCount     int `json:"buffer_count"`
	TimerCount      int `json:"timer_count"`
	CallbackCount   int `json:"callback_count"`
}
