package repository

import "fmt"

// Timeframe is a fixed candle duration identifier.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// durations maps each supported timeframe to its length in milliseconds.
// Process-wide constant table; never mutated after init.
var durations = map[Timeframe]int64{
	TF1m:  60_000,
	TF5m:  5 * 60_000,
	TF15m: 15 * 60_000,
	TF30m: 30 * 60_000,
	TF1h:  60 * 60_000,
	TF4h:  4 * 60 * 60_000,
	TF1d:  24 * 60 * 60_000,
}

// allTimeframes keeps a stable short-to-long ordering for listings.
var allTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d}

// Duration returns the timeframe length in milliseconds. Unknown identifiers
// are a caller error and must be rejected at the ingestion boundary.
func Duration(tf Timeframe) (int64, error) {
	d, ok := durations[tf]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe: %q", tf)
	}
	return d, nil
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := durations[tf]
	return ok
}

// DefaultTimeframe returns the baseline timeframe used when a tick carries none.
func DefaultTimeframe() Timeframe { return TF1m }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// AllTimeframes returns every supported timeframe, shortest first.
func AllTimeframes() []Timeframe {
	out := make([]Timeframe, len(allTimeframes))
	copy(out, allTimeframes)
	return out
}
