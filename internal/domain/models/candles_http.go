package models

// Requests for candle HTTP endpoints. Defined in domain for consistency and reuse.

type CurrentCandleRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
}

type LatestCandleRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
}

type CandlesRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
	Limit      int    `query:"limit" json:"limit" default:"100" validate:"gte=0,lte=5000"`
	From       string `query:"from" json:"from"` // RFC3339 or unix seconds, empty = unbounded
	To         string `query:"to" json:"to"`
}

type ClearInstrumentRequest struct {
	Instrument string `param:"instrument" json:"instrument" validate:"required"`
}
