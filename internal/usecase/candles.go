package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	drepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
	pkgcache "github.com/buckstrdr/candlestream/pkg/cache"
)

var ErrCandleNotFound = errors.New("candle not found")

// CandlesUseCase is the read side over the aggregation engine. The in-flight
// buffer is the source of truth; the cache only backfills the latest
// finalized candle after its window has rolled out of the engine.
type CandlesUseCase struct {
	engine *candle.Engine
	cache  *repository.CandleCache
}

func NewCandlesUseCase(engine *candle.Engine, cache *repository.CandleCache) *CandlesUseCase {
	return &CandlesUseCase{engine: engine, cache: cache}
}

type GetCandleParams struct {
	Instrument string
	Timeframe  drepo.Timeframe
}

// GetCurrentCandle returns the live, in-progress candle for the key.
func (uc *CandlesUseCase) GetCurrentCandle(ctx context.Context, p GetCandleParams) (*models.Candlestick, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	c, err := uc.engine.GetCurrentCandle(p.Instrument, p.Timeframe)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, candle.ErrNotFound) {
		return nil, fmt.Errorf("get current candle: %w", err)
	}
	return nil, ErrCandleNotFound
}

// GetLatestClosed returns the most recently finalized candle for the key,
// served from the cache layer. Misses map to ErrCandleNotFound.
func (uc *CandlesUseCase) GetLatestClosed(ctx context.Context, p GetCandleParams) (*models.Candlestick, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if uc.cache == nil {
		return nil, ErrCandleNotFound
	}

	c, err := uc.cache.GetLatest(ctx, p.Instrument, string(p.Timeframe))
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, ErrCandleNotFound
		}
		return nil, fmt.Errorf("get latest closed candle: %w", err)
	}
	return c, nil
}

// GetCandles returns whatever the engine currently holds for the key, capped
// at limit and bounded to [from, to) when either bound is set. Bounds are
// window-start epoch milliseconds; zero means unbounded. Only the live candle
// is retained in memory, so the slice has at most one element.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandleParams, limit int, from, to int64) ([]models.Candlestick, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0")
	}
	if from > 0 && to > 0 && from > to {
		return nil, fmt.Errorf("from must be <= to")
	}

	candles := uc.engine.GetHistoricalCandles(p.Instrument, p.Timeframe, limit)
	if from == 0 && to == 0 {
		return candles, nil
	}
	filtered := make([]models.Candlestick, 0, len(candles))
	for _, c := range candles {
		if from > 0 && c.Start < from {
			continue
		}
		if to > 0 && c.Start >= to {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered, nil
}

func validateParams(p GetCandleParams) error {
	if p.Instrument == "" {
		return fmt.Errorf("instrument required")
	}
	if !drepo.IsValidTimeframe(p.Timeframe) {
		return fmt.Errorf("unknown timeframe %q", p.Timeframe)
	}
	return nil
}
