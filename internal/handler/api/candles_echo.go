package api

import (
	"errors"
	"time"

	models "github.com/buckstrdr/candlestream/internal/domain/models"
	domrepo "github.com/buckstrdr/candlestream/internal/domain/repository"
	"github.com/buckstrdr/candlestream/internal/service/candle"
	"github.com/buckstrdr/candlestream/internal/usecase"
	xhttp "github.com/buckstrdr/candlestream/pkg/http"
	xlogger "github.com/buckstrdr/candlestream/pkg/logger"
	xutil "github.com/buckstrdr/candlestream/pkg/util"

	"github.com/labstack/echo/v4"
)

// CandlesEchoHandler exposes the engine's read and admin surface over Echo.
type CandlesEchoHandler struct {
	logger  *xlogger.Logger
	candles *usecase.CandlesUseCase
	engine  *candle.Engine
}

func NewCandlesEchoHandler(logger *xlogger.Logger, candles *usecase.CandlesUseCase, engine *candle.Engine) *CandlesEchoHandler {
	return &CandlesEchoHandler{logger: logger, candles: candles, engine: engine}
}

func (h *CandlesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/candles/current", h.Current)
	g.GET("/candles/latest", h.Latest)
	g.GET("/candles", h.List)
	g.GET("/timeframes", h.Timeframes)
	g.GET("/stats", h.Stats)
	g.DELETE("/instruments/:instrument", h.ClearInstrument)
	g.DELETE("/instruments", h.ClearAll)
}

// Current returns the live in-progress candle for an instrument/timeframe.
func (h *CandlesEchoHandler) Current(c echo.Context) error {
	req := &models.CurrentCandleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.candles.GetCurrentCandle(c.Request().Context(), usecase.GetCandleParams{
		Instrument: req.Instrument,
		Timeframe:  tf,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrCandleNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no live candle for %s %s", req.Instrument, tf))
		}
		h.logger.Error("current candle usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Latest returns the most recently finalized candle from the cache layer.
func (h *CandlesEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestCandleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.candles.GetLatestClosed(c.Request().Context(), usecase.GetCandleParams{
		Instrument: req.Instrument,
		Timeframe:  tf,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrCandleNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no finalized candle for %s %s", req.Instrument, tf))
		}
		h.logger.Error("latest candle usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// List returns the candles currently held in memory for the key, optionally
// bounded by from/to query parameters.
func (h *CandlesEchoHandler) List(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	from, to := alignedRange(req.From, req.To, tf)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandleParams{
		Instrument: req.Instrument,
		Timeframe:  tf,
	}, req.Limit, from, to)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

// alignedRange resolves optional from/to query values to window-aligned epoch
// millisecond bounds for the timeframe. Zero means unbounded.
func alignedRange(fromRaw, toRaw string, tf domrepo.Timeframe) (int64, int64) {
	from := xhttp.ParseTimeDefault(fromRaw, time.Time{})
	to := xhttp.ParseTimeDefault(toRaw, time.Time{})
	from, to = xutil.AlignFromTo(from, to, string(tf))

	var fromMs, toMs int64
	if !from.IsZero() {
		fromMs = from.UnixMilli()
	}
	if !to.IsZero() {
		toMs = to.UnixMilli()
	}
	return fromMs, toMs
}

func (h *CandlesEchoHandler) Timeframes(c echo.Context) error {
	return xhttp.SuccessResponse(c, domrepo.AllTimeframes())
}

func (h *CandlesEchoHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Stats())
}

func (h *CandlesEchoHandler) Health(c echo.Context) error {
	s := h.engine.Stats()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"buffers": s.BufferCount,
		"timers":  s.TimerCount,
	})
}

func (h *CandlesEchoHandler) ClearInstrument(c echo.Context) error {
	req := &models.ClearInstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.engine.ClearInstrument(req.Instrument)
	h.logger.Info("instrument cleared", xlogger.String("instrument", req.Instrument))
	return xhttp.NoContentResponse(c)
}

func (h *CandlesEchoHandler) ClearAll(c echo.Context) error {
	h.engine.ClearAll()
	h.logger.Info("engine state cleared")
	return xhttp.NoContentResponse(c)
}
