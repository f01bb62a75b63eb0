package api

import (
	"net/http"
	"time"

	"ValueFlow/internal/domain/models"
	drepo "ValueFlow/internal/domain/repository"
	"ValueFlow/internal/engine/graph"
	"ValueFlow/internal/service/ratelimit"
	"ValueFlow/internal/usecase"
	"ValueFlow/pkg/cache"
	xhttp "ValueFlow/pkg/http"
	xlogger "ValueFlow/pkg/logger"
	"ValueFlow/pkg/queue"
	"ValueFlow/pkg/util"

	"github.com/labstack/echo/v4"
)

// EngineHandler exposes the valuation engine over HTTP.
type EngineHandler struct {
	logger  *xlogger.Logger
	proc    *usecase.WindowProcessor
	sink    drepo.ValuationSink
	cache   cache.Service
	jobs    queue.QueueService
	limiter *ratelimit.Limiter
}

func NewEngineHandler(logger *xlogger.Logger, proc *usecase.WindowProcessor, sink drepo.ValuationSink, c cache.Service, jobs queue.QueueService) *EngineHandler {
	return &EngineHandler{logger: logger, proc: proc, sink: sink, cache: c, jobs: jobs, limiter: ratelimit.New()}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/batches", h.IngestBatch)
	g.POST("/windows/process", h.ProcessWindow)
	g.GET("/window", h.LastWindow)
	g.GET("/statistics", h.Statistics)

	g.GET("/items", h.Items)
	g.POST("/items", h.RegisterItem)
	g.DELETE("/items/:symbol", h.DeactivateItem)

	g.GET("/value", h.Value)
	g.GET("/resolutions", h.Resolutions)
	g.GET("/graph", h.GraphInsights)

	g.GET("/trend", h.Trend)
	g.GET("/anomaly", h.Anomaly)
	g.GET("/vol", h.Volatility)
	g.GET("/market", h.Market)
}

func (h *EngineHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.sink != nil {
		if err := h.sink.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["sink"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}

// IngestBatch accepts one observation batch from a push source.
func (h *EngineHandler) IngestBatch(c echo.Context) error {
	req := &models.ObservationBatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// Per-source throttle: bursts of 20 batches, refilling at 10/s.
	if !h.limiter.Allow("ingest:"+req.Source, 20, 10) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many batches from source "+req.Source, http.StatusTooManyRequests))
	}
	if err := h.proc.IngestBatch(c.Request().Context(), req); err != nil {
		h.logger.Warn("batch rejected", xlogger.String("source", req.Source), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.CreatedResponse(c, map[string]string{"batch_id": req.BatchID})
}

// ProcessWindow closes the current window on demand.
func (h *EngineHandler) ProcessWindow(c echo.Context) error {
	req := &models.ProcessWindowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	span := util.ParseSpanDefault(req.Span, time.Minute)
	end := time.Now().UTC()

	if req.Async && h.jobs != nil {
		payload := usecase.WindowJobPayload{Span: req.Span, End: end.Unix()}
		if err := h.jobs.PublishMessage(c.Request().Context(), usecase.WindowJobType, payload); err != nil {
			h.logger.Error("enqueue window job error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": "queued"})
	}

	res, err := h.proc.ProcessWindow(c.Request().Context(), end.Add(-span), end)
	if err != nil {
		h.logger.Error("process window error", xlogger.Error(err))
		// The result still carries the failed log entry.
		if res != nil {
			return xhttp.SuccessResponse(c, res)
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) LastWindow(c echo.Context) error {
	res := h.proc.LastResult()
	if res == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no window processed yet"))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Statistics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.proc.Statistics())
}

func (h *EngineHandler) Items(c echo.Context) error {
	items := h.proc.Registry().Items()
	return xhttp.ListResponse(c, items, int64(len(items)))
}

func (h *EngineHandler) RegisterItem(c echo.Context) error {
	req := &models.RegisterItemRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	it := h.proc.Registry().Ensure(req.Symbol, models.ItemCategory(req.Category))
	return xhttp.CreatedResponse(c, it)
}

// DeactivateItem soft-deletes an item. The item keeps its ID so stored
// observations and resolutions stay resolvable.
func (h *EngineHandler) DeactivateItem(c echo.Context) error {
	symbol := c.Param("symbol")
	if !h.proc.Registry().Deactivate(symbol) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("unknown item: "+symbol))
	}
	return xhttp.SuccessResponse(c, map[string]string{"symbol": symbol, "status": "deactivated"})
}

// Value resolves one item against the base unit over the latest graph.
func (h *EngineHandler) Value(c echo.Context) error {
	req := &models.ValueRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.proc.ResolveSymbol(req.Symbol)
	if err != nil {
		h.logger.Warn("resolve error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, res)
}

// Resolutions reads persisted resolutions from the sink, with a short cache.
func (h *EngineHandler) Resolutions(c echo.Context) error {
	req := &models.ResolutionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.sink == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no valuation sink configured"))
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	key := cache.GenerateKeyWithParams("resolutions", req.Symbol, from.Unix(), to.Unix(), req.Limit)
	if h.cache != nil {
		var cached []models.Resolution
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
	}

	rows, err := h.sink.LatestResolutions(ctx, req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("resolutions query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		_ = h.cache.Set(ctx, key, rows, 15*time.Second)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// GraphInsights reports the latest graph's shape plus central and volatile nodes.
func (h *EngineHandler) GraphInsights(c echo.Context) error {
	req := &models.GraphInsightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	g := h.proc.LastGraph()
	if g == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no graph built yet"))
	}
	central := g.CentralNodes(req.TopN)
	volatile := g.VolatileNodes(req.Threshold, req.TopN)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"window_start":   g.WindowStart,
		"window_end":     g.WindowEnd,
		"nodes":          g.NodeCount(),
		"edges":          g.EdgeCount(),
		"central_nodes":  h.named(central),
		"volatile_nodes": h.named(volatile),
	})
}

type namedScore struct {
	ItemID int64   `json:"item_id"`
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

func (h *EngineHandler) named(scores []graph.NodeScore) []namedScore {
	out := make([]namedScore, len(scores))
	for i, s := range scores {
		out[i] = namedScore{ItemID: s.ItemID, Symbol: h.proc.Registry().SymbolOf(s.ItemID), Score: s.Score}
	}
	return out
}

func (h *EngineHandler) Trend(c echo.Context) error {
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	points, err := h.proc.TrendFor(req.Symbol, req.Short, req.Long)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, points)
}

func (h *EngineHandler) Anomaly(c echo.Context) error {
	req := &models.AnomalyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	anomalies, err := h.proc.AnomaliesFor(req.Symbol, req.Threshold)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, anomalies)
}

func (h *EngineHandler) Volatility(c echo.Context) error {
	req := &models.VolatilityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	vols, err := h.proc.VolatilityFor(req.Symbol, req.Window)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, vols)
}

func (h *EngineHandler) Market(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.proc.MarketMetrics())
}
