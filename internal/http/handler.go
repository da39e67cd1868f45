package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kpi-service/internal/http/middleware"
	"kpi-service/internal/logger"
	"kpi-service/internal/model"
	"kpi-service/internal/service"
)

// statusClientClosedRequest is the de facto status for a caller that went away.
const statusClientClosedRequest = 499

type Handler struct {
	kpis *service.KPIService
	log  zerolog.Logger
}

func NewHandler(kpis *service.KPIService, log zerolog.Logger) *Handler {
	return &Handler{kpis: kpis, log: log}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	group := r.Group("/kpi")
	if authMiddleware != nil {
		group.Use(authMiddleware)
	}

	group.GET("/supply-gap", h.getSupplyGap)
	group.GET("/top-zones", h.getTopZones)
	group.GET("/fulfillment-risk", h.getFulfillmentRisk)
	group.GET("/reposition", h.getReposition)
	group.GET("/idle-riders", h.getIdleRiders)
	group.GET("/utilization", h.getUtilization)
	group.GET("/orders-trend", h.getOrdersTrend)
	group.GET("/peak-gap", h.getPeakGap)
	group.GET("/surge", h.getSurge)
	group.GET("/riders", h.listRiders)
	group.GET("/rider-positions", h.getRiderPositions)
	group.GET("/riders/:id/route", h.getRiderRoute)
}

func (h *Handler) getSupplyGap(c *gin.Context) {
	data, err := h.kpis.SupplyGap(c.Request.Context())
	h.respond(c, "supply_gap", data, err)
}

func (h *Handler) getTopZones(c *gin.Context) {
	data, err := h.kpis.TopZones(c.Request.Context())
	h.respond(c, "top_zones", data, err)
}

func (h *Handler) getFulfillmentRisk(c *gin.Context) {
	data, err := h.kpis.FulfillmentRisk(c.Request.Context())
	h.respond(c, "fulfillment_risk", data, err)
}

func (h *Handler) getReposition(c *gin.Context) {
	data, err := h.kpis.Reposition(c.Request.Context())
	h.respond(c, "reposition", data, err)
}

func (h *Handler) getIdleRiders(c *gin.Context) {
	data, err := h.kpis.IdleRiders(c.Request.Context())
	h.respond(c, "idle_riders", data, err)
}

func (h *Handler) getUtilization(c *gin.Context) {
	data, err := h.kpis.RiderUtilization(c.Request.Context())
	h.respond(c, "rider_utilization", data, err)
}

func (h *Handler) getOrdersTrend(c *gin.Context) {
	data, err := h.kpis.OrdersTrend(c.Request.Context())
	h.respond(c, "orders_trend", data, err)
}

func (h *Handler) getPeakGap(c *gin.Context) {
	data, err := h.kpis.PeakGap(c.Request.Context())
	h.respond(c, "peak_gap", data, err)
}

func (h *Handler) getSurge(c *gin.Context) {
	data, err := h.kpis.SurgePrediction(c.Request.Context())
	h.respond(c, "surge_prediction", data, err)
}

func (h *Handler) getRiderPositions(c *gin.Context) {
	data, err := h.kpis.RiderPositions(c.Request.Context())
	h.respond(c, "rider_positions", data, err)
}

func (h *Handler) listRiders(c *gin.Context) {
	data, err := h.kpis.RiderList(c.Request.Context())
	h.respond(c, "rider_list", data, err)
}

func (h *Handler) getRiderRoute(c *gin.Context) {
	query := model.RouteQuery{RiderID: c.Param("id")}

	from, ok := parseTimeParam(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(c, "to")
	if !ok {
		return
	}
	query.From, query.To = from, to

	data, err := h.kpis.RiderRoute(c.Request.Context(), query)
	if err != nil {
		h.handleError(c, "rider_route", err, h.log.With().Str("rider_id", logger.SafeValue(query.RiderID)).Logger())
		return
	}
	c.JSON(http.StatusOK, successResponse(data))
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid "+name+", expected RFC3339"))
		return nil, false
	}
	return &parsed, true
}

func (h *Handler) respond(c *gin.Context, metric string, data interface{}, err error) {
	if err != nil {
		h.handleError(c, metric, err, h.log)
		return
	}
	c.JSON(http.StatusOK, successResponse(data))
}

func (h *Handler) handleError(c *gin.Context, metric string, err error, log zerolog.Logger) {
	if subject := middleware.Subject(c); subject != "" {
		log = log.With().Str("subject", logger.SafeValue(subject)).Logger()
	}

	switch {
	case errors.Is(err, service.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, context.Canceled):
		log.Debug().Str("metric", metric).Msg("query cancelled by client")
		c.JSON(statusClientClosedRequest, errorResponse("request cancelled"))
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Str("metric", metric).Msg("query deadline exceeded")
		c.JSON(http.StatusGatewayTimeout, errorResponse("query timed out"))
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error().Err(err).Str("metric", metric).Msg("event store unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("event store unavailable"))
	default:
		log.Error().Err(err).Str("metric", metric).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
