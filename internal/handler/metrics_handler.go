package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mailwatch/internal/services"
	"mailwatch/internal/transport/httpdto"
)

type MetricsHandler struct {
	metrics *services.MetricsService
}

func NewMetricsHandler(metrics *services.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Dashboard aggregates engagement and deliverability statistics for a
// requested window (default: the last 30 days).
func (h *MetricsHandler) Dashboard(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid from timestamp", "INVALID_REQUEST"))
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid to timestamp", "INVALID_REQUEST"))
			return
		}
		to = t
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("from must precede to", "INVALID_REQUEST"))
		return
	}

	report, err := h.metrics.Dashboard(c.Request.Context(), services.Window{From: from, To: to})
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, httpdto.NewErrorResponse(err.Error(), "AGGREGATION_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(report))
}
