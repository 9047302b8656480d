package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/service"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

// MetricsHandler exposes the ops snapshot endpoint.
type MetricsHandler struct {
	service *service.MetricsService
}

// NewMetricsHandler creates a new handler.
func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: svc}
}

// Snapshot godoc
// @Summary System metrics snapshot
// @Description Return aggregate request, cache, and booking counters
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /ops/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Snapshot(), nil)
}
