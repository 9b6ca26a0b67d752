package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/services"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

type MetricHandler struct {
	log           *logger.Logger
	metricService services.MetricService
}

func NewMetricHandler(log *logger.Logger, metricService services.MetricService) *MetricHandler {
	return &MetricHandler{
		log:           log.With("handler", "MetricHandler"),
		metricService: metricService,
	}
}

func (h *MetricHandler) List(c *gin.Context) {
	metrics, err := h.metricService.List(c.Request.Context())
	if err != nil {
		h.log.Error("List metrics failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_metrics_failed", err)
		return
	}
	RespondOK(c, gin.H{"metrics": metrics})
}

type createMetricRequest struct {
	Key      string `json:"key" binding:"required"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Cadence  string `json:"cadence"`
}

func (h *MetricHandler) Create(c *gin.Context) {
	var req createMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	metric, err := h.metricService.Create(c.Request.Context(), &types.MetricDefinition{
		Key:      req.Key,
		Name:     req.Name,
		Category: req.Category,
		Unit:     req.Unit,
		Cadence:  req.Cadence,
	})
	if err != nil {
		RespondServiceError(c, "create_metric_failed", err)
		return
	}
	RespondCreated(c, gin.H{"metric": metric})
}
