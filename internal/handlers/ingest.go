package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/services"
)

type IngestHandler struct {
	log           *logger.Logger
	ingestService services.IngestService
	cardService   services.CardService
}

func NewIngestHandler(log *logger.Logger, ingestService services.IngestService, cardService services.CardService) *IngestHandler {
	return &IngestHandler{
		log:           log.With("handler", "IngestHandler"),
		ingestService: ingestService,
		cardService:   cardService,
	}
}

// Ingest is POST /ingest/:producer. The response always reports per-branch
// outcomes; the status code distinguishes total failure (422) from calls
// where at least one branch landed (200).
func (h *IngestHandler) Ingest(c *gin.Context) {
	producer := c.Param("producer")
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "read_body_failed", err)
		return
	}
	result, err := h.ingestService.Ingest(c.Request.Context(), producer, raw)
	if err != nil {
		RespondServiceError(c, "ingest_failed", err)
		return
	}
	status := http.StatusOK
	if result.Succeeded == 0 && result.Failed > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// Status is GET /ingest/status: card counts grouped by source attribution.
func (h *IngestHandler) Status(c *gin.Context) {
	counts, err := h.cardService.IngestStatus(c.Request.Context())
	if err != nil {
		h.log.Error("Ingest status failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "ingest_status_failed", err)
		return
	}
	RespondOK(c, gin.H{"sources": counts})
}
