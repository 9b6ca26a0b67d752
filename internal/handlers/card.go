package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/services"
)

type CardHandler struct {
	log         *logger.Logger
	cardService services.CardService
}

func NewCardHandler(log *logger.Logger, cardService services.CardService) *CardHandler {
	return &CardHandler{
		log:         log.With("handler", "CardHandler"),
		cardService: cardService,
	}
}

func cardID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_card_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CardHandler) List(c *gin.Context) {
	filter := services.ListCardsFilter{
		BundleKey: c.Query("bundle_key"),
		Source:    c.Query("source"),
		StaleOnly: c.Query("stale") == "true",
	}
	cards, err := h.cardService.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("List cards failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_cards_failed", err)
		return
	}
	RespondOK(c, gin.H{"cards": cards})
}

func (h *CardHandler) Get(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	card, err := h.cardService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, "get_card_failed", err)
		return
	}
	RespondOK(c, gin.H{"card": card})
}

func (h *CardHandler) GetFull(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	view, err := h.cardService.GetFull(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, "get_card_full_failed", err)
		return
	}
	RespondOK(c, view)
}

func (h *CardHandler) Create(c *gin.Context) {
	var input services.CreateCardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	card, err := h.cardService.Create(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, "create_card_failed", err)
		return
	}
	RespondCreated(c, gin.H{"card": card})
}

func (h *CardHandler) Update(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	var input services.UpdateCardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	card, err := h.cardService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondServiceError(c, "update_card_failed", err)
		return
	}
	RespondOK(c, gin.H{"card": card})
}

func (h *CardHandler) Delete(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	if err := h.cardService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, "delete_card_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CardHandler) ListData(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	snaps, err := h.cardService.ListSnapshots(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, "list_snapshots_failed", err)
		return
	}
	RespondOK(c, gin.H{"snapshots": snaps})
}

func (h *CardHandler) LatestData(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	snap, err := h.cardService.LatestSnapshot(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, "latest_snapshot_failed", err)
		return
	}
	RespondOK(c, gin.H{"snapshot": snap})
}

type pushDataRequest struct {
	Payload     map[string]any `json:"payload" binding:"required"`
	PeriodLabel string         `json:"period_label"`
	EffectiveAt *time.Time     `json:"effective_at"`
}

// PushData is the manual snapshot push for dashboards and scripts.
func (h *CardHandler) PushData(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	var req pushDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	raw, err := json.Marshal(req.Payload)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	effectiveAt := time.Now()
	if req.EffectiveAt != nil {
		effectiveAt = *req.EffectiveAt
	}
	snap, err := h.cardService.AppendSnapshot(c.Request.Context(), nil, id, raw, req.PeriodLabel, effectiveAt)
	if err != nil {
		RespondServiceError(c, "push_snapshot_failed", err)
		return
	}
	RespondCreated(c, gin.H{"snapshot": snap})
}
