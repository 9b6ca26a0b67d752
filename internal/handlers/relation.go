package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/services"
)

type RelationHandler struct {
	log             *logger.Logger
	relationService services.RelationService
}

func NewRelationHandler(log *logger.Logger, relationService services.RelationService) *RelationHandler {
	return &RelationHandler{
		log:             log.With("handler", "RelationHandler"),
		relationService: relationService,
	}
}

type createRelationRequest struct {
	SourceCardID string `json:"source_card_id" binding:"required"`
	TargetCardID string `json:"target_card_id" binding:"required"`
	RelationType string `json:"relation_type" binding:"required"`
	Label        string `json:"label"`
	SortOrder    int    `json:"sort_order"`
}

func (h *RelationHandler) Create(c *gin.Context) {
	var req createRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sourceID, err := uuid.Parse(req.SourceCardID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_source_card_id", err)
		return
	}
	targetID, err := uuid.Parse(req.TargetCardID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_target_card_id", err)
		return
	}
	rel, err := h.relationService.Create(c.Request.Context(), services.CreateRelationInput{
		SourceCardID: sourceID,
		TargetCardID: targetID,
		RelationType: req.RelationType,
		Label:        req.Label,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		RespondServiceError(c, "create_relation_failed", err)
		return
	}
	RespondCreated(c, gin.H{"relation": rel})
}

func (h *RelationHandler) ListForCard(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	rels, err := h.relationService.ListForCard(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, "list_relations_failed", err)
		return
	}
	RespondOK(c, gin.H{"relations": rels})
}

func (h *RelationHandler) ListDrilldowns(c *gin.Context) {
	id, ok := cardID(c)
	if !ok {
		return
	}
	drilldowns, err := h.relationService.ListDrilldowns(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, "list_drilldowns_failed", err)
		return
	}
	RespondOK(c, gin.H{"drilldowns": drilldowns})
}

func (h *RelationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_relation_id", err)
		return
	}
	if err := h.relationService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, "delete_relation_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
