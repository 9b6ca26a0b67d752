package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/services"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

type BundleHandler struct {
	log           *logger.Logger
	bundleService services.BundleService
}

func NewBundleHandler(log *logger.Logger, bundleService services.BundleService) *BundleHandler {
	return &BundleHandler{
		log:           log.With("handler", "BundleHandler"),
		bundleService: bundleService,
	}
}

func (h *BundleHandler) List(c *gin.Context) {
	bundles, err := h.bundleService.List(c.Request.Context())
	if err != nil {
		h.log.Error("List bundles failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "list_bundles_failed", err)
		return
	}
	RespondOK(c, gin.H{"bundles": bundles})
}

func (h *BundleHandler) GetByKey(c *gin.Context) {
	bundle, err := h.bundleService.GetByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondServiceError(c, "get_bundle_failed", err)
		return
	}
	RespondOK(c, gin.H{"bundle": bundle})
}

type upsertBundleRequest struct {
	Key          string         `json:"key"`
	ChartType    string         `json:"chart_type"`
	Version      int            `json:"version"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	DataSchema   map[string]any `json:"data_schema"`
	ConfigSchema map[string]any `json:"config_schema"`
	OutputSchema map[string]any `json:"output_schema"`
	Defaults     map[string]any `json:"defaults"`
}

// Upsert is the management seeding entry point: insert-or-upgrade by key.
func (h *BundleHandler) Upsert(c *gin.Context) {
	var req upsertBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	def := &types.BundleDefinition{
		Key:         req.Key,
		ChartType:   req.ChartType,
		Version:     req.Version,
		Name:        req.Name,
		Description: req.Description,
	}
	for _, f := range []struct {
		src map[string]any
		dst *datatypes.JSON
	}{
		{req.DataSchema, &def.DataSchema},
		{req.ConfigSchema, &def.ConfigSchema},
		{req.OutputSchema, &def.OutputSchema},
		{req.Defaults, &def.Defaults},
	} {
		src := f.src
		if src == nil {
			src = map[string]any{}
		}
		raw, err := json.Marshal(src)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
		*f.dst = datatypes.JSON(raw)
	}

	bundle, changed, err := h.bundleService.UpsertByKey(c.Request.Context(), def)
	if err != nil {
		h.log.Error("Upsert bundle failed", "key", req.Key, "error", err)
		RespondServiceError(c, "upsert_bundle_failed", err)
		return
	}
	RespondOK(c, gin.H{"bundle": bundle, "changed": changed})
}
