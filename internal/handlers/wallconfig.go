package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wallforge/wallsim-backend/internal/services"
	"github.com/wallforge/wallsim-backend/internal/wallsim"
)

type WallConfigHandler struct {
	walls services.WallService
	orch  services.OrchestratorService
}

func NewWallConfigHandler(walls services.WallService, orch services.OrchestratorService) *WallConfigHandler {
	return &WallConfigHandler{walls: walls, orch: orch}
}

type uploadConfigRequest struct {
	Config wallsim.Config `json:"config" binding:"required"`
}

// POST /api/wallconfig
// Registers a wall configuration and queues the full-range batch that
// simulates it for every crew count.
func (h *WallConfigHandler) Upload(c *gin.Context) {
	var req uploadConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	run, err := h.orch.SubmitFullRange(c.Request.Context(), req.Config)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"config_id":   run.ConfigHash,
		"batch_id":    run.ID,
		"crews_total": run.CrewsTotal,
		"status":      run.Status,
	})
}

// GET /api/wallconfig/:config_id/status
func (h *WallConfigHandler) Status(c *gin.Context) {
	record, err := h.walls.ConfigStatus(c.Request.Context(), c.Param("config_id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"config_id":          record.ConfigHash,
		"status":             record.Status,
		"deletion_initiated": record.DeletionInitiated,
	})
}

// DELETE /api/wallconfig/:config_id
// Idempotent: a second request while deletion is underway succeeds without
// doing anything.
func (h *WallConfigHandler) Delete(c *gin.Context) {
	if err := h.orch.RequestDeletion(c.Request.Context(), c.Param("config_id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
