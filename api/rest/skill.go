package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/game/skill"
	mw "github.com/kasuganosora/raidsim/server/middleware"
)

// SkillHandler exposes skill progress.
type SkillHandler struct {
	svc *skill.Service
}

// NewSkillHandler creates a SkillHandler.
func NewSkillHandler(svc *skill.Service) *SkillHandler {
	return &SkillHandler{svc: svc}
}

type pointsRequest struct {
	Points *float64 `json:"points" binding:"required"`
}

// AddPoints adds visual skill points.
// POST /api/skills/:id/points
func (h *SkillHandler) AddPoints(c *gin.Context) {
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sk, err := h.svc.AddPoints(c.Request.Context(), mw.GetProfileID(c), c.Param("id"), *req.Points)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"skill": sk,
		"level": int(sk.Progress / 100),
		"elite": sk.Progress >= skill.MaxProgress,
	})
}
