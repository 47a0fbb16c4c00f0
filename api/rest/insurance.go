package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/game/insurance"
	"github.com/kasuganosora/raidsim/server/game/item"
	mw "github.com/kasuganosora/raidsim/server/middleware"
)

// InsuranceHandler exposes insurance for the authenticated profile.
type InsuranceHandler struct {
	svc *insurance.Service
}

// NewInsuranceHandler creates an InsuranceHandler.
func NewInsuranceHandler(svc *insurance.Service) *InsuranceHandler {
	return &InsuranceHandler{svc: svc}
}

type insureRequest struct {
	TraderID string   `json:"trader_id" binding:"required"`
	Items    []string `json:"items" binding:"required,min=1"`
}

// Insure insures inventory items with a trader.
// POST /api/insurance
func (h *InsuranceHandler) Insure(c *gin.Context) {
	var req insureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.Insure(c.Request.Context(), mw.GetProfileID(c), req.TraderID, req.Items); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Cost prices insurance per trader and item template.
// GET /api/insurance/cost?traders=a,b&items=x,y
func (h *InsuranceHandler) Cost(c *gin.Context) {
	traders := splitList(c.Query("traders"))
	items := splitList(c.Query("items"))
	if len(traders) == 0 || len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "traders and items are required"})
		return
	}
	cost, err := h.svc.Cost(c.Request.Context(), mw.GetProfileID(c), traders, items)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cost)
}

type raidEndRequest struct {
	Location string      `json:"location" binding:"required"`
	Lost     []item.Item `json:"lost"`
}

// RaidEnd packages the insured part of the gear lost in a raid.
// POST /api/insurance/raid-end
func (h *InsuranceHandler) RaidEnd(c *gin.Context) {
	var req raidEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.svc.Schedule(c.Request.Context(), mw.GetProfileID(c), req.Location, req.Lost)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": n})
}

// Process returns every due insurance package of the profile.
// POST /api/insurance/process
func (h *InsuranceHandler) Process(c *gin.Context) {
	out, err := h.svc.ProcessInsuranceReturn(c.Request.Context(), mw.GetProfileID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if out == nil {
		out = []insurance.Outcome{}
	}
	c.JSON(http.StatusOK, gin.H{"processed": out})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
