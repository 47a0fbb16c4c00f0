package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/game/quest"
	mw "github.com/kasuganosora/raidsim/server/middleware"
)

// QuestHandler exposes the quest lifecycle of the authenticated profile.
type QuestHandler struct {
	svc *quest.Service
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(svc *quest.Service) *QuestHandler {
	return &QuestHandler{svc: svc}
}

// List returns the quests the player can currently see.
// GET /api/quests
func (h *QuestHandler) List(c *gin.Context) {
	quests, err := h.svc.GetVisibleQuests(c.Request.Context(), mw.GetProfileID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests})
}

type acceptRequest struct {
	Type string `json:"type"`
}

// Accept starts a quest. A body of {"type":"repeatable"} accepts a
// repeatable quest without its start delay.
// POST /api/quests/:id/accept
func (h *QuestHandler) Accept(c *gin.Context) {
	var req acceptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	res, err := h.svc.AcceptQuest(c.Request.Context(), mw.GetProfileID(c), c.Param("id"), req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Complete hands a quest in.
// POST /api/quests/:id/complete
func (h *QuestHandler) Complete(c *gin.Context) {
	res, err := h.svc.CompleteQuest(c.Request.Context(), mw.GetProfileID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Fail marks a quest failed.
// POST /api/quests/:id/fail
func (h *QuestHandler) Fail(c *gin.Context) {
	res, err := h.svc.FailQuest(c.Request.Context(), mw.GetProfileID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type soldRequest struct {
	Items []quest.SoldItem `json:"items" binding:"required,min=1,dive"`
}

// Sold records items sold to a trader against sell-to-trader quest counters.
// POST /api/quests/counters/sold
func (h *QuestHandler) Sold(c *gin.Context) {
	var req soldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.IncrementSoldToTraderCounters(c.Request.Context(), mw.GetProfileID(c), req.Items); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ItemConditions maps an item template to the find-item condition it
// satisfies on the first listed quest that has one.
// GET /api/quests/item-conditions?tpl=<template>&quests=<id,id>
func (h *QuestHandler) ItemConditions(c *gin.Context) {
	tpl := c.Query("tpl")
	quests := splitList(c.Query("quests"))
	if tpl == "" || len(quests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tpl and quests are required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conditions": h.svc.FindItemConditionByQuestItem(tpl, quests)})
}
