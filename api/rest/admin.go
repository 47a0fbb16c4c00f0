package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/game/insurance"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/quest"
	"github.com/kasuganosora/raidsim/server/scheduler"
	"go.uber.org/zap"
)

// InsuranceSweepJob is the scheduler job name of the periodic insurance sweep.
const InsuranceSweepJob = "insurance_sweep"

// AdminHandler handles operator endpoints. Routes must sit behind the
// AdminKey middleware.
type AdminHandler struct {
	profiles  *profile.Manager
	quests    *quest.Service
	insurance *insurance.Service
	sched     *scheduler.Scheduler
	logger    *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	profiles *profile.Manager,
	quests *quest.Service,
	ins *insurance.Service,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{profiles: profiles, quests: quests, insurance: ins, sched: sched, logger: logger}
}

// Status reports loaded quest definitions and scheduled jobs.
// GET /api/admin/status
func (h *AdminHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"quests":         h.quests.Definitions().Len(),
		"scheduler_jobs": h.sched.Jobs(),
	})
}

type resetQuestRequest struct {
	State string `json:"state" binding:"required"`
}

// ResetQuest forces a quest row into a state.
// POST /api/admin/profiles/:pid/quests/:id/reset
func (h *AdminHandler) ResetQuest(c *gin.Context) {
	var req resetQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, ok := profile.ParseQuestState(req.State)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quest state"})
		return
	}
	pid, qid := c.Param("pid"), c.Param("id")
	if err := h.quests.ResetQuestState(c.Request.Context(), pid, qid, state); err != nil {
		fail(c, err)
		return
	}
	h.logger.Info("admin reset quest state",
		zap.String("profile_id", pid), zap.String("quest_id", qid), zap.String("state", state.String()))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type addAllQuestsRequest struct {
	States []string `json:"states" binding:"required,min=1"`
}

// AddAllQuests puts every missing quest into the profile, timestamped for
// each of the given states and left in the last one.
// POST /api/admin/profiles/:pid/quests
func (h *AdminHandler) AddAllQuests(c *gin.Context) {
	var req addAllQuestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	states := make([]profile.QuestState, 0, len(req.States))
	for _, name := range req.States {
		s, ok := profile.ParseQuestState(name)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown quest state: " + name})
			return
		}
		states = append(states, s)
	}
	var count int
	err := h.profiles.Update(c.Request.Context(), c.Param("pid"), func(p *profile.Profile) error {
		h.quests.AddAllQuestsToProfile(p, states)
		count = len(p.Quests)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": count})
}

// RestoreBackup replaces a profile with its most recent backup.
// POST /api/admin/profiles/:pid/restore
func (h *AdminHandler) RestoreBackup(c *gin.Context) {
	pid := c.Param("pid")
	if err := h.profiles.RestoreLatestBackup(c.Request.Context(), pid); err != nil {
		fail(c, err)
		return
	}
	h.logger.Warn("admin restored profile backup", zap.String("profile_id", pid))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SweepInsurance runs the insurance sweep now. It answers 409 when a sweep
// is already in progress.
// POST /api/admin/insurance/sweep
func (h *AdminHandler) SweepInsurance(c *gin.Context) {
	if h.sched != nil && contains(h.sched.Jobs(), InsuranceSweepJob) {
		if !h.sched.RunNow(InsuranceSweepJob) {
			c.JSON(http.StatusConflict, gin.H{"error": "sweep already running"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if err := h.insurance.ProcessAllDueInsurance(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
