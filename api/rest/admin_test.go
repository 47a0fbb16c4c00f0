package rest_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/api/rest"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/profile"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "secret-admin"

func (h *harness) adminRouter(t *testing.T, sched *scheduler.Scheduler) *gin.Engine {
	t.Helper()
	ah := rest.NewAdminHandler(h.profiles, h.quests, h.insurance, sched, nopLogger())
	r := gin.New()
	g := r.Group("/api/admin", mw.AdminKey(adminKey))
	g.GET("/status", ah.Status)
	g.POST("/profiles/:pid/quests/:id/reset", ah.ResetQuest)
	g.POST("/profiles/:pid/quests", ah.AddAllQuests)
	g.POST("/profiles/:pid/restore", ah.RestoreBackup)
	g.POST("/insurance/sweep", ah.SweepInsurance)
	return r
}

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(context.Background(), nopLogger())
	t.Cleanup(s.Stop)
	return s
}

func TestAdmin_RequiresKey(t *testing.T) {
	h := newHarness(t)
	r := h.adminRouter(t, newTestScheduler(t))

	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodGet, "/api/admin/status", nil).Code)
	assert.Equal(t, http.StatusForbidden,
		doJSON(r, http.MethodGet, "/api/admin/status", nil, mw.AdminKeyHeader, "wrong").Code)
}

func TestAdmin_Status(t *testing.T) {
	h := newHarness(t)
	sched := newTestScheduler(t)
	sched.Every(rest.InsuranceSweepJob, time.Hour, h.insurance.ProcessAllDueInsurance)
	r := h.adminRouter(t, sched)

	w := doJSON(r, http.MethodGet, "/api/admin/status", nil, mw.AdminKeyHeader, adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Quests int      `json:"quests"`
		Jobs   []string `json:"scheduler_jobs"`
	}](t, w)
	assert.Equal(t, 3, resp.Quests)
	assert.Equal(t, []string{rest.InsuranceSweepJob}, resp.Jobs)
}

func TestAdmin_ResetQuestAndRestore(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, postJSON(h.router(), "/api/quests/q1/accept", nil).Code)
	r := h.adminRouter(t, newTestScheduler(t))

	w := postJSON(r, "/api/admin/profiles/p1/restore", nil, mw.AdminKeyHeader, adminKey)
	assert.Equal(t, http.StatusNotFound, w.Code, "no backup yet")

	w = postJSON(r, "/api/admin/profiles/p1/quests/q1/reset", map[string]string{"state": "success"},
		mw.AdminKeyHeader, adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	row, _ := h.profile(t).Quest("q1")
	assert.Equal(t, profile.QuestSuccess, row.Status)

	w = postJSON(r, "/api/admin/profiles/p1/restore", nil, mw.AdminKeyHeader, adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	row, _ = h.profile(t).Quest("q1")
	assert.Equal(t, profile.QuestStarted, row.Status)
}

func TestAdmin_ResetQuestErrors(t *testing.T) {
	h := newHarness(t)
	r := h.adminRouter(t, newTestScheduler(t))

	w := postJSON(r, "/api/admin/profiles/p1/quests/q1/reset", map[string]string{"state": "Bogus"},
		mw.AdminKeyHeader, adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(r, "/api/admin/profiles/p1/quests/q1/reset", map[string]string{"state": "Started"},
		mw.AdminKeyHeader, adminKey)
	assert.Equal(t, http.StatusNotFound, w.Code, "quest not in profile")
	w = postJSON(r, "/api/admin/profiles/ghost/quests/q1/reset", map[string]string{"state": "Started"},
		mw.AdminKeyHeader, adminKey)
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown profile")
}

func TestAdmin_AddAllQuests(t *testing.T) {
	h := newHarness(t)
	r := h.adminRouter(t, newTestScheduler(t))

	w := postJSON(r, "/api/admin/profiles/p1/quests", map[string]any{"states": []string{"AvailableForStart", "Started"}},
		mw.AdminKeyHeader, adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(3), decode[map[string]any](t, w)["quests"])

	p := h.profile(t)
	for _, id := range []string{"q1", "q2", "sell1"} {
		row, ok := p.Quest(id)
		require.True(t, ok, id)
		assert.Equal(t, profile.QuestStarted, row.Status)
		assert.Contains(t, row.StatusTimers, profile.QuestAvailableForStart)
	}

	w = postJSON(r, "/api/admin/profiles/p1/quests", map[string]any{"states": []string{}}, mw.AdminKeyHeader, adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(r, "/api/admin/profiles/p1/quests", map[string]any{"states": []string{"Nope"}}, mw.AdminKeyHeader, adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_SweepViaScheduler(t *testing.T) {
	h := newHarness(t)
	sched := newTestScheduler(t)
	var runs int32
	sched.Every(rest.InsuranceSweepJob, time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return h.insurance.ProcessAllDueInsurance(ctx)
	})
	r := h.adminRouter(t, sched)

	w := postJSON(r, "/api/admin/insurance/sweep", nil, mw.AdminKeyHeader, adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestAdmin_SweepDirect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.profiles.Update(context.Background(), testProfile, func(p *profile.Profile) error {
		p.InsuranceList = append(p.InsuranceList, profile.InsurancePackage{
			TraderID: "prapor", MessageTemplateID: "ins-found",
			SystemData: profile.InsuranceSystemData{Location: "bigmap"},
			Items:      item.Clone(p.Inventory.Items[:1]),
		})
		return nil
	}))
	r := h.adminRouter(t, newTestScheduler(t))

	w := postJSON(r, "/api/admin/insurance/sweep", nil, mw.AdminKeyHeader, adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, h.profile(t).InsuranceList)
}
