package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/api/rest"
	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/insurance"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/quest"
	"github.com/kasuganosora/raidsim/server/game/reward"
	"github.com/kasuganosora/raidsim/server/game/skill"
	"github.com/kasuganosora/raidsim/server/locale"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/resource"
	"github.com/kasuganosora/raidsim/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

const testProfile = "p1"

// harness wires the real services over an in-memory database, local cache
// and a small game database written to a temp dir.
type harness struct {
	db        *gorm.DB
	cache     cache.Cache
	res       *resource.ResourceLoader
	profiles  *profile.Manager
	skills    *skill.Service
	mail      *mail.Service
	quests    *quest.Service
	insurance *insurance.Service
	locale    *locale.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	res := resource.NewLoader(testutil.WriteGameData(t))
	require.NoError(t, res.Load())

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	log := nopLogger()
	profiles := profile.NewManager(profile.NewMemoryStore(), profile.NewLocker(nil, config.ProfileConfig{}, log), log)
	skills := skill.NewService(profiles, config.SkillConfig{ProgressRate: 1}, log)
	mailSvc := mail.NewService(db, c, ps, profiles, log)
	quests := quest.NewService(profiles, res.Definitions(), reward.NewApplier(skills, res.ExperienceTable(), log),
		mailSvc, config.QuestConfig{MailRedeemTimeHours: map[string]int{"default": 48}}, log)
	ins := insurance.NewService(profiles, res, res, mailSvc, skills, config.InsuranceConfig{
		ReturnChancePercent: map[string]float64{"prapor": 100},
		SweepWorkers:        2,
	}, log)

	h := &harness{
		db: db, cache: c, res: res, profiles: profiles, skills: skills, mail: mailSvc,
		quests: quests, insurance: ins, locale: locale.NewService(res.Locales, "en", log),
	}
	h.newProfile(t, testProfile)
	return h
}

func (h *harness) newProfile(t *testing.T, id string) {
	t.Helper()
	p := profile.New(id, "nick-"+id, profile.SideUsec, "standard", h.res.TraderIDs(), time.Now().Unix())
	p.Inventory.Items = []item.Item{{ID: "g1", Template: "tpl-gun", ParentID: p.Inventory.Stash, SlotID: "hideout"}}
	require.NoError(t, h.profiles.Create(context.Background(), p))
}

func (h *harness) profile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := h.profiles.Get(context.Background(), testProfile)
	require.NoError(t, err)
	return p
}

// router registers the player routes behind a stub that authenticates
// every request as testProfile.
func (h *harness) router() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(mw.AccountIDKey, int64(1))
		c.Set(mw.ProfileIDKey, testProfile)
		c.Next()
	})
	qh := rest.NewQuestHandler(h.quests)
	r.GET("/api/quests", qh.List)
	r.POST("/api/quests/:id/accept", qh.Accept)
	r.POST("/api/quests/:id/complete", qh.Complete)
	r.POST("/api/quests/:id/fail", qh.Fail)
	r.POST("/api/quests/counters/sold", qh.Sold)
	r.GET("/api/quests/item-conditions", qh.ItemConditions)

	ih := rest.NewInsuranceHandler(h.insurance)
	r.POST("/api/insurance", ih.Insure)
	r.GET("/api/insurance/cost", ih.Cost)
	r.POST("/api/insurance/raid-end", ih.RaidEnd)
	r.POST("/api/insurance/process", ih.Process)

	sh := rest.NewSkillHandler(h.skills)
	r.POST("/api/skills/:id/points", sh.AddPoints)

	mh := rest.NewMailHandler(h.mail, h.locale)
	r.GET("/api/mail", mh.List)
	r.GET("/api/mail/unread", mh.Unread)
	r.POST("/api/mail/:id/claim", mh.Claim)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body any, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
