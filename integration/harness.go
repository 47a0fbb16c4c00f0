package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/raidsim/server/api/rest"
	"github.com/kasuganosora/raidsim/server/api/sse"
	"github.com/kasuganosora/raidsim/server/audit"
	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/insurance"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/quest"
	"github.com/kasuganosora/raidsim/server/game/reward"
	"github.com/kasuganosora/raidsim/server/game/skill"
	"github.com/kasuganosora/raidsim/server/locale"
	"github.com/kasuganosora/raidsim/server/metrics"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"github.com/kasuganosora/raidsim/server/resource"
	"github.com/kasuganosora/raidsim/server/scheduler"
	"github.com/kasuganosora/raidsim/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// AdminKey is the admin key the test server accepts.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB       *gorm.DB
	Cache    cache.Cache
	PubSub   cache.PubSub
	Profiles *profile.Manager
	Audit    *audit.Service
	Sched    *scheduler.Scheduler
	Server   *httptest.Server
	URL      string // http://127.0.0.1:<port>
	Sec      config.SecurityConfig
}

// NewTestServer creates a fully wired server over the testutil game data.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	res := resource.NewLoader(testutil.WriteGameData(t))
	require.NoError(t, res.Load())

	// ---- Services ----
	profiles := profile.NewManager(profile.NewGormStore(db), profile.NewLocker(c, config.ProfileConfig{}, logger), logger)
	loc := locale.NewService(res.Locales, "en", logger)
	skillSvc := skill.NewService(profiles, config.SkillConfig{ProgressRate: 1}, logger)
	mailSvc := mail.NewService(db, c, pubsub, profiles, logger)
	rewards := reward.NewApplier(skillSvc, res.ExperienceTable(), logger)
	questSvc := quest.NewService(profiles, res.Definitions(), rewards, mailSvc,
		config.QuestConfig{MailRedeemTimeHours: map[string]int{"default": 48}}, logger)
	insSvc := insurance.NewService(profiles, res, res, mailSvc, skillSvc, config.InsuranceConfig{
		ReturnChancePercent:             map[string]float64{"prapor": 100},
		ChanceNoAttachmentsTakenPercent: 100,
		SimulateItemsBeingTaken:         true,
		StorageTime:                     72 * time.Hour,
		SweepWorkers:                    2,
	}, logger)
	auditSvc := audit.New(db, logger)

	// ---- Hooks ----
	hooks := hook.NewCenter(logger)
	for _, ev := range []string{hook.QuestAccepted, hook.QuestCompleted, hook.QuestFailed, hook.InsuranceReturned} {
		hooks.Register(ev, 100, "audit", auditSvc.Observe)
	}
	questSvc.SetHooks(hooks)
	insSvc.SetHooks(hooks)

	sched := scheduler.New(context.Background(), logger)
	sched.Every(apirest.InsuranceSweepJob, time.Hour, insSvc.ProcessAllDueInsurance)

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst, mw.ByClientIP))
	r.Use(metrics.Middleware())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ---- REST API routes (mirrors main.go) ----
	authH := apirest.NewAuthHandler(db, c, sec, profiles, res.TraderIDs(), logger)
	questH := apirest.NewQuestHandler(questSvc)
	insH := apirest.NewInsuranceHandler(insSvc)
	skillH := apirest.NewSkillHandler(skillSvc)
	mailH := apirest.NewMailHandler(mailSvc, loc)
	adminH := apirest.NewAdminHandler(profiles, questSvc, insSvc, sched, logger)

	sseH := sse.NewHandler(pubsub, c, sec, logger)

	auth := mw.Auth(sec, c)
	api := r.Group("/api", auditSvc.Middleware())
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)

		questG := api.Group("/quests", auth)
		questG.GET("", questH.List)
		questG.POST("/:id/accept", questH.Accept)
		questG.POST("/:id/complete", questH.Complete)
		questG.POST("/:id/fail", questH.Fail)
		questG.POST("/counters/sold", questH.Sold)
		questG.GET("/item-conditions", questH.ItemConditions)

		insG := api.Group("/insurance", auth)
		insG.POST("", insH.Insure)
		insG.GET("/cost", insH.Cost)
		insG.POST("/raid-end", insH.RaidEnd)
		insG.POST("/process", insH.Process)

		api.POST("/skills/:id/points", auth, skillH.AddPoints)

		mailG := api.Group("/mail", auth)
		mailG.GET("", mailH.List)
		mailG.GET("/unread", mailH.Unread)
		mailG.POST("/:id/claim", mailH.Claim)

		adminG := api.Group("/admin", mw.IPWhitelist([]string{"127.0.0.0/8", "::1"}), mw.AdminKey(AdminKey))
		adminG.GET("/status", adminH.Status)
		adminG.POST("/profiles/:pid/quests", adminH.AddAllQuests)
		adminG.POST("/profiles/:pid/quests/:id/reset", adminH.ResetQuest)
		adminG.POST("/profiles/:pid/restore", adminH.RestoreBackup)
		adminG.POST("/insurance/sweep", adminH.SweepInsurance)
		adminG.POST("/announce", sseH.PostAnnouncement)
	}

	// ---- SSE ----
	r.GET("/sse", sseH.ServeSSE)

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:       db,
		Cache:    c,
		PubSub:   pubsub,
		Profiles: profiles,
		Audit:    auditSvc,
		Sched:    sched,
		Server:   server,
		URL:      server.URL,
		Sec:      sec,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the server, the scheduler and flushes the audit log. It
// is safe to call more than once.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Sched.Stop()
	ts.Audit.Stop(context.Background())
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body and Bearer token. Extra
// headers are given as name, value pairs.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, token string, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// RequireStatus asserts the response status and closes the body.
func RequireStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != status {
		data, _ := io.ReadAll(resp.Body)
		require.Equal(t, status, resp.StatusCode, "body: %s", string(data))
	}
}

// --- Auth helpers ---

// Login logs in (auto-registering on first call) and returns the token and
// profile id.
func (ts *TestServer) Login(t *testing.T, username, password string) (token, profileID string) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]any
	ReadJSON(t, resp, &result)
	return result["token"].(string), result["profile_id"].(string)
}

var idCounter atomic.Int64

// UniqueID returns prefix with a process-unique suffix.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, idCounter.Add(1))
}

// --- SSE client ---

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
}

// SSEClient reads events from /sse on a background goroutine.
type SSEClient struct {
	resp   *http.Response
	events chan Event
}

// ConnectSSE opens the event stream and waits for the connected event.
func (ts *TestServer) ConnectSSE(t *testing.T, token string) *SSEClient {
	t.Helper()
	resp, err := http.Get(ts.URL + "/sse?token=" + token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := &SSEClient{resp: resp, events: make(chan Event, 64)}
	go sc.readLoop()
	t.Cleanup(func() { resp.Body.Close() })

	ev := sc.Next(t, 2*time.Second)
	require.Equal(t, "connected", ev.Name)
	return sc
}

func (sc *SSEClient) readLoop() {
	defer close(sc.events)
	rd := bufio.NewReader(sc.resp.Body)
	var ev Event
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.Name != "":
			sc.events <- ev
			ev = Event{}
		}
	}
}

// Next returns the next event or fails after timeout.
func (sc *SSEClient) Next(t *testing.T, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-sc.events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for event")
		return Event{}
	}
}
