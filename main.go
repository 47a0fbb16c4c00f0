package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/raidsim/server/api/rest"
	"github.com/kasuganosora/raidsim/server/api/sse"
	"github.com/kasuganosora/raidsim/server/audit"
	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/config"
	dbadapter "github.com/kasuganosora/raidsim/server/db"
	"github.com/kasuganosora/raidsim/server/game/insurance"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/quest"
	"github.com/kasuganosora/raidsim/server/game/reward"
	"github.com/kasuganosora/raidsim/server/game/skill"
	"github.com/kasuganosora/raidsim/server/locale"
	"github.com/kasuganosora/raidsim/server/metrics"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/model"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"github.com/kasuganosora/raidsim/server/resource"
	"github.com/kasuganosora/raidsim/server/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Game database ----
	res := resource.NewLoader(cfg.Data.Path)
	if err := res.Load(); err != nil {
		log.Fatalf("game data: %v", err)
	}
	logger.Info("game data loaded",
		zap.Int("quests", res.Definitions().Len()), zap.Int("traders", len(res.TraderIDs())),
		zap.Int("items", len(res.Items)), zap.Int("locales", len(res.Locales)))

	// ---- Services ----
	profiles := profile.NewManager(profile.NewGormStore(db), profile.NewLocker(c, cfg.Profile, logger), logger)
	loc := locale.NewService(res.Locales, cfg.Locale.Default, logger)
	logger.Info("locales loaded", zap.Strings("languages", loc.Languages()), zap.String("default", cfg.Locale.Default))
	skillSvc := skill.NewService(profiles, cfg.Skill, logger)
	mailSvc := mail.NewService(db, c, pubsub, profiles, logger)
	rewards := reward.NewApplier(skillSvc, res.ExperienceTable(), logger)
	questSvc := quest.NewService(profiles, res.Definitions(), rewards, mailSvc, cfg.Quest, logger)
	insSvc := insurance.NewService(profiles, res, res, mailSvc, skillSvc, cfg.Insurance, logger)

	// ---- Hooks ----
	hooks := hook.NewCenter(logger)
	for _, ev := range []string{hook.QuestAccepted, hook.QuestCompleted, hook.QuestFailed, hook.InsuranceReturned} {
		hooks.Register(ev, 100, "audit", auditSvc.Observe)
	}
	questSvc.SetHooks(hooks)
	insSvc.SetHooks(hooks)

	// ---- Scheduler ----
	sched := scheduler.New(ctx, logger)
	defer sched.Stop()
	sched.Every(apirest.InsuranceSweepJob, cfg.Insurance.SweepInterval, insSvc.ProcessAllDueInsurance)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst, mw.ByClientIP))
	r.Use(metrics.Middleware())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, profiles, res.TraderIDs(), logger)
	questH := apirest.NewQuestHandler(questSvc)
	insH := apirest.NewInsuranceHandler(insSvc)
	skillH := apirest.NewSkillHandler(skillSvc)
	mailH := apirest.NewMailHandler(mailSvc, loc)
	adminH := apirest.NewAdminHandler(profiles, questSvc, insSvc, sched, logger)

	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)

	auth := mw.Auth(cfg.Security, c)
	perProfile := mw.RateLimit(rate.Limit(cfg.Security.ProfileRateLimitRPS), cfg.Security.ProfileRateLimitBurst, mw.ByProfile)
	api := r.Group("/api", auditSvc.Middleware())
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)

		questG := api.Group("/quests", auth, perProfile)
		questG.GET("", questH.List)
		questG.POST("/:id/accept", questH.Accept)
		questG.POST("/:id/complete", questH.Complete)
		questG.POST("/:id/fail", questH.Fail)
		questG.POST("/counters/sold", questH.Sold)
		questG.GET("/item-conditions", questH.ItemConditions)

		insG := api.Group("/insurance", auth, perProfile)
		insG.POST("", insH.Insure)
		insG.GET("/cost", insH.Cost)
		insG.POST("/raid-end", insH.RaidEnd)
		insG.POST("/process", insH.Process)

		api.POST("/skills/:id/points", auth, perProfile, skillH.AddPoints)

		mailG := api.Group("/mail", auth, perProfile)
		mailG.GET("", mailH.List)
		mailG.GET("/unread", mailH.Unread)
		mailG.POST("/:id/claim", mailH.Claim)

		adminG := api.Group("/admin", mw.IPWhitelist(cfg.Server.AdminIPs), mw.AdminKey(cfg.Server.AdminKey))
		adminG.GET("/status", adminH.Status)
		adminG.POST("/profiles/:pid/quests", adminH.AddAllQuests)
		adminG.POST("/profiles/:pid/quests/:id/reset", adminH.ResetQuest)
		adminG.POST("/profiles/:pid/restore", adminH.RestoreBackup)
		adminG.POST("/insurance/sweep", adminH.SweepInsurance)
		adminG.POST("/announce", sseH.PostAnnouncement)
	}

	// ---- SSE ----
	r.GET("/sse", sseH.ServeSSE)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
