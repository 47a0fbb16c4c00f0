package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)
	r := gin.New()
	r.Use(TraceID(), Recovery(log))
	r.POST("/api/quests/:id/complete", func(c *gin.Context) {
		c.Set(ProfileIDKey, "p1")
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/quests/q1/complete", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, w.Header().Get(TraceIDHeader), body["trace_id"])

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "p1", fields["profile_id"])
	assert.Equal(t, "/api/quests/:id/complete", fields["route"])
}

func TestLogger_LevelByStatus(t *testing.T) {
	log, logs := observed(zapcore.WarnLevel)
	r := gin.New()
	r.Use(Logger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusInternalServerError)
	})

	for _, p := range []string{"/ok", "/missing", "/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/broken", entries[1].ContextMap()["route"])
	assert.Contains(t, entries[1].ContextMap()["errors"], assert.AnError.Error())
}
