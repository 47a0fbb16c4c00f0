// Package sse streams mail notifications and server announcements to
// logged-in clients.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/mail"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"go.uber.org/zap"
)

const (
	announceChannel = "announce"
	keepalive       = 30 * time.Second
)

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	sec       config.SecurityConfig
	c         cache.Cache
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, sec: sec, keepalive: keepalive, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>. It streams "mail" events for the
// token's profile and "announce" events for everyone.
func (h *Handler) ServeSSE(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" && len(h.sec.AllowedOrigins) > 0 &&
		!slices.Contains(h.sec.AllowedOrigins, origin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.c.Exists(ctx, mw.SessionKey(tokenStr))
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	mailChannel := mail.Channel(claims.ProfileID)
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, mailChannel, announceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("profile_id", claims.ProfileID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			event := "announce"
			if msg.Channel == mailChannel {
				event = "mail"
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// comment line keeps proxies from closing the stream
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// Announce publishes an announcement to every connected client.
func (h *Handler) Announce(ctx context.Context, message string) error {
	return h.pubsub.Publish(ctx, announceChannel, message)
}

type announceRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

// PostAnnouncement broadcasts an admin message to every stream.
// POST /api/admin/announce
func (h *Handler) PostAnnouncement(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := json.Marshal(gin.H{"message": req.Message, "at": time.Now().Unix()})
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	if err := h.Announce(c.Request.Context(), string(data)); err != nil {
		h.logger.Error("announce failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
