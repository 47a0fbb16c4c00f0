package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/raidsim/server/cache"
	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/profile"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultGameVersion = "standard"

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db        *gorm.DB
	cache     cache.Cache
	sec       config.SecurityConfig
	profiles  *profile.Manager
	traderIDs []string
	logger    *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. New profiles know every trader
// in traderIDs.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig,
	profiles *profile.Manager, traderIDs []string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, profiles: profiles, traderIDs: traderIDs, logger: logger}
}

type loginRequest struct {
	Username    string `json:"username" binding:"required,min=2,max=32"`
	Password    string `json:"password" binding:"required,min=4,max=64"`
	Side        string `json:"side" binding:"omitempty,oneof=Bear Usec"`
	GameVersion string `json:"game_version" binding:"omitempty,max=32"`
}

// Login handles POST /api/auth/login.
// Auto-registers on first login if the username does not exist, creating
// the account's profile on the requested side and game version.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		acc, err = h.register(c.Request.Context(), req)
		if err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			} else {
				h.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			}
			return
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	} else {
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if acc.Status == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}
	}

	token, err := h.issue(c.Request.Context(), acc.ID, acc.ProfileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Update last login (best-effort).
	_ = h.db.Model(&acc).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
		"profile_id": acc.ProfileID,
	})
}

// register creates the account row and its profile. The account is deleted
// again when the profile cannot be stored.
func (h *AuthHandler) register(ctx context.Context, req loginRequest) (model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return model.Account{}, err
	}
	side := req.Side
	if side == "" {
		side = profile.SideUsec
	}
	version := req.GameVersion
	if version == "" {
		version = defaultGameVersion
	}
	acc := model.Account{
		Username:     req.Username,
		PasswordHash: string(hash),
		ProfileID:    uuid.NewString(),
		Status:       1,
	}
	if err := h.db.WithContext(ctx).Create(&acc).Error; err != nil {
		return model.Account{}, err
	}
	p := profile.New(acc.ProfileID, req.Username, side, version, h.traderIDs, time.Now().Unix())
	if err := h.profiles.Create(ctx, p); err != nil {
		h.db.WithContext(ctx).Delete(&acc)
		return model.Account{}, err
	}
	h.logger.Info("account registered",
		zap.Int64("account_id", acc.ID), zap.String("profile_id", acc.ProfileID),
		zap.String("side", side), zap.String("game_version", version))
	return acc, nil
}

func (h *AuthHandler) issue(ctx context.Context, accountID int64, profileID string) (string, error) {
	token, err := mw.GenerateToken(accountID, profileID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(accountID, 10), h.sec.JWTTTLH)
	return token, nil
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenStr := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(tokenStr))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	profileID := mw.GetProfileID(c)
	if accountID == 0 || profileID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	oldToken := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(oldToken))

	newToken, err := h.issue(c.Request.Context(), accountID, profileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
