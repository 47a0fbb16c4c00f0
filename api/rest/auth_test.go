package rest_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/api/rest"
	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/profile"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSec = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTLH:   72 * time.Hour,
}

func newAuthRouter(t *testing.T) (*gin.Engine, *harness) {
	h := newHarness(t)
	ah := rest.NewAuthHandler(h.db, h.cache, testSec, h.profiles, h.res.TraderIDs(), nopLogger())
	r := gin.New()
	r.POST("/api/auth/login", ah.Login)
	r.POST("/api/auth/logout", mw.Auth(testSec, h.cache), ah.Logout)
	r.POST("/api/auth/refresh", mw.Auth(testSec, h.cache), ah.Refresh)
	return r, h
}

func TestLoginAutoRegister(t *testing.T) {
	r, h := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "pass1234",
		"side":     "Bear",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[map[string]any](t, w)
	assert.NotEmpty(t, resp["token"])
	assert.NotZero(t, resp["account_id"])
	pid, _ := resp["profile_id"].(string)
	require.NotEmpty(t, pid)

	p, err := h.profiles.Get(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Info.Nickname)
	assert.Equal(t, profile.SideBear, p.Info.Side)
	assert.Equal(t, "standard", p.Info.GameVersion)
	assert.Len(t, p.TradersInfo, 2)
}

func TestLoginInvalidSide(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := postJSON(r, "/api/auth/login", map[string]string{"username": "zed", "password": "pass1234", "side": "Scav"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	r, _ := newAuthRouter(t)

	postJSON(r, "/api/auth/login", map[string]string{"username": "bob", "password": "correct"})

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginSecondTime(t *testing.T) {
	r, _ := newAuthRouter(t)

	w1 := postJSON(r, "/api/auth/login", map[string]string{"username": "carol", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w1.Code)

	w2 := postJSON(r, "/api/auth/login", map[string]string{"username": "carol", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, decode[map[string]any](t, w1)["profile_id"], decode[map[string]any](t, w2)["profile_id"])
}

func TestLogout(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "dave", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]any](t, w)["token"].(string)

	w2 := postJSON(r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w2.Code)

	// session removed
	w3 := postJSON(r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestRefresh(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "refreshuser", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[map[string]any](t, w)["token"].(string)

	w2 := postJSON(r, "/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w2.Code)
	newToken := decode[map[string]any](t, w2)["token"].(string)
	assert.NotEmpty(t, newToken)

	claims, err := mw.ParseToken(newToken, testSec.JWTSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ProfileID)
}

func TestRefresh_NoToken(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := postJSON(r, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginBannedAccount(t *testing.T) {
	r, h := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)

	h.db.Model(&model.Account{}).Where("username = ?", "bannedacc").Update("status", 0)

	w2 := postJSON(r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w2.Code)
}
