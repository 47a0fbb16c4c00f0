package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/game/insurance"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/quest"
	"github.com/kasuganosora/raidsim/server/game/skill"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound),
		errors.Is(err, profile.ErrNoBackup),
		errors.Is(err, quest.ErrQuestNotFound),
		errors.Is(err, quest.ErrQuestNotInProfile),
		errors.Is(err, mail.ErrMailNotFound),
		errors.Is(err, skill.ErrSkillNotFound),
		errors.Is(err, insurance.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, mail.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, mail.ErrMailExpired):
		return http.StatusGone
	case errors.Is(err, skill.ErrNegativePoints),
		errors.Is(err, insurance.ErrTraderNotInsuring):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error and attaches it to the context so the
// audit log records it. Unexpected errors are not echoed to the client.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
