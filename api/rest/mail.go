package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/locale"
	mw "github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/model"
)

// MailHandler handles mailbox REST endpoints.
type MailHandler struct {
	svc    *mail.Service
	locale *locale.Service
}

// NewMailHandler creates a MailHandler.
func NewMailHandler(svc *mail.Service, loc *locale.Service) *MailHandler {
	return &MailHandler{svc: svc, locale: loc}
}

type mailView struct {
	model.Mail
	Text string `json:"text"`
}

// List returns the profile's mail with template text rendered in the
// requested language.
// GET /api/mail?lang=en
func (h *MailHandler) List(c *gin.Context) {
	mails, err := h.svc.List(c.Request.Context(), mw.GetProfileID(c))
	if err != nil {
		fail(c, err)
		return
	}
	lang := c.DefaultQuery("lang", c.GetHeader("Accept-Language"))
	out := make([]mailView, 0, len(mails))
	for _, m := range mails {
		out = append(out, mailView{Mail: m, Text: h.locale.GetText(lang, m.TemplateID, nil)})
	}
	c.JSON(http.StatusOK, gin.H{"mails": out})
}

// Unread returns the unread mail counter.
// GET /api/mail/unread
func (h *MailHandler) Unread(c *gin.Context) {
	n, err := h.svc.Unread(c.Request.Context(), mw.GetProfileID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// Claim moves a mail's items into the profile's stash.
// POST /api/mail/:id/claim
func (h *MailHandler) Claim(c *gin.Context) {
	mailID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	items, err := h.svc.Claim(c.Request.Context(), mw.GetProfileID(c), mailID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}
