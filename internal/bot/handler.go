package bot

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"orderbot_backend/platform/logger"
)

const maxUpdateBodySize = 1 << 20

// Handler receives webhook updates from the bot platform.
type Handler struct {
	svc *Service
	log *logger.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// SecretAuthMiddleware validates the webhook secret token header set when
// the webhook was registered. An empty configured secret disables the
// endpoint entirely.
func SecretAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		presented := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
			return
		}
		c.Next()
	}
}

// Webhook handles POST /bot/webhook. It always acknowledges with 200 so
// the platform does not redeliver updates we cannot process anyway.
func (h *Handler) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBodySize))
	if err != nil {
		h.log.Error("bot webhook body read failed", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var upd Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		h.log.Error("bot webhook payload rejected", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.svc.HandleUpdate(c.Request.Context(), upd); err != nil {
		h.log.Error("bot reply delivery failed", "error", err.Error())
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
