package erp

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/httpkit"
)

const maxPushBodySize = 32 << 20

// SyncEnqueuer queues a catalog sync to run in the worker process.
// scheduler.Client satisfies it.
type SyncEnqueuer interface {
	EnqueueCatalogSync(ctx context.Context, reason string) error
}

// Handler accepts catalog snapshots pushed by the ERP and admin-triggered
// sync requests.
type Handler struct {
	svc      *Service
	enqueuer SyncEnqueuer
}

// NewHandler creates the ERP handler. enqueuer may be nil, in which case
// admin-triggered syncs run inline.
func NewHandler(svc *Service, enqueuer SyncEnqueuer) *Handler {
	return &Handler{svc: svc, enqueuer: enqueuer}
}

// TokenAuthMiddleware validates the shared webhook token, accepted either
// as a bearer token or in the X-ERP-Token header. An empty configured
// token disables the endpoint entirely.
func TokenAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		presented := c.GetHeader("X-ERP-Token")
		if presented == "" {
			presented = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// PushCatalog handles POST /erp/catalog. The ERP posts its catalog in
// whatever shape it has; unusable entries are skipped and counted.
func (h *Handler) PushCatalog(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBodySize))
	if err != nil || len(raw) == 0 {
		httpkit.HandleError(c, apperr.BadRequest("request body is empty"))
		return
	}

	items := NormalizeItems(raw)
	if len(items) == 0 {
		httpkit.HandleError(c, apperr.BadRequest("payload contains no usable items"))
		return
	}

	upserted, skipped, err := h.svc.Apply(c.Request.Context(), SourcePush, items)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"upserted": upserted, "skipped": skipped})
}

// TriggerSync handles POST /erp/sync (admin). With a queue client the
// sync runs in the worker; without one it runs inline.
func (h *Handler) TriggerSync(c *gin.Context) {
	if h.enqueuer != nil {
		if err := h.enqueuer.EnqueueCatalogSync(c.Request.Context(), "manual"); err != nil {
			httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, "failed to queue catalog sync", err))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}

	upserted, skipped, err := h.svc.PullSync(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"upserted": upserted, "skipped": skipped})
}
