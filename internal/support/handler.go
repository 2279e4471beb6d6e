package support

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderbot_backend/platform/httpkit"
	"orderbot_backend/platform/validator"
)

// Handler handles support HTTP requests.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a support handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

type openQuestionRequest struct {
	Title string `json:"title" validate:"max=200"`
	Body  string `json:"body" validate:"required,max=4000"`
}

type replyRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

type listThreadsResponse struct {
	Items []Thread `json:"items"`
	Total int      `json:"total"`
}

// OpenQuestion handles POST /support/threads.
func (h *Handler) OpenQuestion(c *gin.Context) {
	var req openQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	userID, _ := c.Value(httpkit.ContextUserIDKey).(uuid.UUID)

	thread, err := h.svc.OpenQuestion(c.Request.Context(), userID, 0, "", req.Title, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, thread)
}

// ListThreads handles GET /admin/support/threads.
func (h *Handler) ListThreads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	threads, total, err := h.svc.ListThreads(c.Request.Context(), c.Query("status"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, listThreadsResponse{Items: threads, Total: total})
}

// GetThread handles GET /admin/support/threads/:id.
func (h *Handler) GetThread(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid thread id", nil)
		return
	}

	thread, err := h.svc.GetThread(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, thread)
}

// Reply handles POST /admin/support/threads/:id/messages.
func (h *Handler) Reply(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid thread id", nil)
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	userID, _ := c.Value(httpkit.ContextUserIDKey).(uuid.UUID)

	message, err := h.svc.Reply(c.Request.Context(), id, userID, "Поддержка", req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, message)
}

// CloseThread handles PATCH /admin/support/threads/:id/close.
func (h *Handler) CloseThread(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid thread id", nil)
		return
	}
	if httpkit.HandleError(c, h.svc.CloseThread(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}
