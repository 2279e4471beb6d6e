// Package handler provides HTTP handlers for authentication.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderbot_backend/internal/auth/repository"
	"orderbot_backend/internal/auth/service"
	"orderbot_backend/internal/auth/transport"
	"orderbot_backend/platform/httpkit"
	"orderbot_backend/platform/validator"
)

// Handler handles auth HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates an auth handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SignIn handles POST /auth/sign-in.
func (h *Handler) SignIn(c *gin.Context) {
	var req transport.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	pair, err := h.svc.SignIn(c.Request.Context(), req.Phone, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pair)
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req transport.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pair)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := c.Value(httpkit.ContextUserIDKey).(uuid.UUID)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "not authenticated", nil)
		return
	}

	user, err := h.svc.Me(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, user)
}

// Register handles POST /admin/users: staff account creation.
func (h *Handler) Register(c *gin.Context) {
	var req transport.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	if req.Role == "" {
		req.Role = repository.RoleClient
	}

	user, err := h.svc.Register(c.Request.Context(), req.FIO, req.Phone, req.Password, req.Role)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, user)
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, total, err := h.svc.ListUsers(c.Request.Context(), c.Query("role"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListUsersResponse{Items: users, Total: total})
}

// SetRole handles PATCH /admin/users/:id/role.
func (h *Handler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}

	var req transport.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.SetRole(c.Request.Context(), id, req.Role)) {
		return
	}
	c.Status(http.StatusNoContent)
}
