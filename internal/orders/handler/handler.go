// Package handler provides HTTP handlers for the orders module.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderbot_backend/internal/orders/repository"
	"orderbot_backend/internal/orders/service"
	"orderbot_backend/internal/orders/transport"
	"orderbot_backend/internal/resolver"
	"orderbot_backend/platform/httpkit"
	"orderbot_backend/platform/validator"
)

// Handler handles order HTTP requests.
type Handler struct {
	svc      *service.Service
	resolver *resolver.Service
	val      *validator.Validator
}

// New creates an orders handler.
func New(svc *service.Service, res *resolver.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, resolver: res, val: val}
}

// Create handles POST /orders: resolves the submitted text and persists
// the outcome as an order in one step.
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	userID, _ := c.Value(httpkit.ContextUserIDKey).(uuid.UUID)

	res := h.resolver.Resolve(c.Request.Context(), userID, req.Text)
	order, err := h.svc.CreateFromResolution(c.Request.Context(), userID, 0, res)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, order)
}

// GetByID handles GET /orders/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid order id", nil)
		return
	}

	order, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, order)
}

// List handles GET /orders with status filter and pagination.
func (h *Handler) List(c *gin.Context) {
	params := repository.ListOrdersParams{Status: c.Query("status")}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	if raw := c.Query("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid userId", nil)
			return
		}
		params.UserID = &id
	}

	orders, total, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListOrdersResponse{Items: orders, Total: total})
}

// ChangeStatus handles PATCH /admin/orders/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid order id", nil)
		return
	}

	var req transport.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	order, err := h.svc.ChangeStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, order)
}
