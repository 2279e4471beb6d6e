// Package handler provides HTTP handlers for the catalog module.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderbot_backend/internal/catalog/repository"
	"orderbot_backend/internal/catalog/service"
	"orderbot_backend/internal/catalog/transport"
	"orderbot_backend/platform/httpkit"
	"orderbot_backend/platform/validator"
)

const maxImportFileSize = 10 << 20 // 10 MiB

// Handler handles catalog HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a catalog handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// CreateProduct handles POST /admin/catalog/products.
func (h *Handler) CreateProduct(c *gin.Context) {
	var req transport.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), repository.CreateProductParams{
		SKU:         req.SKU,
		Title:       req.Title,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		StockQty:    req.StockQty,
		PriceCents:  req.PriceCents,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, product)
}

// UpdateProduct handles PUT /admin/catalog/products/:id.
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req transport.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	product, err := h.svc.UpdateProduct(c.Request.Context(), repository.UpdateProductParams{
		ID:          id,
		Title:       req.Title,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		StockQty:    req.StockQty,
		PriceCents:  req.PriceCents,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, product)
}

// DeleteProduct handles DELETE /admin/catalog/products/:id.
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteProduct(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProductByID handles GET /catalog/products/:id.
func (h *Handler) GetProductByID(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	product, err := h.svc.GetProductByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, product)
}

// ListProducts handles GET /catalog/products.
func (h *Handler) ListProducts(c *gin.Context) {
	params := repository.ListProductsParams{
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if raw := c.Query("categoryId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid categoryId", nil)
			return
		}
		params.CategoryID = &id
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.svc.ListProducts(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListProductsResponse{Items: items, Total: total})
}

// SearchProducts handles GET /catalog/products/search for autocomplete.
func (h *Handler) SearchProducts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		httpkit.OK(c, []repository.Product{})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	products, err := h.svc.SearchProducts(c.Request.Context(), query, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, products)
}

// ImportCSV handles POST /admin/catalog/import (multipart upload).
func (h *Handler) ImportCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "missing file upload", nil)
		return
	}
	if fileHeader.Size > maxImportFileSize {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "import file too large", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "cannot read uploaded file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.svc.ImportCSV(c.Request.Context(), fileHeader.Filename, file)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateCategory handles POST /admin/catalog/categories.
func (h *Handler) CreateCategory(c *gin.Context) {
	var req transport.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	category, err := h.svc.CreateCategory(c.Request.Context(), req.ParentID, req.Title, req.Position)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, category)
}

// ListCategories handles GET /catalog/categories?parentId=.
func (h *Handler) ListCategories(c *gin.Context) {
	var parentID *uuid.UUID
	if raw := c.Query("parentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid parentId", nil)
			return
		}
		parentID = &id
	}

	categories, err := h.svc.ListCategories(c.Request.Context(), parentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, categories)
}

// DeleteCategory handles DELETE /admin/catalog/categories/:id.
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteCategory(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
