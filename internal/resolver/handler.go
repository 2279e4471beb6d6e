package resolver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderbot_backend/platform/httpkit"
	"orderbot_backend/platform/validator"
)

// Handler exposes the resolver over HTTP so staff can preview how an
// order text resolves before committing it to an order.
type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

type resolveRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type resolvedLineDTO struct {
	ProductID  string  `json:"product_id"`
	SKU        string  `json:"sku"`
	Title      string  `json:"title"`
	Qty        int     `json:"qty"`
	PriceCents int64   `json:"price_cents"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

type unresolvedLineDTO struct {
	Text string `json:"text"`
	Qty  int    `json:"qty"`
}

type resolveResponse struct {
	Source     string              `json:"source"`
	Resolved   []resolvedLineDTO   `json:"resolved"`
	Unresolved []unresolvedLineDTO `json:"unresolved"`
}

// Resolve handles POST /resolve.
func (h *Handler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	userID, _ := c.Value(httpkit.ContextUserIDKey).(uuid.UUID)

	res := h.svc.Resolve(c.Request.Context(), userID, req.Text)
	httpkit.OK(c, toResolveResponse(res))
}

func toResolveResponse(res Resolution) resolveResponse {
	out := resolveResponse{
		Source:     res.Source,
		Resolved:   make([]resolvedLineDTO, 0, len(res.Resolved)),
		Unresolved: make([]unresolvedLineDTO, 0, len(res.Unresolved)),
	}
	for _, line := range res.Resolved {
		out.Resolved = append(out.Resolved, resolvedLineDTO{
			ProductID:  line.ProductID.String(),
			SKU:        line.SKU,
			Title:      line.Title,
			Qty:        line.Qty,
			PriceCents: line.PriceCents,
			Confidence: line.Confidence,
			Source:     line.Source,
		})
	}
	for _, line := range res.Unresolved {
		out.Unresolved = append(out.Unresolved, unresolvedLineDTO{Text: line.Text, Qty: line.Qty})
	}
	return out
}
