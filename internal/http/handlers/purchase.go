package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/charity-iap-backend/internal/http/response"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/services"
)

type PurchaseHandler struct {
	purchases services.PurchaseService
}

func NewPurchaseHandler(purchases services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

// GET /api/admin/purchases/:id
func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_purchase_id", err)
		return
	}
	p, d, err := h.purchases.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_purchase_failed", err)
		return
	}
	if p == nil {
		response.RespondError(c, http.StatusNotFound, "purchase_not_found", errNotFound("purchase"))
		return
	}
	response.RespondOK(c, gin.H{"purchase": p, "donation": d})
}

// POST /api/admin/purchases/:id/revalidate
func (h *PurchaseHandler) Revalidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_purchase_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	p, _, err := h.purchases.Get(dbc, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_purchase_failed", err)
		return
	}
	if p == nil {
		response.RespondError(c, http.StatusNotFound, "purchase_not_found", errNotFound("purchase"))
		return
	}
	job, _, err := h.purchases.EnqueueValidation(dbc, id, true)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}
