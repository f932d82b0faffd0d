package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/pr-workflow/internal/application/service"
)

// CreatePORequest is the body of POST /procurement/po/new/:pr_id.
// Every field is optional.
type CreatePORequest struct {
	PONo       string `json:"po_no"`
	PODate     string `json:"po_date"` // YYYY-MM-DD
	VendorName string `json:"vendor_name"`
}

// ListApproved handles GET /procurement
func (h *Handlers) ListApproved(c *gin.Context) {
	prs, err := h.services.Procurement.ListApproved(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, prs)
}

// ReceiveRequisition handles POST /procurement/receive/:pr_id
func (h *Handlers) ReceiveRequisition(c *gin.Context) {
	id, valid := paramID(c, "pr_id")
	if !valid {
		return
	}
	pr, err := h.services.Procurement.Receive(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pr)
}

// CreatePurchaseOrder handles POST /procurement/po/new/:pr_id
func (h *Handlers) CreatePurchaseOrder(c *gin.Context) {
	prID, valid := paramID(c, "pr_id")
	if !valid {
		return
	}

	var req CreatePORequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	input := service.CreatePOInput{PRID: prID, PONo: req.PONo, VendorName: req.VendorName}
	if req.PODate != "" {
		d, err := time.Parse("2006-01-02", req.PODate)
		if err != nil {
			badRequest(c, "po_date must be YYYY-MM-DD")
			return
		}
		input.PODate = d
	}

	po, err := h.services.Procurement.CreatePO(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, po)
}

// GetPurchaseOrder handles GET /procurement/po/:id
func (h *Handlers) GetPurchaseOrder(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	po, err := h.services.Procurement.GetPO(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, po)
}

// ExportPurchaseOrder handles GET /procurement/po/:id/export
func (h *Handlers) ExportPurchaseOrder(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	doc, err := h.services.Procurement.ExportPO(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(200, doc.ContentType, doc.Content)
}
