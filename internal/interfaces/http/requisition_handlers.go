package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/pr-workflow/internal/application/service"
)

// CommentsRequest carries the optional comments of a decision
type CommentsRequest struct {
	Comments string `json:"comments"`
}

// BudgetExceptionRequest is the body of POST /pr/:id/budget-exception
type BudgetExceptionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comments string `json:"comments"`
}

// ListRequisitions handles GET /pr
func (h *Handlers) ListRequisitions(c *gin.Context) {
	prs, err := h.services.Requisitions.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, prs)
}

// CreateRequisition handles POST /pr/new
func (h *Handlers) CreateRequisition(c *gin.Context) {
	var input service.CreateRequisitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid requisition: "+err.Error())
		return
	}

	pr, err := h.services.Requisitions.Create(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, pr)
}

// GetRequisition handles GET /pr/:id
func (h *Handlers) GetRequisition(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	pr, err := h.services.Requisitions.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pr)
}

// RequisitionAudit handles GET /pr/:id/audit
func (h *Handlers) RequisitionAudit(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	// Visibility follows the PR itself.
	if _, err := h.services.Requisitions.Get(c.Request.Context(), actorFrom(c), id); err != nil {
		fail(c, err)
		return
	}
	trail, err := h.services.Audit.Trail(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, trail)
}

// SubmitRequisition handles POST /pr/:id/submit
func (h *Handlers) SubmitRequisition(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	pr, err := h.services.Approvals.Submit(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pr)
}

// UploadQuotation handles POST /pr/:id/quotation (multipart field "file")
func (h *Handlers) UploadQuotation(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "quotation file is required")
		return
	}
	if header.Size > service.MaxQuotationSize {
		c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "quotation file is too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded quotation", "error", err, "pr_id", id)
		badRequest(c, "unreadable quotation file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, service.MaxQuotationSize))
	if err != nil {
		h.logger.Error("Failed to read uploaded quotation", "error", err, "pr_id", id)
		badRequest(c, "unreadable quotation file")
		return
	}

	pr, err := h.services.Requisitions.AttachQuotation(c.Request.Context(), actorFrom(c), id, header.Filename, content)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pr)
}

// DecideBudgetException handles POST /pr/:id/budget-exception
func (h *Handlers) DecideBudgetException(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req BudgetExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "decision is required")
		return
	}

	var approve bool
	switch req.Decision {
	case "approve":
		approve = true
	case "reject":
	default:
		badRequest(c, "decision must be approve or reject")
		return
	}

	pr, err := h.services.Approvals.DecideBudgetException(c.Request.Context(), actorFrom(c), id, approve, req.Comments)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pr)
}

// ListPendingApprovals handles GET /approve
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	work, err := h.services.Approvals.ListPending(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, work)
}

// ActOnRequisition handles POST /approve/:id/:action
func (h *Handlers) ActOnRequisition(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	action, err := service.ParseAction(c.Param("action"))
	if err != nil {
		fail(c, err)
		return
	}

	// The body is optional; comments default to empty.
	var req CommentsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	pr, err := h.services.Approvals.Act(c.Request.Context(), actorFrom(c), id, action, req.Comments)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, pr)
}
