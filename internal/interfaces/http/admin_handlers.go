package http

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/pr-workflow/internal/application/service"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
)

// AllocateBudgetRequest is the body of POST /budgets
type AllocateBudgetRequest struct {
	Department string          `json:"department" binding:"required"`
	Category   string          `json:"category" binding:"required"`
	FiscalYear string          `json:"fiscal_year" binding:"required"`
	Allocated  decimal.Decimal `json:"allocated_amount"`
}

// ActiveRequest toggles an account or vendor
type ActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PasswordRequest is the body of POST /admin/users/:id/password
type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// ListBudgets handles GET /budgets. Plain users only see their own department.
func (h *Handlers) ListBudgets(c *gin.Context) {
	actor := actorFrom(c)
	department := c.Query("department")
	if actor.Role == entity.RoleUser {
		department = actor.Department
	}

	budgets, err := h.services.Budgets.List(c.Request.Context(), department, c.Query("fiscal_year"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, budgets)
}

// AllocateBudget handles POST /budgets
func (h *Handlers) AllocateBudget(c *gin.Context) {
	var req AllocateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "department, category and fiscal_year are required")
		return
	}

	budget := &entity.BudgetCategory{
		Department: req.Department,
		Category:   req.Category,
		FiscalYear: req.FiscalYear,
		Allocated:  req.Allocated,
	}
	if err := h.services.Budgets.Allocate(c.Request.Context(), actorFrom(c), budget); err != nil {
		fail(c, err)
		return
	}
	created(c, budget)
}

// ListVendors handles GET /vendors; ?all=true includes inactive vendors for managers
func (h *Handlers) ListVendors(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	vendors, err := h.services.Vendors.List(c.Request.Context(), actorFrom(c), all)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vendors)
}

// SearchVendors handles GET /vendors/search?q=
func (h *Handlers) SearchVendors(c *gin.Context) {
	vendors, err := h.services.Vendors.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vendors)
}

// GetVendor handles GET /vendors/:code
func (h *Handlers) GetVendor(c *gin.Context) {
	vendor, err := h.services.Vendors.Get(c.Request.Context(), actorFrom(c), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vendor)
}

// CreateVendor handles POST /vendors
func (h *Handlers) CreateVendor(c *gin.Context) {
	var vendor entity.Vendor
	if err := c.ShouldBindJSON(&vendor); err != nil {
		badRequest(c, "invalid vendor")
		return
	}
	if err := h.services.Vendors.Create(c.Request.Context(), actorFrom(c), &vendor); err != nil {
		fail(c, err)
		return
	}
	created(c, vendor)
}

// SetVendorActive handles POST /vendors/:code/active
func (h *Handlers) SetVendorActive(c *gin.Context) {
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "active is required")
		return
	}
	if err := h.services.Vendors.SetActive(c.Request.Context(), actorFrom(c), c.Param("code"), *req.Active); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"vendor_code": c.Param("code"), "is_active": *req.Active})
}

// ListUsers handles GET /admin/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

// CreateUser handles POST /admin/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var in service.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid user")
		return
	}
	user, err := h.services.Users.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, user)
}

// SetUserActive handles POST /admin/users/:id/active
func (h *Handlers) SetUserActive(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "active is required")
		return
	}
	if err := h.services.Users.SetActive(c.Request.Context(), actorFrom(c), id, *req.Active); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"id": id, "active": *req.Active})
}

// ResetUserPassword handles POST /admin/users/:id/password
func (h *Handlers) ResetUserPassword(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "password is required")
		return
	}
	if err := h.services.Users.ResetPassword(c.Request.Context(), actorFrom(c), id, req.Password); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}
