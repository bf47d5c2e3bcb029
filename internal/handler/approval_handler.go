package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"procurement/internal/apperr"
	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	auth            *middleware.Auth
	limiter         *middleware.RateLimiter
	pageSize        int
}

func NewApprovalHandler(approvalService service.ApprovalService, auth *middleware.Auth, limiter *middleware.RateLimiter, pageSize int) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, auth: auth, limiter: limiter, pageSize: pageSize}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.auth.RequirePermission(middleware.PermApprovalsRead)
	decide := []gin.HandlerFunc{h.auth.RequirePermission(middleware.PermApprovalsDecide), h.limiter.Middleware()}

	approvals := router.Group("/api/approvals")
	{
		approvals.GET("", read, h.ListApprovals)
		approvals.GET("/stats", read, h.GetApprovalStats)
		approvals.GET("/:id", read, h.GetApproval)
		approvals.PUT("/:id/approve", append(decide, h.Approve)...)
		approvals.PUT("/:id/reject", append(decide, h.Reject)...)
		approvals.POST("/bulk-approve", append(decide, h.BulkApprove)...)
	}
}

// ListApprovals returns one page of approval requests matching the filters
// @Summary      List approval requests
// @Description  Filters are optional and combined with AND. Bounds are inclusive.
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Page size (default 10, max 100)"
// @Param        type        query     string  false  "requisition, purchase_order or payment"
// @Param        risk_level  query     string  false  "low, medium or high"
// @Param        status      query     string  false  "pending, approved or rejected"
// @Param        department  query     string  false  "Case-insensitive substring"
// @Param        date_from   query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        date_to     query     string  false  "RFC3339 or YYYY-MM-DD (whole day)"
// @Param        amount_min  query     string  false  "Decimal lower bound"
// @Param        amount_max  query     string  false  "Decimal upper bound"
// @Success      200         {object}  response.Response{data=model.ApprovalPage}
// @Failure      400         {object}  response.Response
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListApprovals(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p := pagination.Parse(c, h.pageSize)

	page, err := h.approvalService.ListApprovals(c.Request.Context(), p.Page, p.Limit, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// GetApprovalStats returns pending counts per request type
// @Summary      Pending counts
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.ApprovalStats}
// @Router       /api/approvals/stats [get]
func (h *ApprovalHandler) GetApprovalStats(c *gin.Context) {
	stats, err := h.approvalService.GetApprovalStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetApproval returns a single approval request
// @Summary      Get approval request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Approval request ID"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	req, err := h.approvalService.GetApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// Approve approves a pending approval request
// @Summary      Approve request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true   "Approval request ID"
// @Param        payload  body      service.ApproveRequestDTO  false  "Optional comment"
// @Success      200      {object}  response.Response{data=model.ApprovalRequest}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/approve [put]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req service.ApproveRequestDTO
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.approvalService.Approve(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id"), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Reject rejects a pending approval request
// @Summary      Reject request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Approval request ID"
// @Param        payload  body      service.RejectRequestDTO  true  "Rejection reason"
// @Success      200      {object}  response.Response{data=model.ApprovalRequest}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/reject [put]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req service.RejectRequestDTO
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.approvalService.Reject(c.Request.Context(), middleware.ActorFromContext(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// BulkApprove approves several requests, reporting per-id failures
// @Summary      Bulk approve
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BulkApproveRequestDTO  true  "IDs to approve"
// @Success      200      {object}  response.Response{data=model.BulkApproveResult}
// @Failure      400      {object}  response.Response
// @Router       /api/approvals/bulk-approve [post]
func (h *ApprovalHandler) BulkApprove(c *gin.Context) {
	var req service.BulkApproveRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("ids", "Invalid request payload"))
		return
	}

	result, err := h.approvalService.BulkApprove(c.Request.Context(), middleware.ActorFromContext(c), req.IDs, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// bindOptionalJSON accepts an empty body. It writes a 400 and returns false
// on malformed JSON.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, apperr.Validation("", "Invalid request payload"))
		return false
	}
	return true
}

const dateOnly = "2006-01-02"

func parseFilter(c *gin.Context) (model.ApprovalFilter, error) {
	f := model.ApprovalFilter{
		Type:       model.RequestType(strings.TrimSpace(c.Query("type"))),
		RiskLevel:  model.RiskLevel(strings.TrimSpace(c.Query("risk_level"))),
		Status:     model.ApprovalStatus(strings.TrimSpace(c.Query("status"))),
		Department: strings.TrimSpace(c.Query("department")),
	}

	var err error
	if f.DateFrom, err = parseTime(c.Query("date_from"), "date_from", false); err != nil {
		return f, err
	}
	if f.DateTo, err = parseTime(c.Query("date_to"), "date_to", true); err != nil {
		return f, err
	}
	if f.AmountMin, err = parseAmount(c.Query("amount_min"), "amount_min"); err != nil {
		return f, err
	}
	if f.AmountMax, err = parseAmount(c.Query("amount_max"), "amount_max"); err != nil {
		return f, err
	}
	return f, nil
}

// parseTime accepts RFC3339 or a bare date. A bare upper bound covers the whole day.
func parseTime(raw, field string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, apperr.Validation(field, field+" must be RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseAmount(raw, field string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Validation(field, field+" must be a decimal number")
	}
	return &d, nil
}
