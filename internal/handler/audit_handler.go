package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequirePermission(middleware.PermAuditRead))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs lists decision and login history, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Only entries for this approval request"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c, 20)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("entity_id"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"logs":        logs,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
		"total_pages": pagination.TotalPages(total, p.Limit),
	}))
}
