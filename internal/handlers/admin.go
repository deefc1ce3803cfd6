// internal/handlers/admin.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	eventService *services.EventService
}

func NewAdminHandler(adminService *services.AdminService, eventService *services.EventService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		eventService: eventService,
	}
}

// GET /admin/stats
func (h *AdminHandler) GetPlatformStats(c *gin.Context) {
	stats, err := h.adminService.GetPlatformStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.adminService.ListAuditLogs(limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, logs)
}

// GET /admin/events
func (h *AdminHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	eventType := c.Query("type")
	classID := models.NormalizeAddress(c.Query("class"))
	if c.Query("class") == "" {
		classID = ""
	}

	events, err := h.eventService.List(eventType, classID, limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, events)
}
