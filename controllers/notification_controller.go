package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/topichub/store"
	"github.com/cppla/topichub/utils"
)

// NotificationController exposes the per-user notification backlog.
type NotificationController struct {
	log store.NotificationLog
}

// NewNotificationController creates a new NotificationController instance.
func NewNotificationController(log store.NotificationLog) *NotificationController {
	return &NotificationController{log: log}
}

// ListNotifications returns the user's backlog, newest first.
func (n *NotificationController) ListNotifications(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username is required")
		return
	}

	items, err := n.log.ListFor(ctx.Request.Context(), username)
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to list notifications")
		return
	}
	utils.Success(ctx, gin.H{"notifications": items})
}

// ClearNotifications empties the user's backlog and reports how many
// entries were removed.
func (n *NotificationController) ClearNotifications(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username is required")
		return
	}

	removed, err := n.log.ClearFor(ctx.Request.Context(), username)
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to clear notifications")
		return
	}
	utils.Success(ctx, gin.H{"removed": removed})
}
