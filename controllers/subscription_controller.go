package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/topichub/registry"
	"github.com/cppla/topichub/utils"
)

// SubscriptionController manages durable (username, topic) interest pairs.
type SubscriptionController struct {
	registry *registry.Registry
}

// NewSubscriptionController creates a new SubscriptionController instance.
func NewSubscriptionController(reg *registry.Registry) *SubscriptionController {
	return &SubscriptionController{registry: reg}
}

type subscriptionRequest struct {
	Username string `json:"username" binding:"required"`
	Topic    string `json:"topic" binding:"required"`
}

// Subscribe registers durable interest of a user in a topic. Subscribing
// twice is a no-op.
func (s *SubscriptionController) Subscribe(ctx *gin.Context) {
	var req subscriptionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username and topic are required")
		return
	}

	username := strings.TrimSpace(req.Username)
	topic := strings.TrimSpace(req.Topic)
	if username == "" || topic == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username and topic are required")
		return
	}

	if err := s.registry.Subscribe(username, topic); err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to persist subscription")
		return
	}
	utils.Success(ctx, gin.H{"username": username, "topic": topic})
}

// Unsubscribe removes a pair; removing a non-existent pair is a no-op.
// Notifications already logged remain until the user clears them.
func (s *SubscriptionController) Unsubscribe(ctx *gin.Context) {
	var req subscriptionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username and topic are required")
		return
	}

	username := strings.TrimSpace(req.Username)
	topic := strings.TrimSpace(req.Topic)
	if username == "" || topic == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username and topic are required")
		return
	}

	if err := s.registry.Unsubscribe(username, topic); err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeStoreUnavailable, "failed to remove subscription")
		return
	}
	utils.Success(ctx, gin.H{"username": username, "topic": topic})
}

// ListSubscriptions returns the topics a user is subscribed to.
func (s *SubscriptionController) ListSubscriptions(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "username is required")
		return
	}
	utils.Success(ctx, gin.H{"username": username, "topics": s.registry.TopicsOf(username)})
}
