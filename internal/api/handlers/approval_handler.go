package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/models"
	"github.com/safecli/safecli/internal/services"
)

type ApprovalHandler struct {
	service *services.ApprovalService
}

func NewApprovalHandler(service *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// List returns the caller's live pending requests keyed by id. Anonymous callers
// get an empty object.
func (h *ApprovalHandler) List(c *gin.Context) {
	pending, err := h.service.ListPendingForAccount(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, models.OutcomeApproved)
}

func (h *ApprovalHandler) Deny(c *gin.Context) {
	h.decide(c, models.OutcomeDenied)
}

func (h *ApprovalHandler) decide(c *gin.Context, outcome models.Outcome) {
	status, err := h.service.Decide(c.Request.Context(), c.Param("id"), middleware.GetAccountID(c), middleware.Actor(c), outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.GetRequestLogger(c).WithField("request_id", c.Param("id")).WithField("outcome", outcome).Info("approval request decided")
	c.JSON(http.StatusOK, gin.H{"status": status})
}
