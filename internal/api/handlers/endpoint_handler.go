package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/models"
	"github.com/safecli/safecli/internal/services"
)

type EndpointHandler struct {
	service *services.EndpointService
	audit   *services.AuditService
}

func NewEndpointHandler(service *services.EndpointService, audit *services.AuditService) *EndpointHandler {
	return &EndpointHandler{service: service, audit: audit}
}

func (h *EndpointHandler) List(c *gin.Context) {
	endpoints, err := h.service.List(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, endpoints)
}

func (h *EndpointHandler) Activate(c *gin.Context) {
	h.setActive(c, true, "activated")
}

func (h *EndpointHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false, "deactivated")
}

func (h *EndpointHandler) setActive(c *gin.Context, active bool, status string) {
	if err := h.service.SetActive(c.Request.Context(), c.Param("id"), middleware.GetAccountID(c), active); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *EndpointHandler) Delete(c *gin.Context) {
	ep, err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(c, services.AuditEndpointDeleted, ep)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *EndpointHandler) Uninstall(c *gin.Context) {
	ep, err := h.service.Uninstall(c.Request.Context(), c.Param("id"), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(c, services.AuditEndpointUninstall, ep)
	c.JSON(http.StatusOK, gin.H{
		"status":  "uninstalled",
		"message": "Endpoint '" + ep.Name + "' has been uninstalled",
	})
}

// record is best effort; the removal already happened.
func (h *EndpointHandler) record(c *gin.Context, action string, ep *models.Endpoint) {
	err := h.audit.Log(c.Request.Context(), &models.AuditEvent{
		AccountID: ep.AccountID,
		Actor:     middleware.Actor(c),
		Action:    action,
		Target:    ep.ID,
		Details:   ep.Hostname + "/" + ep.OSUser,
	})
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Warn("failed to write audit event")
	}
}
