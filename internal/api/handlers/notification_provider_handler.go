package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/models"
	"github.com/safecli/safecli/internal/services"
)

type NotificationProviderHandler struct {
	service *services.NotificationService
}

func NewNotificationProviderHandler(service *services.NotificationService) *NotificationProviderHandler {
	return &NotificationProviderHandler{service: service}
}

func (h *NotificationProviderHandler) List(c *gin.Context) {
	providers, err := h.service.ListProviders(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, providers)
}

type providerRequest struct {
	Name    string `json:"name" binding:"required"`
	URL     string `json:"url" binding:"required"`
	Enabled *bool  `json:"enabled"`
}

func (h *NotificationProviderHandler) Create(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider := models.NotificationProvider{
		AccountID: middleware.GetAccountID(c),
		Name:      req.Name,
		URL:       req.URL,
		Enabled:   true,
	}
	if err := h.service.CreateProvider(c.Request.Context(), &provider); err != nil {
		respondError(c, err)
		return
	}
	// a false bool would be replaced by the column default on insert
	if req.Enabled != nil && !*req.Enabled {
		if err := h.service.SetEnabled(c.Request.Context(), provider.AccountID, provider.ID, false); err != nil {
			respondError(c, err)
			return
		}
		provider.Enabled = false
	}
	c.JSON(http.StatusCreated, provider)
}

func (h *NotificationProviderHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteProvider(c.Request.Context(), middleware.GetAccountID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Provider deleted"})
}

type testProviderRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *NotificationProviderHandler) Test(c *gin.Context) {
	var req testProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.TestProvider(c.Request.Context(), middleware.GetAccountID(c), req.ID); err != nil {
		if statusFor(err) != http.StatusInternalServerError {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send test notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent"})
}
