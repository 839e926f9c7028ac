package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/services"
)

type BlacklistHandler struct {
	service *services.BlacklistService
}

func NewBlacklistHandler(service *services.BlacklistService) *BlacklistHandler {
	return &BlacklistHandler{service: service}
}

func (h *BlacklistHandler) Get(c *gin.Context) {
	commands, err := h.service.Get(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commands)
}

// ReplaceRequest accepts the list under "commands"; "blacklist" is kept for older agents.
type ReplaceRequest struct {
	Commands  *[]string `json:"commands"`
	Blacklist *[]string `json:"blacklist"`
}

func (h *BlacklistHandler) Replace(c *gin.Context) {
	var req ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "commands must be a list of strings")
		return
	}
	list := req.Commands
	if list == nil {
		list = req.Blacklist
	}
	if list == nil {
		badRequest(c, "commands must be a list of strings")
		return
	}

	commands, err := h.service.Replace(c.Request.Context(), middleware.GetAccountID(c), middleware.Actor(c), *list)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "commands": commands})
}
