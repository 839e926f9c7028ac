package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/services"
)

// AgentHandler serves the machine-facing routes. Agents identify themselves by
// account and endpoint id, plus the endpoint token when that is enforced.
type AgentHandler struct {
	gate         *services.GateService
	approvals    *services.ApprovalService
	endpoints    *services.EndpointService
	blacklist    *services.BlacklistService
	requireToken bool
}

func NewAgentHandler(gate *services.GateService, approvals *services.ApprovalService, endpoints *services.EndpointService, blacklist *services.BlacklistService, requireToken bool) *AgentHandler {
	return &AgentHandler{gate: gate, approvals: approvals, endpoints: endpoints, blacklist: blacklist, requireToken: requireToken}
}

type checkCommandRequest struct {
	Command    string `json:"command"`
	AccountID  string `json:"account_id"`
	EndpointID string `json:"endpoint_id"`
}

func (h *AgentHandler) CheckCommand(c *gin.Context) {
	var req checkCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" || strings.TrimSpace(req.AccountID) == "" || strings.TrimSpace(req.EndpointID) == "" {
		respondError(c, services.ErrMissingFields)
		return
	}
	if !h.verifyEndpoint(c, req.EndpointID) {
		return
	}

	decision, err := h.gate.Evaluate(c.Request.Context(), req.AccountID, req.EndpointID, req.Command)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *AgentHandler) CheckApproval(c *gin.Context) {
	status, err := h.approvals.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type registerEndpointRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Hostname  string `json:"hostname"`
	OSUser    string `json:"os_user"`
	OSInfo    string `json:"os_info"`
}

func (h *AgentHandler) Register(c *gin.Context) {
	var req registerEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.endpoints.Register(c.Request.Context(), services.Registration{
		AccountID:     req.AccountID,
		Name:          req.Name,
		Hostname:      req.Hostname,
		OSUser:        req.OSUser,
		OSInfo:        req.OSInfo,
		SourceAddress: c.ClientIP(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.GetRequestLogger(c).WithField("endpoint_id", res.Endpoint.ID).WithField("refreshed", res.Refreshed).Info("endpoint registered")
	c.JSON(http.StatusOK, gin.H{
		"endpoint_id":    res.Endpoint.ID,
		"status":         "registered",
		"endpoint_token": res.Token,
	})
}

type deregisterRequest struct {
	EndpointID string `json:"endpoint_id"`
	AccountID  string `json:"account_id"`
}

func (h *AgentHandler) Deregister(c *gin.Context) {
	var req deregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.EndpointID) == "" || strings.TrimSpace(req.AccountID) == "" {
		respondError(c, services.ErrMissingFields)
		return
	}
	if !h.verifyEndpoint(c, req.EndpointID) {
		return
	}
	if err := h.endpoints.Deregister(c.Request.Context(), req.EndpointID, req.AccountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deregistered"})
}

func (h *AgentHandler) Blacklist(c *gin.Context) {
	accountID := strings.TrimSpace(c.Query(middleware.AccountIDParam))
	if accountID == "" {
		badRequest(c, "account_id required")
		return
	}
	commands, err := h.blacklist.Get(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commands)
}

// verifyEndpoint enforces the endpoint token when configured. It writes the error
// response itself and reports whether the request may continue.
func (h *AgentHandler) verifyEndpoint(c *gin.Context, endpointID string) bool {
	if !h.requireToken {
		return true
	}
	if err := h.endpoints.VerifyToken(c.Request.Context(), endpointID, c.GetHeader(middleware.EndpointTokenHeader)); err != nil {
		respondError(c, err)
		return false
	}
	return true
}
