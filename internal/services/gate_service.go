package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/metrics"
	"github.com/safecli/safecli/internal/models"
	"github.com/safecli/safecli/internal/util"
)

// PendingNotifier is told about every request the gate parks.
type PendingNotifier interface {
	NotifyPending(ctx context.Context, accountID string, req *models.ApprovalRequest)
}

// Decision is the gate's answer for one command attempt.
type Decision struct {
	Blocked   bool   `json:"blocked"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// GateService decides whether a command may run or must wait for approval.
type GateService struct {
	blacklist *BlacklistService
	endpoints *EndpointService
	approvals *ApprovalService
	notifier  PendingNotifier
}

// NewGateService wires the gate. notifier may be nil.
func NewGateService(blacklist *BlacklistService, endpoints *EndpointService, approvals *ApprovalService, notifier PendingNotifier) *GateService {
	return &GateService{blacklist: blacklist, endpoints: endpoints, approvals: approvals, notifier: notifier}
}

// Evaluate checks command against the account's blacklist. Allowed commands leave
// no trace; each blocked one creates a fresh pending request.
func (s *GateService) Evaluate(ctx context.Context, accountID, endpointID, command string) (*Decision, error) {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(endpointID) == "" || strings.TrimSpace(command) == "" {
		return nil, ErrMissingFields
	}

	listed, err := s.blacklist.Contains(ctx, accountID, command)
	if err != nil {
		return nil, err
	}
	metrics.IncGateEvaluation(listed)
	if !listed {
		return &Decision{Blocked: false, Message: "Command allowed"}, nil
	}

	decision := &Decision{Blocked: true, Message: "Command requires approval"}
	userName := models.UnknownUser
	ep, err := s.endpoints.Get(ctx, endpointID)
	switch {
	case err == nil:
		userName = ep.OSUser
	case errors.Is(err, ErrEndpointNotFound):
		decision.Warning = "endpoint not registered; request recorded with unknown user"
		logger.Log().WithFields(logrus.Fields{
			"endpoint_id": util.SanitizeForLog(endpointID),
			"account_id":  util.SanitizeForLog(accountID),
		}).Warn("blocked command from unresolvable endpoint")
	default:
		return nil, err
	}

	req, err := s.approvals.create(ctx, endpointID, userName, command)
	if err != nil {
		return nil, err
	}
	decision.RequestID = req.ID

	logger.Log().WithFields(logrus.Fields{
		"request_id":  req.ID,
		"endpoint_id": util.SanitizeForLog(endpointID),
		"command":     util.TruncateForLog(command),
	}).Info("command parked for approval")

	if s.notifier != nil {
		s.notifier.NotifyPending(ctx, accountID, req)
	}
	return decision, nil
}
