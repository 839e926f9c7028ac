package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/metrics"
	"github.com/safecli/safecli/internal/models"
)

// Expiry triggers, used as metric labels.
const (
	sweepOnRead     = "read"
	sweepOnSchedule = "schedule"
	sweepOnDecide   = "decide"
)

// ApprovalService is the approval ledger. Rows are created only by the command
// gate; the only mutations are operator decisions and the expiry sweep, both of
// which are compare-and-set on status = pending.
type ApprovalService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewApprovalService(db *gorm.DB) *ApprovalService {
	return &ApprovalService{db: db, now: utcNow}
}

// PendingRequest is the operator's view of a live pending request.
type PendingRequest struct {
	User             string    `json:"user"`
	Command          string    `json:"command"`
	Timestamp        time.Time `json:"timestamp"`
	EndpointName     string    `json:"endpoint_name"`
	EndpointHostname string    `json:"endpoint_hostname"`
	EndpointUser     string    `json:"endpoint_user"`
}

// Get returns a request by id.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

// create parks a blocked command. userName is the endpoint's OS user, already
// resolved by the caller.
func (s *ApprovalService) create(ctx context.Context, endpointID, userName, command string) (*models.ApprovalRequest, error) {
	req := &models.ApprovalRequest{
		EndpointID: endpointID,
		UserName:   userName,
		Command:    command,
		Status:     models.RequestPending,
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, fmt.Errorf("create approval request: %w", err)
	}
	metrics.IncApprovalRequest()
	return req, nil
}

// ListPendingForAccount sweeps every expired pending row and returns the live
// pending requests whose endpoint belongs to accountID, keyed by request id.
// Requests of deleted or foreign endpoints are left out.
func (s *ApprovalService) ListPendingForAccount(ctx context.Context, accountID string) (map[string]PendingRequest, error) {
	result := map[string]PendingRequest{}
	if strings.TrimSpace(accountID) == "" {
		return result, nil
	}

	live, err := s.sweep(ctx, sweepOnRead)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return result, nil
	}

	var endpoints []models.Endpoint
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&endpoints).Error; err != nil {
		return nil, fmt.Errorf("load endpoints: %w", err)
	}
	owned := make(map[string]models.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		owned[ep.ID] = ep
	}

	for _, req := range live {
		ep, ok := owned[req.EndpointID]
		if !ok {
			continue
		}
		result[req.ID] = PendingRequest{
			User:             req.UserName,
			Command:          req.Command,
			Timestamp:        req.CreatedAt,
			EndpointName:     ep.Name,
			EndpointHostname: ep.Hostname,
			EndpointUser:     ep.OSUser,
		}
	}
	return result, nil
}

// SweepExpired rejects every pending request older than the TTL and returns how
// many rows it changed. It backs the background schedule.
func (s *ApprovalService) SweepExpired(ctx context.Context) (int, error) {
	var pending []models.ApprovalRequest
	if err := s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("status = ?", models.RequestPending).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("load pending requests: %w", err)
	}
	now := s.now()
	var expired []string
	for i := range pending {
		if pending[i].ExpiredAt(now) {
			expired = append(expired, pending[i].ID)
		}
	}
	n, err := s.reject(ctx, expired, sweepOnSchedule)
	return int(n), err
}

// sweep reads all pending rows newest first, rejects the expired ones in a single
// update and returns those still live.
func (s *ApprovalService) sweep(ctx context.Context, trigger string) ([]models.ApprovalRequest, error) {
	var pending []models.ApprovalRequest
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.RequestPending).
		Order("created_at desc").
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}

	now := s.now()
	live := pending[:0]
	var expired []string
	for _, req := range pending {
		if req.ExpiredAt(now) {
			expired = append(expired, req.ID)
			continue
		}
		live = append(live, req)
	}
	if _, err := s.reject(ctx, expired, trigger); err != nil {
		return nil, err
	}
	return live, nil
}

// reject moves the given requests from pending to rejected. Rows already resolved
// by someone else are left untouched.
func (s *ApprovalService) reject(ctx context.Context, ids []string, trigger string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.ApprovalRequest{}).
		Where("id IN ? AND status = ?", ids, models.RequestPending).
		Updates(map[string]interface{}{
			"status":     models.RequestRejected,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reject expired requests: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.AddExpirations(trigger, int(res.RowsAffected))
		logger.Log().WithField("trigger", trigger).WithField("count", res.RowsAffected).Debug("expired pending approval requests")
	}
	return res.RowsAffected, nil
}

// CheckStatus reports a request's status in the agent vocabulary. Unknown ids and
// timed out requests both read as expired.
func (s *ApprovalService) CheckStatus(ctx context.Context, requestID string) (models.AgentStatus, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return models.AgentExpired, nil
		}
		return "", err
	}

	if req.Status == models.RequestPending && req.ExpiredAt(s.now()) {
		n, err := s.reject(ctx, []string{req.ID}, sweepOnRead)
		if err != nil {
			return "", err
		}
		if n == 1 {
			return models.AgentExpired, nil
		}
		// A decision landed between the read and the sweep; report what it stored.
		if req, err = s.Get(ctx, requestID); err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				return models.AgentExpired, nil
			}
			return "", err
		}
	}
	return req.Status.AgentView(), nil
}

// Decide applies an operator outcome to a pending request owned by accountID.
// Exactly one of any set of concurrent decisions succeeds; the rest, and any
// decision on a timed out request, get ErrAlreadyProcessed.
func (s *ApprovalService) Decide(ctx context.Context, requestID, accountID, actor string, outcome models.Outcome) (models.RequestStatus, error) {
	if !outcome.Valid() {
		return "", ErrInvalidOutcome
	}
	if strings.TrimSpace(requestID) == "" || strings.TrimSpace(accountID) == "" {
		return "", ErrMissingFields
	}

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return "", err
	}

	var ep models.Endpoint
	if err := s.db.WithContext(ctx).Select("id", "account_id").First(&ep, "id = ?", req.EndpointID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccessDenied
		}
		return "", fmt.Errorf("resolve endpoint: %w", err)
	}
	if ep.AccountID != accountID {
		return "", ErrAccessDenied
	}

	now := s.now()
	if req.Status == models.RequestPending && req.ExpiredAt(now) {
		if _, err := s.reject(ctx, []string{req.ID}, sweepOnDecide); err != nil {
			return "", err
		}
		metrics.IncDecision("conflict")
		return "", ErrAlreadyProcessed
	}

	status := outcome.Status()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ApprovalRequest{}).
			Where("id = ? AND status = ?", req.ID, models.RequestPending).
			Updates(map[string]interface{}{
				"status":     status,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("apply decision: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		return recordAudit(tx, &models.AuditEvent{
			AccountID: accountID,
			Actor:     actor,
			Action:    decisionAction(outcome),
			Target:    req.ID,
			Details:   req.Command,
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			metrics.IncDecision("conflict")
		}
		return "", err
	}

	metrics.IncDecision(string(outcome))
	return status, nil
}

func decisionAction(o models.Outcome) string {
	if o == models.OutcomeApproved {
		return AuditDecisionApproved
	}
	return AuditDecisionDenied
}
