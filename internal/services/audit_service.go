package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/models"
)

// Audit actions.
const (
	AuditDecisionApproved  = "decision.approved"
	AuditDecisionDenied    = "decision.denied"
	AuditEndpointDeleted   = "endpoint.deleted"
	AuditEndpointUninstall = "endpoint.uninstalled"
	AuditBlacklistReplace  = "blacklist.replaced"
	AuditAccountCreated    = "account.created"
)

const defaultAuditLimit = 100

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Log stores an audit entry.
func (s *AuditService) Log(ctx context.Context, e *models.AuditEvent) error {
	return recordAudit(s.db.WithContext(ctx), e)
}

// List returns the account's most recent audit entries, newest first.
func (s *AuditService) List(ctx context.Context, accountID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	events := []models.AuditEvent{}
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// recordAudit writes through tx so callers can make the entry part of their transaction.
func recordAudit(tx *gorm.DB, e *models.AuditEvent) error {
	if e == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return tx.Create(e).Error
}
