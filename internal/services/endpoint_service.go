package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/metrics"
	"github.com/safecli/safecli/internal/models"
)

// EndpointService is the endpoint registry: which agents exist, who owns them and
// whether they are active.
type EndpointService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEndpointService(db *gorm.DB) *EndpointService {
	return &EndpointService{db: db, now: utcNow}
}

// Registration is the agent-supplied identity for Register.
type Registration struct {
	AccountID     string
	Name          string
	Hostname      string
	OSUser        string
	SourceAddress string
	OSInfo        string
}

// RegisterResult carries the stored endpoint and the plaintext credential issued
// for it. The token is only available here; the database keeps its hash.
type RegisterResult struct {
	Endpoint  *models.Endpoint
	Token     string
	Refreshed bool
}

// Register creates an endpoint or refreshes the one already registered for the
// same (hostname, os_user, account) so restarts and reinstalls reuse the row.
func (s *EndpointService) Register(ctx context.Context, reg Registration) (*RegisterResult, error) {
	reg.AccountID = strings.TrimSpace(reg.AccountID)
	reg.Hostname = strings.TrimSpace(reg.Hostname)
	reg.OSUser = strings.TrimSpace(reg.OSUser)
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.AccountID == "" || reg.Hostname == "" || reg.OSUser == "" || reg.Name == "" {
		return nil, ErrMissingFields
	}

	token, tokenHash, err := newEndpointToken()
	if err != nil {
		return nil, fmt.Errorf("generate endpoint token: %w", err)
	}

	var result *RegisterResult
	// A concurrent first registration of the same identity loses the insert race
	// on the unique index; the second attempt then takes the refresh path.
	for attempt := 0; attempt < 2; attempt++ {
		result, err = s.register(ctx, reg, tokenHash)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	result.Token = token
	metrics.IncEndpointRegistration(result.Refreshed)
	return result, nil
}

func (s *EndpointService) register(ctx context.Context, reg Registration, tokenHash string) (*RegisterResult, error) {
	now := s.now()
	result := &RegisterResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("id = ? AND active = ?", reg.AccountID, true).Count(&count).Error; err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if count == 0 {
			return ErrInvalidAccount
		}

		var existing models.Endpoint
		err := tx.Where("hostname = ? AND os_user = ? AND account_id = ?", reg.Hostname, reg.OSUser, reg.AccountID).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"name":           reg.Name,
				"source_address": reg.SourceAddress,
				"os_info":        reg.OSInfo,
				"last_seen":      now,
				"active":         true,
				"token_hash":     tokenHash,
			}).Error; err != nil {
				return fmt.Errorf("refresh endpoint: %w", err)
			}
			if err := tx.First(&existing, "id = ?", existing.ID).Error; err != nil {
				return fmt.Errorf("reload endpoint: %w", err)
			}
			result.Endpoint = &existing
			result.Refreshed = true
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			ep := &models.Endpoint{
				AccountID:     reg.AccountID,
				Name:          reg.Name,
				Hostname:      reg.Hostname,
				OSUser:        reg.OSUser,
				SourceAddress: reg.SourceAddress,
				OSInfo:        reg.OSInfo,
				Active:        true,
				TokenHash:     tokenHash,
				LastSeen:      now,
				CreatedAt:     now,
			}
			if err := tx.Create(ep).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return err
				}
				return fmt.Errorf("create endpoint: %w", err)
			}
			result.Endpoint = ep
			return nil
		default:
			return fmt.Errorf("lookup endpoint: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns the account's endpoints, most recently seen first; ties keep
// creation order.
func (s *EndpointService) List(ctx context.Context, accountID string) ([]models.Endpoint, error) {
	endpoints := []models.Endpoint{}
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("last_seen desc").Order("created_at asc").Order("id asc").
		Find(&endpoints).Error; err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	return endpoints, nil
}

// Get returns an endpoint by id regardless of owner.
func (s *EndpointService) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	var ep models.Endpoint
	if err := s.db.WithContext(ctx).First(&ep, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEndpointNotFound
		}
		return nil, fmt.Errorf("get endpoint: %w", err)
	}
	return &ep, nil
}

// SetActive flips the active flag of an endpoint owned by accountID.
func (s *EndpointService) SetActive(ctx context.Context, endpointID, accountID string, active bool) error {
	ep, err := s.owned(ctx, endpointID, accountID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(ep).Updates(map[string]interface{}{
		"active":     active,
		"updated_at": s.now(),
	}).Error; err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	return nil
}

// Delete permanently removes an endpoint owned by accountID. Its approval
// requests are kept for audit and simply stop resolving to an owner.
func (s *EndpointService) Delete(ctx context.Context, endpointID, accountID string) (*models.Endpoint, error) {
	ep, err := s.owned(ctx, endpointID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Endpoint{}, "id = ?", ep.ID).Error; err != nil {
		return nil, fmt.Errorf("delete endpoint: %w", err)
	}
	return ep, nil
}

// Uninstall deactivates and then removes an endpoint owned by accountID.
func (s *EndpointService) Uninstall(ctx context.Context, endpointID, accountID string) (*models.Endpoint, error) {
	ep, err := s.owned(ctx, endpointID, accountID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(ep).Updates(map[string]interface{}{"active": false, "updated_at": s.now()}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Endpoint{}, "id = ?", ep.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("uninstall endpoint: %w", err)
	}
	ep.Active = false
	return ep, nil
}

// Deregister is the agent-initiated deactivation. The caller proves identity only
// by presenting both ids, so a missing endpoint and a foreign one are reported
// identically.
func (s *EndpointService) Deregister(ctx context.Context, endpointID, accountID string) error {
	if strings.TrimSpace(endpointID) == "" || strings.TrimSpace(accountID) == "" {
		return ErrMissingFields
	}
	res := s.db.WithContext(ctx).Model(&models.Endpoint{}).
		Where("id = ? AND account_id = ?", endpointID, accountID).
		Updates(map[string]interface{}{"active": false, "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("deregister endpoint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEndpointUnavailable
	}
	return nil
}

// VerifyToken checks the credential an agent presents for endpointID.
func (s *EndpointService) VerifyToken(ctx context.Context, endpointID, token string) error {
	if endpointID == "" || token == "" {
		return ErrInvalidEndpointToken
	}
	ep, err := s.Get(ctx, endpointID)
	if err != nil {
		if errors.Is(err, ErrEndpointNotFound) {
			return ErrInvalidEndpointToken
		}
		return err
	}
	if ep.TokenHash == "" || subtle.ConstantTimeCompare([]byte(ep.TokenHash), []byte(hashToken(token))) != 1 {
		return ErrInvalidEndpointToken
	}
	return nil
}

func (s *EndpointService) owned(ctx context.Context, endpointID, accountID string) (*models.Endpoint, error) {
	ep, err := s.Get(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	if ep.AccountID != accountID {
		return nil, ErrAccessDenied
	}
	return ep, nil
}

func newEndpointToken() (token, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token = "ep_" + hex.EncodeToString(raw)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func utcNow() time.Time {
	return time.Now().UTC()
}
